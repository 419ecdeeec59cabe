package handlers

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"blueprint-editor/application/commands"
	"blueprint-editor/application/ports"
	"blueprint-editor/domain/catalog"
	"blueprint-editor/domain/config"
	"blueprint-editor/domain/core/entities"
	"blueprint-editor/domain/core/valueobjects"
	"blueprint-editor/domain/events"
	"blueprint-editor/infrastructure/persistence/memory"
	pkgerrors "blueprint-editor/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	repo      *flakyRepo
	cache     *fakeCache
	publisher *fakePublisher
	blobs     *fakeBlobs
	metrics   *fakeMetrics
	cfg       *config.DomainConfig

	create *CreateDiagramHandler
	save   *SaveNodesHandler
	update *UpdateDiagramHandler
	upload *UploadBlueprintHandler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:      &flakyRepo{DiagramRepository: memory.NewDiagramRepository()},
		cache:     newFakeCache(),
		publisher: &fakePublisher{},
		blobs:     newFakeBlobs(),
		metrics:   &fakeMetrics{},
		cfg:       config.DefaultDomainConfig(),
	}
	logger := zap.NewNop()
	f.create = NewCreateDiagramHandler(f.repo, f.cache, f.publisher, f.cfg, logger)
	f.save = NewSaveNodesHandler(f.repo, nil, f.cache, f.publisher, f.metrics, f.cfg, logger)
	f.update = NewUpdateDiagramHandler(f.repo, f.cache, f.publisher, f.cfg, logger)
	f.upload = NewUploadBlueprintHandler(f.blobs, f.create, f.cache, f.publisher, f.metrics, f.cfg, logger)
	return f
}

func (f *fixture) newDiagram(t *testing.T) int64 {
	t.Helper()
	res, err := f.create.Handle(context.Background(), commands.CreateDiagramCommand{
		Title:        "Ground floor",
		BlueprintURL: "https://blobs.test/plan.png",
	})
	require.NoError(t, err)
	f.cache.deleted = nil
	return res.DiagramID
}

func symbolNode(t *testing.T, symbolID string, ordinal int64, x, y float64) entities.Node {
	t.Helper()
	symbol, ok := catalog.Default().Lookup(symbolID)
	require.True(t, ok)
	return entities.NewSymbolNode(valueobjects.NewNodeID(symbolID, ordinal), symbol, valueobjects.Position{X: x, Y: y})
}

func TestCreateDiagram(t *testing.T) {
	f := newFixture(t)

	res, err := f.create.Handle(context.Background(), commands.CreateDiagramCommand{
		Title:          "Plan",
		BlueprintURL:   "https://blobs.test/a.png",
		BlueprintWidth: 800,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.DiagramID)
	assert.Contains(t, f.cache.deleted, ports.DiagramListCacheKey)
	assert.Equal(t, []string{events.TypeDiagramCreated}, f.publisher.types())

	stored, err := f.repo.GetByID(context.Background(), res.DiagramID)
	require.NoError(t, err)
	assert.Equal(t, "Plan", stored.Title())
	assert.Empty(t, stored.Nodes())
}

func TestCreateDiagram_StorageFailure(t *testing.T) {
	f := newFixture(t)
	f.repo.createErr = errStorageDown

	_, err := f.create.Handle(context.Background(), commands.CreateDiagramCommand{
		Title:        "Plan",
		BlueprintURL: "https://blobs.test/a.png",
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeDatabase))
	assert.Empty(t, f.cache.deleted)
}

func TestSaveNodes(t *testing.T) {
	f := newFixture(t)
	id := f.newDiagram(t)

	nodes := []entities.Node{
		symbolNode(t, "resistor", 1, 10, 20),
		symbolNode(t, "capacitor", 2, 30, 40),
	}
	res, err := f.save.Handle(context.Background(), commands.SaveNodesCommand{DiagramID: id, Nodes: nodes})
	require.NoError(t, err)

	assert.Equal(t, id, res.DiagramID)
	assert.Equal(t, 2, res.NodeCount)
	assert.Equal(t, int64(2), res.NodeSequence)
	assert.Equal(t, []string{"capacitor-2", "resistor-1"}, res.Changes.Added)
	assert.ElementsMatch(t, []string{ports.DiagramCacheKey(id), ports.DiagramListCacheKey}, f.cache.deleted)
	assert.Contains(t, f.publisher.types(), events.TypeDiagramNodesSaved)
	assert.Equal(t, []int{2}, f.metrics.saves)

	stored, err := f.repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, []string{"resistor-1", "capacitor-2"}, entities.NodeIDs(stored.Nodes()))
}

func TestSaveNodes_EmptyListClearsDiagram(t *testing.T) {
	f := newFixture(t)
	id := f.newDiagram(t)

	_, err := f.save.Handle(context.Background(), commands.SaveNodesCommand{
		DiagramID: id,
		Nodes:     []entities.Node{symbolNode(t, "diode", 1, 0, 0)},
	})
	require.NoError(t, err)

	res, err := f.save.Handle(context.Background(), commands.SaveNodesCommand{DiagramID: id, Nodes: []entities.Node{}})
	require.NoError(t, err)
	assert.Equal(t, 0, res.NodeCount)
	assert.Equal(t, int64(1), res.NodeSequence, "the sequence never moves backwards")
}

func TestSaveNodes_UnknownDiagram(t *testing.T) {
	f := newFixture(t)

	_, err := f.save.Handle(context.Background(), commands.SaveNodesCommand{DiagramID: 7, Nodes: []entities.Node{}})
	requireCode(t, err, pkgerrors.CodeDiagramNotFound)
	assert.Empty(t, f.cache.deleted)
}

func TestSaveNodes_StorageFailureIsSaveFailed(t *testing.T) {
	f := newFixture(t)
	id := f.newDiagram(t)
	f.repo.saveErr = errStorageDown

	_, err := f.save.Handle(context.Background(), commands.SaveNodesCommand{
		DiagramID: id,
		Nodes:     []entities.Node{symbolNode(t, "resistor", 1, 0, 0)},
	})
	requireCode(t, err, pkgerrors.CodeSaveFailed)
	assert.True(t, pkgerrors.IsSaveFailed(err))
	assert.ErrorIs(t, err, errStorageDown)
	assert.Empty(t, f.cache.deleted, "a failed save must not invalidate cached views")
}

func TestSaveNodes_LoadFailureIsSaveFailed(t *testing.T) {
	f := newFixture(t)
	id := f.newDiagram(t)
	f.repo.getErr = errStorageDown

	_, err := f.save.Handle(context.Background(), commands.SaveNodesCommand{DiagramID: id, Nodes: []entities.Node{}})
	requireCode(t, err, pkgerrors.CodeSaveFailed)
}

func TestSaveNodes_RejectsDuplicateIDs(t *testing.T) {
	f := newFixture(t)
	id := f.newDiagram(t)

	n := symbolNode(t, "resistor", 1, 0, 0)
	_, err := f.save.Handle(context.Background(), commands.SaveNodesCommand{DiagramID: id, Nodes: []entities.Node{n, n}})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))
}

type rejectAll struct{}

func (rejectAll) ValidateNodes([]entities.Node) error {
	return pkgerrors.NewInvalidNodeListError([]string{"bad shape"})
}

func TestSaveNodes_SchemaRejection(t *testing.T) {
	f := newFixture(t)
	id := f.newDiagram(t)
	h := NewSaveNodesHandler(f.repo, rejectAll{}, f.cache, f.publisher, nil, f.cfg, zap.NewNop())

	_, err := h.Handle(context.Background(), commands.SaveNodesCommand{DiagramID: id, Nodes: []entities.Node{}})
	requireCode(t, err, pkgerrors.CodeInvalidNodeList)
}

func TestUpdateDiagram_Rename(t *testing.T) {
	f := newFixture(t)
	id := f.newDiagram(t)

	require.NoError(t, f.update.HandleRename(context.Background(), commands.RenameDiagramCommand{DiagramID: id, Title: "First floor"}))
	stored, err := f.repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "First floor", stored.Title())
	assert.ElementsMatch(t, []string{ports.DiagramCacheKey(id), ports.DiagramListCacheKey}, f.cache.deleted)
	assert.Contains(t, f.publisher.types(), events.TypeDiagramRenamed)
}

func TestUpdateDiagram_SameTitleSkipsWrite(t *testing.T) {
	f := newFixture(t)
	id := f.newDiagram(t)

	require.NoError(t, f.update.HandleRename(context.Background(), commands.RenameDiagramCommand{DiagramID: id, Title: "Ground floor"}))
	assert.Empty(t, f.cache.deleted)
}

func TestUpdateDiagram_BlueprintPosition(t *testing.T) {
	f := newFixture(t)
	id := f.newDiagram(t)

	err := f.update.HandleSetBlueprintPosition(context.Background(), commands.SetBlueprintPositionCommand{DiagramID: id, X: -12.5, Y: 40})
	require.NoError(t, err)
	stored, err := f.repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, valueobjects.Position{X: -12.5, Y: 40}, stored.BlueprintOffset())
}

func TestUpdateDiagram_UnknownDiagram(t *testing.T) {
	f := newFixture(t)
	err := f.update.HandleRename(context.Background(), commands.RenameDiagramCommand{DiagramID: 99, Title: "x"})
	requireCode(t, err, pkgerrors.CodeDiagramNotFound)
}

func uploadOf(name string, data []byte) commands.UploadBlueprintCommand {
	return commands.UploadBlueprintCommand{Files: []commands.UploadFile{{
		Name: name,
		Size: int64(len(data)),
		Body: bytes.NewReader(data),
	}}}
}

func TestUploadBlueprint(t *testing.T) {
	f := newFixture(t)
	data := pngBytes(t, 64, 48)

	res, err := f.upload.Handle(context.Background(), uploadOf("Plan.PNG", data))
	require.NoError(t, err)

	assert.Equal(t, int64(1), res.DiagramID)
	assert.True(t, strings.HasSuffix(res.Pathname, ".png"))
	assert.Len(t, strings.TrimSuffix(res.Pathname, ".png"), f.cfg.GeneratedNameLen)
	assert.Equal(t, "https://blobs.test/"+res.Pathname, res.URL)
	assert.Equal(t, "image/png", res.Type)
	assert.Equal(t, 64, res.Width)
	assert.Equal(t, 48, res.Height)
	assert.Len(t, res.Checksum, 64)
	assert.Equal(t, data, f.blobs.objects[res.Pathname], "the stored blob is the whole upload")

	stored, err := f.repo.GetByID(context.Background(), res.DiagramID)
	require.NoError(t, err)
	assert.Equal(t, res.URL, stored.BlueprintURL())
	assert.Empty(t, stored.Nodes())

	assert.Contains(t, f.cache.deleted, ports.BlueprintListCacheKey)
	assert.Contains(t, f.publisher.types(), events.TypeBlueprintUploaded)
	require.Len(t, f.metrics.uploads, 1)
	assert.NoError(t, f.metrics.uploads[0])
}

func TestUploadBlueprint_Rejections(t *testing.T) {
	png := func(t *testing.T) []byte { return pngBytes(t, 4, 4) }

	tests := []struct {
		name string
		cmd  func(t *testing.T) commands.UploadBlueprintCommand
		code string
	}{
		{
			name: "no file",
			cmd:  func(*testing.T) commands.UploadBlueprintCommand { return commands.UploadBlueprintCommand{} },
			code: pkgerrors.CodeNoFile,
		},
		{
			name: "two files",
			cmd: func(t *testing.T) commands.UploadBlueprintCommand {
				one := uploadOf("a.png", png(t))
				two := uploadOf("b.png", png(t))
				one.Files = append(one.Files, two.Files...)
				return one
			},
			code: pkgerrors.CodeTooManyFiles,
		},
		{
			name: "too large",
			cmd: func(t *testing.T) commands.UploadBlueprintCommand {
				cmd := uploadOf("big.png", png(t))
				cmd.Files[0].Size = 5 << 20
				return cmd
			},
			code: pkgerrors.CodeFileTooLarge,
		},
		{
			name: "wrong extension",
			cmd: func(t *testing.T) commands.UploadBlueprintCommand {
				return uploadOf("plan.gif", png(t))
			},
			code: pkgerrors.CodeFileInvalidType,
		},
		{
			name: "text disguised as png",
			cmd: func(*testing.T) commands.UploadBlueprintCommand {
				return uploadOf("plan.png", []byte("just some notes about the plan"))
			},
			code: pkgerrors.CodeFileInvalidType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.upload.Handle(context.Background(), tt.cmd(t))
			requireCode(t, err, tt.code)
			assert.True(t, pkgerrors.IsUploadRejection(err))
			assert.Zero(t, f.blobs.puts, "rejected uploads store nothing")
		})
	}
}

func TestUploadBlueprint_CompensatesWhenDiagramCreateFails(t *testing.T) {
	f := newFixture(t)
	f.repo.createErr = errStorageDown

	_, err := f.upload.Handle(context.Background(), uploadOf("plan.png", pngBytes(t, 8, 8)))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeDatabase))

	require.Len(t, f.blobs.deletes, 1)
	assert.Empty(t, f.blobs.objects, "the stored blob is removed again")
	assert.NotContains(t, f.cache.deleted, ports.BlueprintListCacheKey)
}

func TestUploadBlueprint_BlobStoreDown(t *testing.T) {
	f := newFixture(t)
	f.blobs.putErr = errStorageDown

	_, err := f.upload.Handle(context.Background(), uploadOf("plan.png", pngBytes(t, 8, 8)))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeExternal))
	assert.Equal(t, 3, f.blobs.puts)
	assert.Empty(t, f.blobs.deletes)
}
