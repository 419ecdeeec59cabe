package handlers

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"blueprint-editor/application/ports"
	"blueprint-editor/domain/core/aggregates"
	"blueprint-editor/domain/core/entities"
	"blueprint-editor/domain/events"
	"blueprint-editor/infrastructure/persistence/memory"
	pkgerrors "blueprint-editor/pkg/errors"

	"github.com/stretchr/testify/require"
)

type fakeCache struct {
	mu      sync.Mutex
	data    map[string]interface{}
	gens    map[string]uint64
	deleted []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: map[string]interface{}{}}
}

func (c *fakeCache) Get(_ context.Context, key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok
}

func (c *fakeCache) Set(_ context.Context, key string, value interface{}, _ int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *fakeCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	c.deleted = append(c.deleted, key)
	c.bump(key)
	return nil
}

func (c *fakeCache) Clear(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = map[string]interface{}{}
	return nil
}

func (c *fakeCache) bump(key string) {
	if c.gens == nil {
		c.gens = map[string]uint64{}
	}
	c.gens[key]++
}

func (c *fakeCache) Generation(key string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[key]
}

func (c *fakeCache) SetIfGeneration(_ context.Context, key string, value interface{}, _ int, gen uint64) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[key] != gen {
		return false, nil
	}
	c.data[key] = value
	return true, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []events.DomainEvent
}

func (p *fakePublisher) Publish(ctx context.Context, e events.DomainEvent) error {
	return p.PublishBatch(ctx, []events.DomainEvent{e})
}

func (p *fakePublisher) PublishBatch(_ context.Context, evts []events.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evts...)
	return nil
}

func (p *fakePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.GetEventType()
	}
	return out
}

// fakeBlobs keeps blobs in a map. putErr fails every Put.
type fakeBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    int
	deletes []string
	putErr  error
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{objects: map[string][]byte{}}
}

func (b *fakeBlobs) Put(_ context.Context, pathname string, body io.Reader, _ int64, _ string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.puts++
	if b.putErr != nil {
		return "", b.putErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	b.objects[pathname] = data
	return "https://blobs.test/" + pathname, nil
}

func (b *fakeBlobs) Delete(_ context.Context, pathname string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, pathname)
	b.deletes = append(b.deletes, pathname)
	return nil
}

func (b *fakeBlobs) List(_ context.Context) ([]ports.BlobObject, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]ports.BlobObject, 0, len(b.objects))
	for name, data := range b.objects {
		out = append(out, ports.BlobObject{
			URL:        "https://blobs.test/" + name,
			Pathname:   name,
			Size:       int64(len(data)),
			UploadedAt: time.Now(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Pathname < out[j].Pathname })
	return out, nil
}

func (b *fakeBlobs) Open(_ context.Context, pathname string) (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[pathname]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("blob " + pathname)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (b *fakeBlobs) PathnameFromURL(url string) (string, bool) {
	const base = "https://blobs.test/"
	if len(url) <= len(base) || url[:len(base)] != base {
		return "", false
	}
	return url[len(base):], true
}

// flakyRepo fails selected operations of an in-memory repository
type flakyRepo struct {
	*memory.DiagramRepository
	createErr error
	getErr    error
	saveErr   error
}

func (r *flakyRepo) Create(ctx context.Context, d *aggregates.Diagram) (int64, error) {
	if r.createErr != nil {
		return 0, r.createErr
	}
	return r.DiagramRepository.Create(ctx, d)
}

func (r *flakyRepo) GetByID(ctx context.Context, id int64) (*aggregates.Diagram, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	return r.DiagramRepository.GetByID(ctx, id)
}

func (r *flakyRepo) SaveNodes(ctx context.Context, id int64, nodes []entities.Node, seq int64) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	return r.DiagramRepository.SaveNodes(ctx, id, nodes, seq)
}

type fakeMetrics struct {
	uploads    []error
	saves      []int
	placements []string
}

func (m *fakeMetrics) RecordUpload(_ int64, err error) { m.uploads = append(m.uploads, err) }
func (m *fakeMetrics) RecordSave(n int, _ error)       { m.saves = append(m.saves, n) }
func (m *fakeMetrics) RecordPlacement(id string)       { m.placements = append(m.placements, id) }

var errStorageDown = errors.New("storage down")

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	appErr := pkgerrors.GetAppError(err)
	require.NotNil(t, appErr, "expected an AppError, got %v", err)
	require.Equal(t, code, appErr.Code)
}
