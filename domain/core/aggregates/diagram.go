package aggregates

import (
	"errors"
	"fmt"
	"time"

	"blueprint-editor/domain/config"
	"blueprint-editor/domain/core/entities"
	"blueprint-editor/domain/core/valueobjects"
	"blueprint-editor/domain/events"
	"blueprint-editor/domain/versioning"
	pkgerrors "blueprint-editor/pkg/errors"
)

// Diagram is the aggregate root for one annotated blueprint.
// It owns the ordered node list and the per-diagram node sequence.
type Diagram struct {
	id              int64
	title           valueobjects.Title
	blueprintURL    string
	blueprintWidth  int
	blueprintHeight int
	blueprintOffset valueobjects.Position
	nodes           []entities.Node
	nodeSequence    int64
	createdAt       time.Time
	updatedAt       time.Time
	version         int
	events          []events.DomainEvent
}

// Snapshot is the flat, storage-friendly form of a Diagram
type Snapshot struct {
	ID              int64                 `json:"id"`
	Title           string                `json:"title"`
	BlueprintURL    string                `json:"blueprintUrl"`
	BlueprintWidth  int                   `json:"blueprintWidth,omitempty"`
	BlueprintHeight int                   `json:"blueprintHeight,omitempty"`
	BlueprintOffset valueobjects.Position `json:"blueprintOffset"`
	Nodes           []entities.Node       `json:"nodes"`
	NodeSequence    int64                 `json:"nodeSequence"`
	CreatedAt       time.Time             `json:"createdAt"`
	UpdatedAt       time.Time             `json:"updatedAt"`
	Version         int                   `json:"version"`
}

// Blueprint describes the uploaded background image
type Blueprint struct {
	URL    string
	Width  int
	Height int
}

// NewDiagram creates an unsaved diagram. The id is assigned by the
// repository on first save.
func NewDiagram(title string, blueprint Blueprint, cfg *config.DomainConfig) (*Diagram, error) {
	if blueprint.URL == "" {
		return nil, pkgerrors.NewValidationError("blueprint url is required")
	}
	t, err := valueobjects.NewTitleWithConfig(title, cfg)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &Diagram{
		title:           t,
		blueprintURL:    blueprint.URL,
		blueprintWidth:  blueprint.Width,
		blueprintHeight: blueprint.Height,
		nodes:           []entities.Node{},
		createdAt:       now,
		updatedAt:       now,
		version:         1,
		events:          []events.DomainEvent{},
	}, nil
}

// ReconstructDiagram recreates a diagram from stored data
func ReconstructDiagram(s Snapshot) (*Diagram, error) {
	if s.ID <= 0 {
		return nil, errors.New("diagram id must be positive for reconstruction")
	}
	if s.BlueprintURL == "" {
		return nil, errors.New("blueprint url missing for reconstruction")
	}

	nodes := make([]entities.Node, len(s.Nodes))
	for i, n := range s.Nodes {
		nodes[i] = n.Normalized()
	}

	seq := s.NodeSequence
	if floor := sequenceFloor(nodes); floor > seq {
		seq = floor
	}

	return &Diagram{
		id:              s.ID,
		title:           titleOrRaw(s.Title),
		blueprintURL:    s.BlueprintURL,
		blueprintWidth:  s.BlueprintWidth,
		blueprintHeight: s.BlueprintHeight,
		blueprintOffset: s.BlueprintOffset,
		nodes:           nodes,
		nodeSequence:    seq,
		createdAt:       s.CreatedAt,
		updatedAt:       s.UpdatedAt,
		version:         s.Version,
		events:          []events.DomainEvent{},
	}, nil
}

// Getters

func (d *Diagram) ID() int64                              { return d.id }
func (d *Diagram) Title() string                          { return d.title.String() }
func (d *Diagram) BlueprintURL() string                   { return d.blueprintURL }
func (d *Diagram) BlueprintOffset() valueobjects.Position { return d.blueprintOffset }
func (d *Diagram) NodeSequence() int64                    { return d.nodeSequence }
func (d *Diagram) CreatedAt() time.Time                   { return d.createdAt }
func (d *Diagram) UpdatedAt() time.Time                   { return d.updatedAt }
func (d *Diagram) Version() int                           { return d.version }

// BlueprintSize returns the stored image dimensions, zero when unknown
func (d *Diagram) BlueprintSize() (width, height int) {
	return d.blueprintWidth, d.blueprintHeight
}

// Nodes returns a copy of the node list in insertion order
func (d *Diagram) Nodes() []entities.Node {
	return entities.CloneNodes(d.nodes)
}

// AssignID records the identity handed out by storage. It may only be
// called once and raises DiagramCreated.
func (d *Diagram) AssignID(id int64) error {
	if d.id != 0 {
		return fmt.Errorf("diagram already has id %d", d.id)
	}
	if id <= 0 {
		return fmt.Errorf("invalid diagram id %d", id)
	}
	d.id = id
	d.addEvent(events.NewDiagramCreated(id, d.title.String(), d.blueprintURL, d.createdAt))
	return nil
}

// ReplaceNodes overwrites the node list. The node sequence only moves
// forward: it becomes the maximum of its stored value, the highest ordinal
// found in the new ids and the list length.
func (d *Diagram) ReplaceNodes(nodes []entities.Node, cfg *config.DomainConfig) error {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	if len(nodes) > cfg.MaxNodesPerDiagram {
		return pkgerrors.NewValidationError(
			fmt.Sprintf("diagram cannot hold more than %d nodes", cfg.MaxNodesPerDiagram))
	}

	seen := make(map[string]struct{}, len(nodes))
	normalized := make([]entities.Node, len(nodes))
	for i, n := range nodes {
		if err := n.Validate(); err != nil {
			return err
		}
		if _, dup := seen[n.ID]; dup {
			return pkgerrors.NewValidationError(fmt.Sprintf("duplicate node id %q", n.ID)).
				WithCode("DUPLICATE_NODE_ID")
		}
		seen[n.ID] = struct{}{}
		normalized[i] = n.Normalized()
	}

	checksum, err := versioning.Checksum(normalized)
	if err != nil {
		return pkgerrors.NewInternalError("checksum node list").WithCause(err)
	}
	diff := versioning.Compare(d.nodes, normalized)

	if floor := sequenceFloor(normalized); floor > d.nodeSequence {
		d.nodeSequence = floor
	}
	d.nodes = normalized
	d.touch()
	d.addEvent(events.NewDiagramNodesSaved(d.id, len(normalized), d.nodeSequence, events.NodeChangeCounts{
		Added:   len(diff.Added),
		Removed: len(diff.Removed),
		Moved:   len(diff.Moved),
		Updated: len(diff.Updated),
	}, checksum, d.updatedAt))
	return nil
}

// Rename changes the diagram title
func (d *Diagram) Rename(title string, cfg *config.DomainConfig) error {
	t, err := valueobjects.NewTitleWithConfig(title, cfg)
	if err != nil {
		return err
	}
	if t == d.title {
		return nil
	}
	old := d.title.String()
	d.title = t
	d.touch()
	d.addEvent(events.NewDiagramRenamed(d.id, old, t.String(), d.updatedAt))
	return nil
}

// FixBlueprintPosition pins the background image at the given offset
func (d *Diagram) FixBlueprintPosition(p valueobjects.Position) error {
	if _, err := valueobjects.NewPosition(p.X, p.Y); err != nil {
		return pkgerrors.NewValidationError(err.Error())
	}
	d.blueprintOffset = p
	d.touch()
	d.addEvent(events.NewBlueprintRepositioned(d.id, p.X, p.Y, d.updatedAt))
	return nil
}

// Snapshot returns the storage form of the diagram
func (d *Diagram) Snapshot() Snapshot {
	return Snapshot{
		ID:              d.id,
		Title:           d.title.String(),
		BlueprintURL:    d.blueprintURL,
		BlueprintWidth:  d.blueprintWidth,
		BlueprintHeight: d.blueprintHeight,
		BlueprintOffset: d.blueprintOffset,
		Nodes:           d.Nodes(),
		NodeSequence:    d.nodeSequence,
		CreatedAt:       d.createdAt,
		UpdatedAt:       d.updatedAt,
		Version:         d.version,
	}
}

// GetUncommittedEvents returns events raised since the last commit
func (d *Diagram) GetUncommittedEvents() []events.DomainEvent {
	return d.events
}

// MarkEventsAsCommitted clears the pending event list
func (d *Diagram) MarkEventsAsCommitted() {
	d.events = []events.DomainEvent{}
}

func (d *Diagram) touch() {
	d.updatedAt = time.Now().UTC()
	d.version++
}

func (d *Diagram) addEvent(e events.DomainEvent) {
	d.events = append(d.events, e)
}

func sequenceFloor(nodes []entities.Node) int64 {
	floor := valueobjects.MaxOrdinal(entities.NodeIDs(nodes))
	if n := int64(len(nodes)); n > floor {
		floor = n
	}
	return floor
}

// titleOrRaw keeps stored titles even if they no longer satisfy the
// current length limit
func titleOrRaw(raw string) valueobjects.Title {
	if t, err := valueobjects.NewTitle(raw); err == nil {
		return t
	}
	return valueobjects.TitleFromStorage(raw)
}
