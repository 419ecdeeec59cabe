package events

import (
	"strconv"
	"time"
)

// DomainEvent is the base interface for all domain events
// Events represent something that has happened in the past
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetVersion() int
}

// BaseEvent provides common event fields
type BaseEvent struct {
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	Version     int       `json:"version"`
}

func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e BaseEvent) GetVersion() int         { return e.Version }

func newBase(diagramID int64, eventType string, ts time.Time) BaseEvent {
	return BaseEvent{
		AggregateID: strconv.FormatInt(diagramID, 10),
		EventType:   eventType,
		Timestamp:   ts,
		Version:     1,
	}
}

// Event type names
const (
	TypeDiagramCreated        = "diagram.created"
	TypeDiagramNodesSaved     = "diagram.nodes_saved"
	TypeDiagramRenamed        = "diagram.renamed"
	TypeBlueprintRepositioned = "diagram.blueprint_repositioned"
	TypeBlueprintUploaded     = "blueprint.uploaded"
)

// DiagramCreated is raised when an uploaded blueprint becomes a diagram
type DiagramCreated struct {
	BaseEvent
	DiagramID    int64  `json:"diagram_id"`
	Title        string `json:"title"`
	BlueprintURL string `json:"blueprint_url"`
}

// NewDiagramCreated creates a DiagramCreated event
func NewDiagramCreated(id int64, title, blueprintURL string, ts time.Time) DiagramCreated {
	return DiagramCreated{
		BaseEvent:    newBase(id, TypeDiagramCreated, ts),
		DiagramID:    id,
		Title:        title,
		BlueprintURL: blueprintURL,
	}
}

// DiagramNodesSaved is raised when a node list overwrites the stored one
type DiagramNodesSaved struct {
	BaseEvent
	DiagramID    int64            `json:"diagram_id"`
	NodeCount    int              `json:"node_count"`
	NodeSequence int64            `json:"node_sequence"`
	Changes      NodeChangeCounts `json:"changes"`
	Checksum     string           `json:"checksum"`
}

// NodeChangeCounts summarises a save against the list it replaced
type NodeChangeCounts struct {
	Added   int `json:"added"`
	Removed int `json:"removed"`
	Moved   int `json:"moved"`
	Updated int `json:"updated"`
}

// NewDiagramNodesSaved creates a DiagramNodesSaved event
func NewDiagramNodesSaved(id int64, count int, seq int64, changes NodeChangeCounts, checksum string, ts time.Time) DiagramNodesSaved {
	return DiagramNodesSaved{
		BaseEvent:    newBase(id, TypeDiagramNodesSaved, ts),
		DiagramID:    id,
		NodeCount:    count,
		NodeSequence: seq,
		Changes:      changes,
		Checksum:     checksum,
	}
}

// DiagramRenamed is raised when a diagram title changes
type DiagramRenamed struct {
	BaseEvent
	DiagramID int64  `json:"diagram_id"`
	OldTitle  string `json:"old_title"`
	NewTitle  string `json:"new_title"`
}

// NewDiagramRenamed creates a DiagramRenamed event
func NewDiagramRenamed(id int64, oldTitle, newTitle string, ts time.Time) DiagramRenamed {
	return DiagramRenamed{
		BaseEvent: newBase(id, TypeDiagramRenamed, ts),
		DiagramID: id,
		OldTitle:  oldTitle,
		NewTitle:  newTitle,
	}
}

// BlueprintRepositioned is raised when the blueprint offset is fixed
type BlueprintRepositioned struct {
	BaseEvent
	DiagramID int64   `json:"diagram_id"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
}

// NewBlueprintRepositioned creates a BlueprintRepositioned event
func NewBlueprintRepositioned(id int64, x, y float64, ts time.Time) BlueprintRepositioned {
	return BlueprintRepositioned{
		BaseEvent: newBase(id, TypeBlueprintRepositioned, ts),
		DiagramID: id,
		X:         x,
		Y:         y,
	}
}

// BlueprintUploaded is raised after a blueprint file lands in blob storage
type BlueprintUploaded struct {
	BaseEvent
	Pathname string `json:"pathname"`
	URL      string `json:"url"`
	Size     int64  `json:"size"`
	Checksum string `json:"checksum"`
}

// NewBlueprintUploaded creates a BlueprintUploaded event. The aggregate is
// the blob pathname because no diagram exists yet.
func NewBlueprintUploaded(pathname, url string, size int64, checksum string, ts time.Time) BlueprintUploaded {
	return BlueprintUploaded{
		BaseEvent: BaseEvent{
			AggregateID: pathname,
			EventType:   TypeBlueprintUploaded,
			Timestamp:   ts,
			Version:     1,
		},
		Pathname: pathname,
		URL:      url,
		Size:     size,
		Checksum: checksum,
	}
}
