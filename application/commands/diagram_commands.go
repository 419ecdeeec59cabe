package commands

import (
	"io"

	"blueprint-editor/domain/core/entities"
	"blueprint-editor/domain/versioning"
	pkgerrors "blueprint-editor/pkg/errors"
	"blueprint-editor/pkg/utils"
)

// CreateDiagramCommand creates a diagram over an already stored blueprint
type CreateDiagramCommand struct {
	Title           string `json:"title" validate:"max=1024"`
	BlueprintURL    string `json:"blueprintUrl" validate:"required"`
	BlueprintWidth  int    `json:"blueprintWidth" validate:"min=0"`
	BlueprintHeight int    `json:"blueprintHeight" validate:"min=0"`
}

// Validate validates the command
func (c CreateDiagramCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// CreateDiagramResult is returned by CreateDiagramCommand
type CreateDiagramResult struct {
	DiagramID int64 `json:"id"`
}

// SaveNodesCommand overwrites the stored node list of a diagram
type SaveNodesCommand struct {
	DiagramID int64           `json:"diagramId" validate:"gt=0"`
	Nodes     []entities.Node `json:"nodes"`
}

// Validate validates the command. A nil list is not a valid save.
func (c SaveNodesCommand) Validate() error {
	if err := utils.ValidateStruct(c); err != nil {
		return err
	}
	if c.Nodes == nil {
		return pkgerrors.NewValidationError("nodes is required")
	}
	return nil
}

// SaveNodesResult is returned by SaveNodesCommand
type SaveNodesResult struct {
	DiagramID    int64                `json:"id"`
	NodeCount    int                  `json:"nodeCount"`
	NodeSequence int64                `json:"nodeSequence"`
	Changes      versioning.NodesDiff `json:"changes"`
}

// RenameDiagramCommand changes a diagram title
type RenameDiagramCommand struct {
	DiagramID int64  `json:"diagramId" validate:"gt=0"`
	Title     string `json:"title" validate:"required"`
}

// Validate validates the command
func (c RenameDiagramCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// SetBlueprintPositionCommand pins the blueprint image offset
type SetBlueprintPositionCommand struct {
	DiagramID int64   `json:"diagramId" validate:"gt=0"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
}

// Validate validates the command
func (c SetBlueprintPositionCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// UploadFile is one file part of an upload request
type UploadFile struct {
	Name string
	Size int64
	Body io.ReadSeeker
}

// UploadBlueprintCommand stores a blueprint image and opens a diagram on it
type UploadBlueprintCommand struct {
	Files []UploadFile
}

// Validate leaves file checks to the handler, which owns the upload limits
func (c UploadBlueprintCommand) Validate() error {
	for _, f := range c.Files {
		if f.Body == nil {
			return pkgerrors.NewValidationError("file body is missing")
		}
	}
	return nil
}

// UploadBlueprintResult is returned by UploadBlueprintCommand
type UploadBlueprintResult struct {
	DiagramID int64  `json:"id"`
	URL       string `json:"url"`
	Pathname  string `json:"pathname"`
	Size      int64  `json:"size"`
	Type      string `json:"contentType"`
	Checksum  string `json:"checksum"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}
