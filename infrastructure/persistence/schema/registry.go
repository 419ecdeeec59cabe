package schema

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"blueprint-editor/domain/core/entities"
	pkgerrors "blueprint-editor/pkg/errors"

	"github.com/xeipuuv/gojsonschema"
)

// EntityNodeList names the persisted node-list document
const EntityNodeList = "node-list"

//go:embed node_list.schema.json
var nodeListSchema []byte

// SchemaRegistry holds compiled JSON schemas per entity type and version
type SchemaRegistry struct {
	mu      sync.RWMutex
	schemas map[string]map[int]*gojsonschema.Schema
}

// NewSchemaRegistry creates a registry with the built-in schemas loaded
func NewSchemaRegistry() (*SchemaRegistry, error) {
	r := &SchemaRegistry{schemas: make(map[string]map[int]*gojsonschema.Schema)}
	if err := r.RegisterSchema(EntityNodeList, 1, nodeListSchema); err != nil {
		return nil, err
	}
	return r, nil
}

// RegisterSchema compiles and registers a schema version
func (r *SchemaRegistry) RegisterSchema(entityType string, version int, document []byte) error {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(document))
	if err != nil {
		return fmt.Errorf("compile %s v%d schema: %w", entityType, version, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.schemas[entityType] == nil {
		r.schemas[entityType] = make(map[int]*gojsonschema.Schema)
	}
	r.schemas[entityType][version] = compiled
	return nil
}

// latest returns the highest registered version of an entity's schema
func (r *SchemaRegistry) latest(entityType string) (*gojsonschema.Schema, int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	best := 0
	var schema *gojsonschema.Schema
	for v, s := range r.schemas[entityType] {
		if v > best {
			best, schema = v, s
		}
	}
	return schema, best, schema != nil
}

// Validate checks a JSON document against the latest schema of an entity
// type and returns the list of problems found
func (r *SchemaRegistry) Validate(entityType string, document []byte) ([]string, error) {
	schema, _, ok := r.latest(entityType)
	if !ok {
		return nil, fmt.Errorf("schema not found for %s", entityType)
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(document))
	if err != nil {
		return nil, fmt.Errorf("validate %s: %w", entityType, err)
	}
	if result.Valid() {
		return nil, nil
	}
	problems := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		problems = append(problems, e.String())
	}
	return problems, nil
}

// ValidateNodes checks a node list against the node-list contract. Any
// mismatch is an INVALID_NODE_LIST validation error.
func (r *SchemaRegistry) ValidateNodes(nodes []entities.Node) error {
	if nodes == nil {
		nodes = []entities.Node{}
	}
	doc, err := json.Marshal(nodes)
	if err != nil {
		return pkgerrors.NewInvalidNodeListError([]string{err.Error()})
	}
	problems, err := r.Validate(EntityNodeList, doc)
	if err != nil {
		return pkgerrors.NewInternalError("node list schema unavailable").WithCause(err)
	}
	if len(problems) > 0 {
		return pkgerrors.NewInvalidNodeListError(problems)
	}
	return nil
}

// MarshalWithSchema marshals data with schema information
func MarshalWithSchema(data interface{}, schemaVersion int) ([]byte, error) {
	wrapper := struct {
		SchemaVersion int         `json:"_schema_version"`
		Data          interface{} `json:"data"`
	}{
		SchemaVersion: schemaVersion,
		Data:          data,
	}
	return json.Marshal(wrapper)
}

// UnmarshalWithSchema unwraps a document written by MarshalWithSchema. A
// bare document without the wrapper is returned as version 0.
func UnmarshalWithSchema(data []byte) (json.RawMessage, int, error) {
	var wrapper struct {
		SchemaVersion int             `json:"_schema_version"`
		Data          json.RawMessage `json:"data"`
	}
	if len(data) > 0 && data[0] == '[' {
		return json.RawMessage(data), 0, nil
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, 0, err
	}
	return wrapper.Data, wrapper.SchemaVersion, nil
}
