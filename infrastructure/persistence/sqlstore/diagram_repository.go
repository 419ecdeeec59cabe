package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"blueprint-editor/application/ports"
	"blueprint-editor/domain/core/aggregates"
	"blueprint-editor/domain/core/entities"
	"blueprint-editor/domain/core/valueobjects"
	"blueprint-editor/infrastructure/persistence/schema"
	pkgerrors "blueprint-editor/pkg/errors"

	"go.uber.org/zap"
)

// DiagramRepository implements ports.DiagramRepository over database/sql
type DiagramRepository struct {
	db      *sql.DB
	dialect Dialect
	logger  *zap.Logger
}

// NewDiagramRepository creates a new repository
func NewDiagramRepository(db *sql.DB, d Dialect, logger *zap.Logger) *DiagramRepository {
	return &DiagramRepository{db: db, dialect: d, logger: logger}
}

const diagramColumns = `id, title, blueprint_url, blueprint_width, blueprint_height,
	blueprint_offset_x, blueprint_offset_y, nodes, node_sequence, version, created_at, updated_at`

// Create inserts a diagram and returns the generated id
func (r *DiagramRepository) Create(ctx context.Context, diagram *aggregates.Diagram) (int64, error) {
	s := diagram.Snapshot()
	nodes, err := encodeNodes(s.Nodes)
	if err != nil {
		return 0, err
	}

	query := r.dialect.Rebind(`INSERT INTO diagrams
	(title, blueprint_url, blueprint_width, blueprint_height, blueprint_offset_x, blueprint_offset_y,
	 nodes, node_count, node_sequence, version, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	RETURNING id`)

	var id int64
	err = r.db.QueryRowContext(ctx, query,
		s.Title, s.BlueprintURL, s.BlueprintWidth, s.BlueprintHeight,
		s.BlueprintOffset.X, s.BlueprintOffset.Y,
		nodes, len(s.Nodes), s.NodeSequence, s.Version,
		r.dialect.TimeArg(s.CreatedAt), r.dialect.TimeArg(s.UpdatedAt),
	).Scan(&id)
	if err != nil {
		r.logger.Error("Failed to insert diagram", zap.Error(err))
		return 0, fmt.Errorf("insert diagram: %w", err)
	}
	return id, nil
}

// GetByID loads one diagram
func (r *DiagramRepository) GetByID(ctx context.Context, id int64) (*aggregates.Diagram, error) {
	row := r.db.QueryRowContext(ctx,
		r.dialect.Rebind(`SELECT `+diagramColumns+` FROM diagrams WHERE id = ?`), id)

	var (
		s                aggregates.Snapshot
		rawNodes         []byte
		created, updated sqlTime
		offsetX, offsetY float64
	)
	err := row.Scan(&s.ID, &s.Title, &s.BlueprintURL, &s.BlueprintWidth, &s.BlueprintHeight,
		&offsetX, &offsetY, &rawNodes, &s.NodeSequence, &s.Version, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.NewDiagramNotFoundError(id)
	}
	if err != nil {
		return nil, fmt.Errorf("select diagram %d: %w", id, err)
	}

	if s.Nodes, err = decodeNodes(rawNodes); err != nil {
		return nil, fmt.Errorf("diagram %d: %w", id, err)
	}
	s.BlueprintOffset = valueobjects.Position{X: offsetX, Y: offsetY}
	s.CreatedAt, s.UpdatedAt = created.Time, updated.Time
	return aggregates.ReconstructDiagram(s)
}

// SaveNodes overwrites the node list. The stored sequence never moves
// backwards even if a stale writer submits a lower one.
func (r *DiagramRepository) SaveNodes(ctx context.Context, id int64, nodes []entities.Node, sequence int64) error {
	encoded, err := encodeNodes(nodes)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, r.dialect.Rebind(`UPDATE diagrams SET
		nodes = ?, node_count = ?,
		node_sequence = CASE WHEN node_sequence > ? THEN node_sequence ELSE ? END,
		version = version + 1, updated_at = ?
	WHERE id = ?`),
		encoded, len(nodes), sequence, sequence, r.dialect.TimeArg(nowUTC()), id)
	if err != nil {
		return fmt.Errorf("update nodes of diagram %d: %w", id, err)
	}
	return expectOneRow(res, id)
}

// Update persists the title and blueprint offset
func (r *DiagramRepository) Update(ctx context.Context, diagram *aggregates.Diagram) error {
	offset := diagram.BlueprintOffset()
	res, err := r.db.ExecContext(ctx, r.dialect.Rebind(`UPDATE diagrams SET
		title = ?, blueprint_offset_x = ?, blueprint_offset_y = ?, version = ?, updated_at = ?
	WHERE id = ?`),
		diagram.Title(), offset.X, offset.Y, diagram.Version(), r.dialect.TimeArg(diagram.UpdatedAt()), diagram.ID())
	if err != nil {
		return fmt.Errorf("update diagram %d: %w", diagram.ID(), err)
	}
	return expectOneRow(res, diagram.ID())
}

// List returns summaries newest first. Ids are issued in creation order so
// they break timestamp ties.
func (r *DiagramRepository) List(ctx context.Context, opts ports.ListOptions) ([]ports.DiagramSummary, error) {
	query := `SELECT id, title, blueprint_url, node_count, created_at, updated_at
	FROM diagrams ORDER BY id DESC`
	var args []interface{}
	if opts.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, opts.Limit, opts.Offset)
	}

	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list diagrams: %w", err)
	}
	defer rows.Close()

	out := []ports.DiagramSummary{}
	for rows.Next() {
		var d ports.DiagramSummary
		var created, updated sqlTime
		if err := rows.Scan(&d.ID, &d.Title, &d.BlueprintURL, &d.NodeCount, &created, &updated); err != nil {
			return nil, err
		}
		d.CreatedAt, d.UpdatedAt = created.Time, updated.Time
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if opts.Limit <= 0 && opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return []ports.DiagramSummary{}, nil
		}
		out = out[opts.Offset:]
	}
	return out, nil
}

func expectOneRow(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return pkgerrors.NewDiagramNotFoundError(id)
	}
	return nil
}

func encodeNodes(nodes []entities.Node) (string, error) {
	if nodes == nil {
		nodes = []entities.Node{}
	}
	b, err := json.Marshal(nodes)
	if err != nil {
		return "", fmt.Errorf("encode nodes: %w", err)
	}
	return string(b), nil
}

func decodeNodes(raw []byte) ([]entities.Node, error) {
	if len(raw) == 0 {
		return []entities.Node{}, nil
	}
	doc, _, err := schema.UnmarshalWithSchema(raw)
	if err != nil {
		return nil, fmt.Errorf("decode nodes: %w", err)
	}
	nodes := []entities.Node{}
	if err := json.Unmarshal(doc, &nodes); err != nil {
		return nil, fmt.Errorf("decode nodes: %w", err)
	}
	return nodes, nil
}
