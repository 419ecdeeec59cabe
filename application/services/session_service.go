package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"blueprint-editor/application/commands"
	commandbus "blueprint-editor/application/commands/bus"
	"blueprint-editor/application/ports"
	"blueprint-editor/application/queries"
	querybus "blueprint-editor/application/queries/bus"
	"blueprint-editor/domain/catalog"
	"blueprint-editor/domain/config"
	"blueprint-editor/domain/core/entities"
	"blueprint-editor/domain/core/valueobjects"
	"blueprint-editor/domain/editor"
	pkgerrors "blueprint-editor/pkg/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// session is one open editor. The mutex serialises every interaction so
// the ToolStore and Canvas never see concurrent use.
type session struct {
	mu sync.Mutex

	id              string
	diagramID       int64
	title           string
	blueprintURL    string
	blueprintWidth  int
	blueprintHeight int
	blueprintOffset valueobjects.Position
	canvas          *editor.Canvas
	dirty           bool
	revision        int64
	lastUsed        time.Time
}

// SessionState is the snapshot returned after every interaction
type SessionState struct {
	ID              string                `json:"id"`
	DiagramID       int64                 `json:"diagramId,omitempty"`
	Transient       bool                  `json:"transient"`
	Title           string                `json:"title,omitempty"`
	BlueprintURL    string                `json:"blueprintUrl"`
	BlueprintWidth  int                   `json:"blueprintWidth,omitempty"`
	BlueprintHeight int                   `json:"blueprintHeight,omitempty"`
	BlueprintOffset valueobjects.Position `json:"blueprintOffset"`
	Tool            editor.ToolState      `json:"tool"`
	Placement       editor.PlacementState `json:"placement"`
	Nodes           []entities.Node       `json:"nodes"`
	NodeSequence    int64                 `json:"nodeSequence"`
	Dirty           bool                  `json:"dirty"`
	Revision        int64                 `json:"revision"`
}

// ClickResult reports what a canvas click did
type ClickResult struct {
	Placed bool           `json:"placed"`
	Node   *entities.Node `json:"node,omitempty"`
	State  SessionState   `json:"state"`
}

// SessionService keeps the editing sessions of this process. Diagrams are
// read through the query bus and saved through the command bus so the
// cache invalidation rules of those handlers apply.
type SessionService struct {
	cmdBus   *commandbus.CommandBus
	queryBus *querybus.QueryBus
	catalog  *catalog.Catalog
	notifier ports.Notifier
	metrics  ports.BusinessMetrics
	config   *config.DomainConfig
	logger   *zap.Logger
	now      func() time.Time

	mu       sync.RWMutex
	sessions map[string]*session
}

// NewSessionService creates a session registry
func NewSessionService(
	cmdBus *commandbus.CommandBus,
	queryBus *querybus.QueryBus,
	symbols *catalog.Catalog,
	notifier ports.Notifier,
	metrics ports.BusinessMetrics,
	cfg *config.DomainConfig,
	logger *zap.Logger,
) *SessionService {
	return &SessionService{
		cmdBus:   cmdBus,
		queryBus: queryBus,
		catalog:  symbols,
		notifier: notifier,
		metrics:  metrics,
		config:   cfg,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*session),
	}
}

// Open starts a session on a saved diagram
func (s *SessionService) Open(ctx context.Context, diagramID int64) (SessionState, error) {
	result, err := s.queryBus.Ask(ctx, queries.GetDiagramQuery{DiagramID: diagramID})
	if err != nil {
		return SessionState{}, err
	}
	view, ok := result.(*queries.DiagramView)
	if !ok {
		return SessionState{}, pkgerrors.NewInternalError("unexpected diagram query result")
	}

	sess := &session{
		id:              uuid.NewString(),
		diagramID:       view.ID,
		title:           view.Title,
		blueprintURL:    view.BlueprintURL,
		blueprintWidth:  view.BlueprintWidth,
		blueprintHeight: view.BlueprintHeight,
		blueprintOffset: view.BlueprintOffset,
		// The view may be shared with the cache, so the canvas gets a copy
		canvas:   editor.NewCanvas(editor.NewToolStore(), entities.CloneNodes(view.Nodes), view.NodeSequence),
		lastUsed: s.now(),
	}
	s.add(sess)

	s.logger.Info("Session opened",
		zap.String("session_id", sess.id),
		zap.Int64("diagram_id", diagramID),
		zap.Int("node_count", sess.canvas.Len()),
	)
	return sess.state(), nil
}

// OpenBlueprint starts a transient board over a blueprint url. The board
// starts empty and cannot be saved.
func (s *SessionService) OpenBlueprint(_ context.Context, blueprintURL string) (SessionState, error) {
	if blueprintURL == "" {
		return SessionState{}, pkgerrors.NewValidationError("blueprintUrl is required")
	}
	sess := &session{
		id:           uuid.NewString(),
		blueprintURL: blueprintURL,
		canvas:       editor.NewCanvas(editor.NewToolStore(), nil, 0),
		lastUsed:     s.now(),
	}
	s.add(sess)

	s.logger.Info("Transient board opened", zap.String("session_id", sess.id))
	return sess.state(), nil
}

// State returns the current session snapshot
func (s *SessionService) State(id string) (SessionState, error) {
	var st SessionState
	err := s.with(id, false, func(sess *session) error {
		st = sess.state()
		return nil
	})
	return st, err
}

// ChooseSymbol picks a catalog symbol from the palette
func (s *SessionService) ChooseSymbol(id, symbolID string) (SessionState, error) {
	symbol, ok := s.catalog.Lookup(symbolID)
	if !ok {
		return SessionState{}, pkgerrors.NewUnknownSymbolError(symbolID)
	}
	return s.mutate(id, func(sess *session) error {
		sess.canvas.Store().ChooseSymbol(symbol)
		return nil
	})
}

// ResetPendingSymbol clears the pending symbol
func (s *SessionService) ResetPendingSymbol(id string) (SessionState, error) {
	return s.mutate(id, func(sess *session) error {
		sess.canvas.Store().ResetPendingSymbol()
		return nil
	})
}

// SetTool selects a tool by name
func (s *SessionService) SetTool(id, name string) (SessionState, error) {
	tool, err := valueobjects.ParseTool(name)
	if err != nil {
		return SessionState{}, pkgerrors.NewValidationError(err.Error())
	}
	return s.mutate(id, func(sess *session) error {
		sess.canvas.Store().SetSelectedTool(tool)
		return nil
	})
}

// ResetTool returns the session to the move tool
func (s *SessionService) ResetTool(id string) (SessionState, error) {
	return s.mutate(id, func(sess *session) error {
		sess.canvas.Store().ResetSelectedTool()
		return nil
	})
}

// Click feeds a canvas click to the placement machine. Clicks without the
// canvas bounds are rejected before the machine runs.
func (s *SessionService) Click(id string, clientX, clientY float64, bounds *editor.Bounds) (ClickResult, error) {
	if bounds == nil {
		return ClickResult{}, pkgerrors.NewValidationError("click bounds are required")
	}
	if _, err := valueobjects.NewPosition(clientX, clientY); err != nil {
		return ClickResult{}, pkgerrors.NewValidationError(err.Error())
	}

	var res ClickResult
	st, err := s.mutate(id, func(sess *session) error {
		node, placed := sess.canvas.Click(editor.ClickEvent{ClientX: clientX, ClientY: clientY, Bounds: *bounds})
		if placed {
			sess.dirty = true
			res.Placed = true
			res.Node = &node
			if s.metrics != nil {
				s.metrics.RecordPlacement(node.Data.ID)
			}
		}
		return nil
	})
	if err != nil {
		return ClickResult{}, err
	}
	res.State = st
	return res, nil
}

// ApplyChanges applies move-tool edits and returns how many took effect
func (s *SessionService) ApplyChanges(id string, changes []editor.NodeChange) (int, SessionState, error) {
	var applied int
	st, err := s.mutate(id, func(sess *session) error {
		applied = sess.canvas.ApplyNodeChanges(changes)
		if applied > 0 {
			sess.dirty = true
		}
		return nil
	})
	return applied, st, err
}

// Save submits the canvas node list. The dirty flag clears only after the
// save is acknowledged.
func (s *SessionService) Save(ctx context.Context, id string) (*commands.SaveNodesResult, error) {
	var saved *commands.SaveNodesResult
	_, err := s.mutate(id, func(sess *session) error {
		if sess.diagramID == 0 {
			return pkgerrors.NewTransientBoardError()
		}

		result, err := s.cmdBus.Dispatch(ctx, commands.SaveNodesCommand{
			DiagramID: sess.diagramID,
			Nodes:     sess.canvas.Nodes(),
		})
		if err != nil {
			return err
		}
		r, ok := result.(*commands.SaveNodesResult)
		if !ok {
			return pkgerrors.NewInternalError("unexpected save result")
		}
		saved = r
		sess.dirty = false
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// Close ends a session and disconnects its subscribers
func (s *SessionService) Close(id string) error {
	s.mu.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return pkgerrors.NewSessionNotFoundError(id)
	}
	if s.notifier != nil {
		s.notifier.CloseSession(id)
	}
	s.logger.Info("Session closed", zap.String("session_id", id))
	return nil
}

// Exists reports whether a session is open
func (s *SessionService) Exists(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sessions[id]
	return ok
}

// Count returns the number of open sessions
func (s *SessionService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// IDs returns the open session ids in sorted order
func (s *SessionService) IDs() []string {
	s.mu.RLock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// EvictIdle closes sessions unused for longer than the session timeout and
// returns how many were closed
func (s *SessionService) EvictIdle() int {
	cutoff := s.now().Add(-s.config.SessionTimeout)

	s.mu.RLock()
	var stale []string
	for id, sess := range s.sessions {
		sess.mu.Lock()
		if sess.lastUsed.Before(cutoff) {
			stale = append(stale, id)
		}
		sess.mu.Unlock()
	}
	s.mu.RUnlock()

	for _, id := range stale {
		if err := s.Close(id); err == nil {
			s.logger.Debug("Idle session evicted", zap.String("session_id", id))
		}
	}
	return len(stale)
}

// Run evicts idle sessions every interval until ctx is done
func (s *SessionService) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.EvictIdle(); n > 0 {
				s.logger.Info("Evicted idle sessions", zap.Int("count", n))
			}
		}
	}
}

func (s *SessionService) add(sess *session) {
	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()
}

// with runs fn under the session lock
func (s *SessionService) with(id string, touch bool, fn func(*session) error) error {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return pkgerrors.NewSessionNotFoundError(id)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if touch {
		sess.lastUsed = s.now()
	}
	return fn(sess)
}

// mutate runs fn under the session lock and broadcasts the new state.
// Broadcasting before the lock is released keeps frames in the order of
// the transitions that produced them.
func (s *SessionService) mutate(id string, fn func(*session) error) (SessionState, error) {
	var st SessionState
	err := s.with(id, true, func(sess *session) error {
		if err := fn(sess); err != nil {
			return err
		}
		sess.revision++
		st = sess.state()
		if s.notifier != nil {
			s.notifier.Broadcast(id, st)
		}
		return nil
	})
	if err != nil {
		return SessionState{}, err
	}
	return st, nil
}

func (sess *session) state() SessionState {
	return SessionState{
		ID:              sess.id,
		DiagramID:       sess.diagramID,
		Transient:       sess.diagramID == 0,
		Title:           sess.title,
		BlueprintURL:    sess.blueprintURL,
		BlueprintWidth:  sess.blueprintWidth,
		BlueprintHeight: sess.blueprintHeight,
		BlueprintOffset: sess.blueprintOffset,
		Tool:            sess.canvas.Store().Snapshot(),
		Placement:       sess.canvas.State(),
		Nodes:           sess.canvas.Nodes(),
		NodeSequence:    sess.canvas.Sequence(),
		Dirty:           sess.dirty,
		Revision:        sess.revision,
	}
}
