// Package editor holds the interaction state of one editing session: the
// tool selection store and the canvas placement state machine.
package editor

import "blueprint-editor/domain/core/valueobjects"

// ToolState is a read-only copy of a ToolStore
type ToolState struct {
	SelectedTool  valueobjects.Tool    `json:"selectedTool"`
	PendingSymbol *valueobjects.Symbol `json:"pendingSymbol"`
}

// ToolStore records what the next canvas click does. One store exists per
// editing session and is handed to every component that reads or writes
// tool state; it is not safe for concurrent use on its own.
type ToolStore struct {
	selectedTool  valueobjects.Tool
	pendingSymbol *valueobjects.Symbol
}

// NewToolStore creates a store in its idle state
func NewToolStore() *ToolStore {
	return &ToolStore{selectedTool: valueobjects.DefaultTool}
}

// SetPendingSymbol records symbol as the next one to place. The selected
// tool is left alone; callers choosing from the palette use ChooseSymbol.
func (s *ToolStore) SetPendingSymbol(symbol valueobjects.Symbol) {
	sym := symbol
	s.pendingSymbol = &sym
}

// ResetPendingSymbol clears the pending symbol
func (s *ToolStore) ResetPendingSymbol() {
	s.pendingSymbol = nil
}

// SetSelectedTool activates tool. Values outside the closed tool set are
// ignored so the store never holds an unknown tool.
func (s *ToolStore) SetSelectedTool(tool valueobjects.Tool) {
	if !tool.IsValid() {
		return
	}
	s.selectedTool = tool
}

// ResetSelectedTool returns to the move tool
func (s *ToolStore) ResetSelectedTool() {
	s.selectedTool = valueobjects.DefaultTool
}

// ChooseSymbol is the palette action: the symbol becomes pending and the
// symbol placement tool is activated.
func (s *ToolStore) ChooseSymbol(symbol valueobjects.Symbol) {
	s.SetPendingSymbol(symbol)
	s.SetSelectedTool(valueobjects.ToolSymbolPlacement)
}

// PendingSymbol returns the symbol awaiting placement, if any
func (s *ToolStore) PendingSymbol() (valueobjects.Symbol, bool) {
	if s.pendingSymbol == nil {
		return valueobjects.Symbol{}, false
	}
	return *s.pendingSymbol, true
}

// SelectedTool returns the active tool
func (s *ToolStore) SelectedTool() valueobjects.Tool {
	return s.selectedTool
}

// Snapshot copies the current state
func (s *ToolStore) Snapshot() ToolState {
	st := ToolState{SelectedTool: s.selectedTool}
	if s.pendingSymbol != nil {
		sym := *s.pendingSymbol
		st.PendingSymbol = &sym
	}
	return st
}
