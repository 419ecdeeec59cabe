package valueobjects

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// NodeID identifies a node within one diagram. Symbol nodes use the form
// "<symbolId>-<ordinal>".
type NodeID struct {
	value string
}

// NewNodeID creates a node id from a prefix and ordinal
func NewNodeID(prefix string, ordinal int64) NodeID {
	return NodeID{value: fmt.Sprintf("%s-%d", prefix, ordinal)}
}

// NewNodeIDFromString creates a NodeID from an existing string
func NewNodeIDFromString(id string) (NodeID, error) {
	if strings.TrimSpace(id) == "" {
		return NodeID{}, errors.New("node ID cannot be empty")
	}
	return NodeID{value: id}, nil
}

// String returns the string representation of the NodeID
func (id NodeID) String() string {
	return id.value
}

// Equals checks if two NodeIDs are equal
func (id NodeID) Equals(other NodeID) bool {
	return id.value == other.value
}

// IsZero checks if the NodeID is the zero value
func (id NodeID) IsZero() bool {
	return id.value == ""
}

// Ordinal extracts the trailing "-<n>" ordinal. ok is false when the id
// has no numeric suffix.
func (id NodeID) Ordinal() (n int64, ok bool) {
	i := strings.LastIndexByte(id.value, '-')
	if i < 0 || i == len(id.value)-1 {
		return 0, false
	}
	n, err := strconv.ParseInt(id.value[i+1:], 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// MaxOrdinal returns the highest ordinal among ids, or 0
func MaxOrdinal(ids []string) int64 {
	var max int64
	for _, raw := range ids {
		if n, ok := (NodeID{value: raw}).Ordinal(); ok && n > max {
			max = n
		}
	}
	return max
}
