// Package versioning compares successive revisions of a diagram's node list
package versioning

import (
	"encoding/hex"
	"encoding/json"
	"sort"

	"blueprint-editor/domain/core/entities"

	"lukechampine.com/blake3"
)

// NodesDiff lists, by node id, how one node list differs from the one it
// replaces. Ids are sorted.
type NodesDiff struct {
	Added     []string `json:"added,omitempty"`
	Removed   []string `json:"removed,omitempty"`
	Moved     []string `json:"moved,omitempty"`
	Updated   []string `json:"updated,omitempty"`
	Unchanged int      `json:"unchanged"`
}

// Empty reports whether both lists hold the same nodes
func (d NodesDiff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Moved) == 0 && len(d.Updated) == 0
}

// Changed counts the nodes that differ in any way
func (d NodesDiff) Changed() int {
	return len(d.Added) + len(d.Removed) + len(d.Moved) + len(d.Updated)
}

// Compare diffs two node lists. A node whose only change is its position
// is moved; any other change, selection aside, makes it updated. Order in
// the lists is ignored.
func Compare(before, after []entities.Node) NodesDiff {
	old := make(map[string]entities.Node, len(before))
	for _, n := range before {
		old[n.ID] = n
	}

	var d NodesDiff
	for _, n := range after {
		prev, ok := old[n.ID]
		if !ok {
			d.Added = append(d.Added, n.ID)
			continue
		}
		delete(old, n.ID)

		prev.Selected, n.Selected = false, false
		switch {
		case prev == n:
			d.Unchanged++
		case prev.Type == n.Type && prev.Data == n.Data:
			d.Moved = append(d.Moved, n.ID)
		default:
			d.Updated = append(d.Updated, n.ID)
		}
	}
	for id := range old {
		d.Removed = append(d.Removed, id)
	}

	sort.Strings(d.Added)
	sort.Strings(d.Removed)
	sort.Strings(d.Moved)
	sort.Strings(d.Updated)
	return d
}

// Checksum is the BLAKE3 digest of the list's JSON encoding. Two lists
// with the same nodes in the same order share a checksum.
func Checksum(nodes []entities.Node) (string, error) {
	if nodes == nil {
		nodes = []entities.Node{}
	}
	data, err := json.Marshal(nodes)
	if err != nil {
		return "", err
	}
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
