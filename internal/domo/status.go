package domo

import (
	"strings"

	"github.com/nerrad567/domo-bridge/internal/element"
)

// StatusSnapshots extracts per-element status snapshots from a bulk
// status document.
//
// Each ElementStatus entry is keyed by its ElementPath text; entries
// without a path are skipped. The returned map covers every element
// the panel reported, including ones not present in the catalog;
// filtering against known elements is the caller's concern.
func (d *Document) StatusSnapshots() map[string]element.Snapshot {
	snapshots := make(map[string]element.Snapshot)
	for _, status := range d.FindAll("ElementStatus") {
		path := strings.TrimSpace(status.FindText("ElementPath"))
		if path == "" {
			continue
		}
		snapshots[path] = extractSnapshot(status)
	}
	return snapshots
}

// Snapshot extracts the status snapshot from a single-element status
// document, whose root carries Status children directly.
func (d *Document) Snapshot() element.Snapshot {
	return extractSnapshot(&d.root)
}

// extractSnapshot scans a node's direct Status children. A Status tag
// either carries an explicit id attribute and a nested value, or (for
// presence-only flags) no id, with the flag name as its own text.
func extractSnapshot(n *Node) element.Snapshot {
	snap := element.NewSnapshot()
	for i := range n.Children {
		status := &n.Children[i]
		if status.XMLName.Local != "Status" {
			continue
		}

		id, ok := status.Attr("id")
		if !ok {
			if name := strings.TrimSpace(status.Text); name != "" {
				snap.SetFlag(name)
			}
			continue
		}

		if value := status.Find("value"); value != nil && value.Text != "" {
			snap.SetValue(id, value.Text)
		} else {
			snap.SetFlag(id)
		}
	}
	return snap
}
