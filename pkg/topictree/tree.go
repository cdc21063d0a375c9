// Package topictree turns a flat reading-order outline into a hierarchy whose
// sibling order restarts at 1 under every parent.
package topictree

import (
	"fmt"
	"strings"
)

// DefaultRootName is used when outline extraction yields nothing.
const DefaultRootName = "Full content"

// OutlineEntry is one line of an extracted table of contents.
type OutlineEntry struct {
	Name  string `json:"name"`
	Level int    `json:"level"`
	Page  int    `json:"page"`
}

// Node is a built topic. ParentIndex is -1 for roots. Sequence is the
// 1-based global reading order across the whole book.
type Node struct {
	Index       int
	ParentIndex int
	Name        string
	Level       int
	Order       int
	Sequence    int
	Page        int
}

const rootKey = -1

// Build assigns parents and per-parent orders. For an entry at level L its
// parent is the last node seen at L-1; deeper levels recorded before it are
// forgotten so a new sibling opens a fresh branch. Level jumps attach to the
// nearest shallower level that has a node.
func Build(entries []OutlineEntry) []Node {
	nodes := make([]Node, 0, len(entries))
	lastAtLevel := make(map[int]int)
	counters := make(map[int]int)

	for i, e := range entries {
		level := e.Level
		if level < 1 {
			level = 1
		}

		parent := rootKey
		for l := level - 1; l >= 1; l-- {
			if idx, ok := lastAtLevel[l]; ok {
				parent = idx
				break
			}
		}
		if parent == rootKey {
			level = 1
		} else if level > nodes[parent].Level+1 {
			level = nodes[parent].Level + 1
		}

		counters[parent]++
		nodes = append(nodes, Node{
			Index:       i,
			ParentIndex: parent,
			Name:        strings.TrimSpace(e.Name),
			Level:       level,
			Order:       counters[parent],
			Sequence:    i + 1,
			Page:        e.Page,
		})

		lastAtLevel[level] = i
		for l := range lastAtLevel {
			if l > level {
				delete(lastAtLevel, l)
			}
		}
	}
	return nodes
}

// DefaultOutline is the single-topic outline covering the whole document.
func DefaultOutline() []OutlineEntry {
	return []OutlineEntry{{Name: DefaultRootName, Level: 1, Page: 1}}
}

// PageRange is an inclusive page span.
type PageRange struct {
	Start int
	End   int
}

// PageRanges gives each node the pages from its start page up to the page
// before the next node starts. The last node runs to pageCount.
func PageRanges(nodes []Node, pageCount int) []PageRange {
	ranges := make([]PageRange, len(nodes))
	for i, n := range nodes {
		start := n.Page
		if start < 1 {
			start = 1
		}
		end := pageCount
		if i+1 < len(nodes) {
			end = nodes[i+1].Page - 1
		}
		if end < start {
			end = start
		}
		ranges[i] = PageRange{Start: start, End: end}
	}
	return ranges
}

// Descendants returns the indexes of every node below root, breadth-first,
// using an explicit worklist.
func Descendants(nodes []Node, root int) []int {
	children := make(map[int][]int, len(nodes))
	for _, n := range nodes {
		children[n.ParentIndex] = append(children[n.ParentIndex], n.Index)
	}

	var out []int
	seen := map[int]bool{root: true}
	queue := append([]int(nil), children[root]...)
	for len(queue) > 0 {
		idx := queue[0]
		queue = queue[1:]
		if seen[idx] {
			continue
		}
		seen[idx] = true
		out = append(out, idx)
		queue = append(queue, children[idx]...)
	}
	return out
}

// Breadcrumb renders "Parent > Topic (level L, order O)".
func Breadcrumb(parentName, name string, level, order int) string {
	if parentName == "" {
		return fmt.Sprintf("%s (level %d, order %d)", name, level, order)
	}
	return fmt.Sprintf("%s > %s (level %d, order %d)", parentName, name, level, order)
}
