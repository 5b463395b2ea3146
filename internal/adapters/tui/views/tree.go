package views

import "depgraph/internal/application"

// EntryType tells what a tree entry stands for
type EntryType int

const (
	EntrySource    EntryType = iota // a source file; children are its nodes
	EntryNode                       // a node of the parent source; children are its dependents
	EntryDependent                  // a dependent of the parent; children are its own dependents
)

// Entry is one line of the browser tree
type Entry struct {
	Type     EntryType
	ID       string // node ID, or source path for EntrySource
	Info     application.NodeInfo
	Parent   *Entry
	Children []*Entry

	IsExpanded bool
	loaded     bool
}

// Depth returns the nesting level, 0 for sources
func (e *Entry) Depth() int {
	depth := 0
	for p := e.Parent; p != nil; p = p.Parent {
		depth++
	}
	return depth
}

// Expand marks the entry expanded
func (e *Entry) Expand() { e.IsExpanded = true }

// Collapse marks the entry collapsed
func (e *Entry) Collapse() { e.IsExpanded = false }

// SetChildren attaches loaded children
func (e *Entry) SetChildren(children []*Entry) {
	for _, c := range children {
		c.Parent = e
	}
	e.Children = children
	e.loaded = true
}

// onPath reports whether id already appears in the ancestry of e, which
// happens when dependents form a cycle.
func (e *Entry) onPath(id string) bool {
	for p := e; p != nil; p = p.Parent {
		if p.Type != EntrySource && p.ID == id {
			return true
		}
	}
	return false
}

// Flatten returns the visible entries in display order
func Flatten(roots []*Entry) []*Entry {
	var out []*Entry
	var walk func(e *Entry)
	walk = func(e *Entry) {
		out = append(out, e)
		if !e.IsExpanded {
			return
		}
		for _, c := range e.Children {
			walk(c)
		}
	}
	for _, r := range roots {
		walk(r)
	}
	return out
}
