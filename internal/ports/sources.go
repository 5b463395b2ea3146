package ports

import (
	"os/exec"

	"depgraph/internal/domain"
)

// SourceFile is an input artifact discovered on disk.
type SourceFile struct {
	Source  domain.NodeSource
	AbsPath string
	Digest  string // sha256 of content
}

// SourceTree enumerates and reads the sources of a project.
type SourceTree interface {
	Scan() ([]SourceFile, error)
	Read(src domain.NodeSource) ([]byte, error)
	AbsPath(src domain.NodeSource) string
	// InScope reports whether src belongs to the configured include set.
	InScope(src domain.NodeSource) bool
}

// Frontend turns source content into graph nodes.
type Frontend interface {
	Extract(src domain.NodeSource, content []byte) ([]domain.Node, error)
}

// EditorOpener builds the process that opens an absolute source path in the
// user's editor. The caller runs it, so a TUI can suspend around it.
type EditorOpener interface {
	Command(path string) (*exec.Cmd, error)
}
