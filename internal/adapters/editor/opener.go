package editor

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"depgraph/internal/ports"
)

// Opener resolves the editor from the configured command, the environment
// or a well-known binary on $PATH, in that order.
type Opener struct {
	configured string
}

var _ ports.EditorOpener = (*Opener)(nil)

// NewOpener creates a new editor opener. A non-empty editor command wins
// over the environment; it may carry arguments, e.g. "code --wait".
func NewOpener(editor string) *Opener {
	return &Opener{configured: editor}
}

// Command returns the editor process for path, wired to the terminal.
func (o *Opener) Command(path string) (*exec.Cmd, error) {
	args := strings.Fields(o.findEditor())
	if len(args) == 0 {
		return nil, fmt.Errorf("no editor found: set $EDITOR or the editor setting")
	}

	cmd := exec.Command(args[0], append(args[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	return cmd, nil
}

// findEditor returns the editor command line to use
func (o *Opener) findEditor() string {
	if o.configured != "" {
		return o.configured
	}
	for _, env := range []string{"EDITOR", "VISUAL"} {
		if editor := os.Getenv(env); editor != "" {
			return editor
		}
	}

	// Try common editors
	for _, editor := range []string{"nvim", "vim", "vi", "nano"} {
		if path, err := exec.LookPath(editor); err == nil {
			return path
		}
	}

	return ""
}
