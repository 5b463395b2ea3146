package filesystem

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	ignore "github.com/sabhiram/go-gitignore"
	"golang.org/x/mod/modfile"

	"depgraph/internal/domain"
	"depgraph/internal/ports"
)

// DefaultInclude selects Go sources.
var DefaultInclude = []string{"**/*.go"}

// DefaultExclude skips vendored code and test fixtures.
var DefaultExclude = []string{"vendor/**", "**/testdata/**"}

// Walker implements ports.SourceTree over a directory tree
type Walker struct {
	root    string
	include []string
	exclude []string
	ignore  *ignore.GitIgnore
}

var _ ports.SourceTree = (*Walker)(nil)

// NewWalker creates a walker rooted at root. Empty include or exclude lists
// fall back to the defaults.
func NewWalker(root string, include, exclude []string) (*Walker, error) {
	// Expand ~ to home directory
	if strings.HasPrefix(root, "~") {
		home, _ := os.UserHomeDir()
		root = filepath.Join(home, root[1:])
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root: %w", err)
	}
	if len(include) == 0 {
		include = DefaultInclude
	}
	if len(exclude) == 0 {
		exclude = DefaultExclude
	}
	for _, p := range append(append([]string(nil), include...), exclude...) {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid glob %q: %w", p, doublestar.ErrBadPattern)
		}
	}

	w := &Walker{root: abs, include: include, exclude: exclude}
	gitignore := filepath.Join(abs, ".gitignore")
	if _, err := os.Stat(gitignore); err == nil {
		w.ignore, err = ignore.CompileIgnoreFile(gitignore)
		if err != nil {
			return nil, fmt.Errorf("failed to read .gitignore: %w", err)
		}
	}
	return w, nil
}

// Root returns the absolute root directory.
func (w *Walker) Root() string { return w.root }

// Scan returns every source in scope, ordered by path.
func (w *Walker) Scan() ([]ports.SourceFile, error) {
	var files []ports.SourceFile
	err := filepath.WalkDir(w.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(w.root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if rel == "." {
				return nil
			}
			if d.Name() == ".git" || w.ignored(rel+"/") || matchAny(w.exclude, rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || w.ignored(rel) {
			return nil
		}
		src := domain.NewNodeSource(rel)
		if !w.InScope(src) {
			return nil
		}
		content, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", rel, err)
		}
		files = append(files, ports.SourceFile{Source: src, AbsPath: p, Digest: Digest(content)})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", w.root, err)
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Source.Path() < files[j].Source.Path()
	})
	return files, nil
}

// Read returns the content of src.
func (w *Walker) Read(src domain.NodeSource) ([]byte, error) {
	content, err := os.ReadFile(w.AbsPath(src))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("source %s: %w", src, err)
	}
	return content, err
}

func (w *Walker) AbsPath(src domain.NodeSource) string {
	return filepath.Join(w.root, filepath.FromSlash(src.Path()))
}

// InScope reports whether src matches an include glob and no exclude glob.
func (w *Walker) InScope(src domain.NodeSource) bool {
	return matchAny(w.include, src.Path()) && !matchAny(w.exclude, src.Path())
}

func (w *Walker) ignored(rel string) bool {
	return w.ignore != nil && w.ignore.MatchesPath(rel)
}

// ModulePath returns the module path declared by go.mod under the root, or
// "" when there is none.
func (w *Walker) ModulePath() (string, error) {
	data, err := os.ReadFile(filepath.Join(w.root, "go.mod"))
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read go.mod: %w", err)
	}
	return modfile.ModulePath(data), nil
}

// GlobFilter returns a predicate accepting sources that match any of
// patterns. No patterns yields nil, which accepts everything.
func GlobFilter(patterns []string) (func(domain.NodeSource) bool, error) {
	if len(patterns) == 0 {
		return nil, nil
	}
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid glob %q: %w", p, doublestar.ErrBadPattern)
		}
	}
	return func(src domain.NodeSource) bool {
		return matchAny(patterns, src.Path())
	}, nil
}

func matchAny(patterns []string, rel string) bool {
	for _, p := range patterns {
		// Patterns were validated in NewWalker.
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

// Digest returns the hex sha256 of content.
func Digest(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
