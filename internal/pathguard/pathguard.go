// Package pathguard validates filesystem paths against allow-lists,
// deny-lists, and a built-in blocklist of sensitive system locations.
package pathguard

import (
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
)

// systemBlocklist holds prefixes that are denied regardless of allow-list
// membership.
var systemBlocklist = []string{
	"/etc",
	"/sys",
	"/proc",
	"/dev",
	"/boot",
	"/root/.ssh",
	"/private/etc",
	"c:\\windows",
	"c:\\program files",
	"c:\\program files (x86)",
}

// Validation is the outcome of validating a single path.
type Validation struct {
	Valid        bool
	ResolvedPath string
	Reason       string
}

// Guard filters paths. Zero value allows everything outside the system
// blocklist; configure with SetAllowed/SetExcluded.
type Guard struct {
	mu       sync.RWMutex
	allowed  []string
	excluded []string
}

// New creates a Guard with the given allow and deny lists. Either may be nil.
func New(allowed, excluded []string) *Guard {
	g := &Guard{}
	g.SetAllowed(allowed)
	g.SetExcluded(excluded)
	return g
}

// SetAllowed replaces the allow-list. An empty list allows every path that is
// not excluded.
func (g *Guard) SetAllowed(dirs []string) {
	normalized := normalizeDirs(dirs)
	g.mu.Lock()
	g.allowed = normalized
	g.mu.Unlock()
}

// SetExcluded replaces the deny-list.
func (g *Guard) SetExcluded(dirs []string) {
	normalized := normalizeDirs(dirs)
	g.mu.Lock()
	g.excluded = normalized
	g.mu.Unlock()
}

// IsAllowed reports whether path passes validation.
func (g *Guard) IsAllowed(path string) bool {
	return g.Validate(path).Valid
}

// Validate resolves path to an absolute, cleaned form and checks it against
// the traversal rule, the system blocklist, the deny-list, and the
// allow-list, in that order. Any resolution error denies the path.
func (g *Guard) Validate(path string) Validation {
	if strings.TrimSpace(path) == "" {
		return Validation{Reason: "empty path"}
	}
	if containsTraversal(path) {
		return Validation{Reason: "path contains traversal segment"}
	}

	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		// Fail closed on any resolution failure.
		return Validation{Reason: "path resolution failed: " + err.Error()}
	}
	// Follow symlinks before the prefix checks so a link inside an allowed
	// directory cannot point at a blocklisted or excluded target.
	resolved, err := resolveSymlinks(abs)
	if err != nil {
		return Validation{Reason: "path resolution failed: " + err.Error()}
	}
	lower := strings.ToLower(resolved)

	for _, blocked := range systemBlocklist {
		if hasPathPrefix(lower, blocked) {
			return Validation{ResolvedPath: resolved, Reason: "path is in a protected system location"}
		}
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	for _, dir := range g.excluded {
		if hasPathPrefix(lower, dir) {
			return Validation{ResolvedPath: resolved, Reason: "path is in an excluded directory"}
		}
	}

	if len(g.allowed) > 0 {
		for _, dir := range g.allowed {
			if hasPathPrefix(lower, dir) {
				return Validation{Valid: true, ResolvedPath: resolved}
			}
		}
		return Validation{ResolvedPath: resolved, Reason: "path is outside allowed directories"}
	}

	return Validation{Valid: true, ResolvedPath: resolved}
}

// FilterAllowed returns the subset of paths that pass validation, resolved.
func (g *Guard) FilterAllowed(paths []string) []string {
	allowed := make([]string, 0, len(paths))
	for _, path := range paths {
		if v := g.Validate(path); v.Valid {
			allowed = append(allowed, v.ResolvedPath)
		}
	}
	return allowed
}

// containsTraversal checks raw input for ".." segments before cleaning, so a
// crafted relative path cannot escape an allowed root.
func containsTraversal(path string) bool {
	for _, seg := range strings.FieldsFunc(path, func(r rune) bool {
		return r == '/' || r == '\\'
	}) {
		if seg == ".." {
			return true
		}
	}
	return false
}

// resolveSymlinks evaluates symlinks in path. Paths that do not exist yet
// resolve against their deepest existing ancestor so validation stays purely
// lexical for them.
func resolveSymlinks(path string) (string, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err == nil {
		return resolved, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return "", err
	}
	dir, base := filepath.Split(filepath.Clean(path))
	dir = filepath.Clean(dir)
	if dir == path {
		return path, nil
	}
	parent, err := resolveSymlinks(dir)
	if err != nil {
		return "", err
	}
	return filepath.Join(parent, base), nil
}

// hasPathPrefix matches on whole path components, case-insensitively.
func hasPathPrefix(lowerPath, prefix string) bool {
	prefix = strings.ToLower(filepath.Clean(prefix))
	if lowerPath == prefix {
		return true
	}
	if !strings.HasPrefix(lowerPath, prefix) {
		return false
	}
	next := lowerPath[len(prefix)]
	return next == '/' || next == '\\'
}

func normalizeDirs(dirs []string) []string {
	normalized := make([]string, 0, len(dirs))
	for _, dir := range dirs {
		dir = strings.TrimSpace(dir)
		if dir == "" {
			continue
		}
		abs, err := filepath.Abs(filepath.Clean(dir))
		if err != nil {
			continue
		}
		resolved, err := resolveSymlinks(abs)
		if err != nil {
			continue
		}
		normalized = append(normalized, strings.ToLower(resolved))
	}
	return normalized
}
