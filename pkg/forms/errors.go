package forms

import (
	"fmt"
	"sort"
	"strings"
)

// Errors holds validation messages keyed by field path ("email",
// "jobs.0.to"). A nil or empty Errors means valid.
type Errors map[string][]string

// Add appends a message for path.
func (e Errors) Add(path, message string) {
	e[path] = append(e[path], message)
}

// Has reports whether path has at least one message.
func (e Errors) Has(path string) bool {
	return len(e[path]) > 0
}

// First returns the first message for path, or "".
func (e Errors) First(path string) string {
	if msgs := e[path]; len(msgs) > 0 {
		return msgs[0]
	}
	return ""
}

// Valid reports whether there are no messages at all.
func (e Errors) Valid() bool {
	return len(e) == 0
}

// Merge copies other into e, prefixing every path with prefix + "." when prefix is set.
func (e Errors) Merge(prefix string, other Errors) {
	for path, msgs := range other {
		key := path
		if prefix != "" {
			key = joinPath(prefix, path)
		}
		e[key] = append(e[key], msgs...)
	}
}

// Under returns the messages whose path is root itself or nested below it.
func (e Errors) Under(root string) Errors {
	out := Errors{}
	for path, msgs := range e {
		if path == root || strings.HasPrefix(path, root+".") {
			out[path] = msgs
		}
	}
	return out
}

// Clear removes every message at or below root.
func (e Errors) Clear(root string) {
	for path := range e.Under(root) {
		delete(e, path)
	}
}

// Paths returns the failing paths in sorted order.
func (e Errors) Paths() []string {
	paths := make([]string, 0, len(e))
	for path := range e {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// Error renders the messages as one line, making Errors usable where an error is expected.
func (e Errors) Error() string {
	parts := make([]string, 0, len(e))
	for _, path := range e.Paths() {
		parts = append(parts, fmt.Sprintf("%s: %s", path, strings.Join(e[path], "; ")))
	}
	return strings.Join(parts, ", ")
}

func joinPath(prefix, path string) string {
	if path == "" {
		return prefix
	}
	return prefix + "." + path
}
