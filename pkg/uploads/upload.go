// Package uploads provides file attachment handling for applyform.
//
// The upload layer only enforces the entry ceiling; size and type are
// recorded as reported and judged later by the form schema.
package uploads

import (
	"errors"
	"mime"
	"path/filepath"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Common errors.
var (
	ErrMaxFilesReached = errors.New("maximum number of files reached")
	ErrEntryNotFound   = errors.New("upload entry not found")
)

// Config configures upload behavior.
type Config struct {
	// Extensions is the allow-list of file extensions, e.g. ".pdf".
	Extensions []string

	// MaxFileSize is the per-file ceiling in bytes.
	MaxFileSize int64

	// MaxEntries is the maximum number of files in a list.
	MaxEntries int

	// MaxRequestBytes bounds one multipart request body.
	MaxRequestBytes int64
}

// DefaultConfig returns the resume upload configuration.
func DefaultConfig() Config {
	return Config{
		Extensions:      []string{".pdf"},
		MaxFileSize:     10 << 20,
		MaxEntries:      2,
		MaxRequestBytes: 25 << 20,
	}
}

// Accept returns the value for an <input accept> attribute.
func (c Config) Accept() string {
	parts := append([]string(nil), c.Extensions...)
	parts = append(parts, MimeTypes(c.Extensions)...)
	return strings.Join(parts, ",")
}

var extensionTypes = map[string][]string{
	".pdf": {"application/pdf"},
}

// MimeTypes returns the MIME types consistent with the given extensions.
func MimeTypes(extensions []string) []string {
	var out []string
	for _, ext := range extensions {
		ext = strings.ToLower(ext)
		if types, ok := extensionTypes[ext]; ok {
			out = append(out, types...)
			continue
		}
		if t := mime.TypeByExtension(ext); t != "" {
			out = append(out, strings.SplitN(t, ";", 2)[0])
		}
	}
	return out
}

// Entry is one attached file. Content is not retained.
type Entry struct {
	UUID        string    `json:"uuid"`
	FileName    string    `json:"name"`
	Size        int64     `json:"size"`
	ContentType string    `json:"type"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewEntry builds an entry with a fresh UUID and a sanitized file name.
func NewEntry(filename string, size int64, contentType string) Entry {
	return Entry{
		UUID:        uuid.NewString(),
		FileName:    sanitizeFilename(filename),
		Size:        size,
		ContentType: contentType,
		CreatedAt:   time.Now(),
	}
}

// Get exposes entry attributes by name for schema validation.
func (e Entry) Get(name string) any {
	switch name {
	case "name":
		return e.FileName
	case "size":
		return e.Size
	case "type":
		return e.ContentType
	default:
		return nil
	}
}

// List is an ordered, bounded set of entries.
type List struct {
	max     int
	entries []Entry
}

// NewList returns an empty list holding at most max entries.
func NewList(max int) *List {
	return &List{max: max}
}

// Add appends entry. It fails with ErrMaxFilesReached once the list is full,
// before any further checks see the file.
func (l *List) Add(entry Entry) error {
	if l.max > 0 && len(l.entries) >= l.max {
		return ErrMaxFilesReached
	}
	l.entries = append(l.entries, entry)
	return nil
}

// Remove deletes the entry with the given UUID.
func (l *List) Remove(id string) error {
	for i, e := range l.entries {
		if e.UUID == id {
			l.entries = append(l.entries[:i], l.entries[i+1:]...)
			return nil
		}
	}
	return ErrEntryNotFound
}

// Entries returns a copy of the entries in insertion order.
func (l *List) Entries() []Entry {
	return append([]Entry(nil), l.entries...)
}

func (l *List) Len() int  { return len(l.entries) }
func (l *List) Max() int  { return l.max }
func (l *List) Full() bool { return l.max > 0 && len(l.entries) >= l.max }

// Clear removes every entry.
func (l *List) Clear() {
	l.entries = nil
}

// MarshalJSON encodes the entries as an array.
func (l *List) MarshalJSON() ([]byte, error) {
	entries := l.entries
	if entries == nil {
		entries = []Entry{}
	}
	return json.Marshal(entries)
}

// UnmarshalJSON loads entries without applying the ceiling, so an over-full
// payload can still be reported by the schema.
func (l *List) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &l.entries)
}

func sanitizeFilename(filename string) string {
	filename = filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	filename = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == '\x00' {
			return '_'
		}
		return r
	}, filename)

	if len(filename) > 255 {
		ext := filepath.Ext(filename)
		filename = filename[:255-len(ext)] + ext
	}
	return filename
}
