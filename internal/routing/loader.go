package routing

import (
	"fmt"
	"os"
	"sync/atomic"
)

// Logger defines the logging interface used by the routing package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Loader reads the routing document from disk and holds the current
// snapshot.
//
// The document is re-read on every Load so that edits take effect without a
// restart. Each Load replaces the snapshot with a single atomic store; readers
// see either the old or the new Document, never a partial one.
//
// Thread Safety: all methods are safe for concurrent use.
type Loader struct {
	path    string
	current atomic.Pointer[Document]
	logger  Logger
}

// NewLoader creates a loader for the document at path. The snapshot starts
// as Placeholder until the first Load.
func NewLoader(path string) *Loader {
	l := &Loader{path: path, logger: noopLogger{}}
	l.current.Store(Placeholder())
	return l
}

// SetLogger sets the logger for the loader.
func (l *Loader) SetLogger(logger Logger) {
	l.logger = logger
}

// Path returns the document path.
func (l *Loader) Path() string {
	return l.path
}

// Load reads and parses the document and replaces the snapshot.
//
// On any configuration error the snapshot is replaced with Placeholder and
// the error is returned alongside it, so callers always receive a usable
// (possibly empty) Document.
//
// Returns:
//   - *Document: The new snapshot (never nil)
//   - error: Read or parse failure, nil on success
func (l *Loader) Load() (*Document, error) {
	doc, err := l.read()
	if err != nil {
		doc = Placeholder()
		l.logger.Error("routing document unusable, using empty placeholder", "path", l.path, "error", err)
	} else {
		for _, w := range doc.Warnings {
			l.logger.Warn("routing document", "path", l.path, "warning", w)
		}
	}
	l.current.Store(doc)
	return doc, err
}

// Current returns the last loaded snapshot without touching disk.
func (l *Loader) Current() *Document {
	return l.current.Load()
}

func (l *Loader) read() (*Document, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("reading routing document: %w", err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", l.path, err)
	}
	return doc, nil
}
