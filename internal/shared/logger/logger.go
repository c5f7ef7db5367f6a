package logger

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/adpulse/go-expiry-service/internal/domain"
)

// ringCapacity is how many recent entries the console panel can replay.
const ringCapacity = 500

// Logger provides leveled key/value logging with broadcast to subscribers.
type Logger struct {
	log *logrus.Logger
	hub *hub
}

// NewLogger creates a logger writing to stdout only.
func NewLogger() *Logger {
	return newLogger(os.Stdout)
}

// NewFileLogger creates a logger that also appends to <dir>/system.log.
// Falls back to stdout-only when the file cannot be opened.
func NewFileLogger(dir string) *Logger {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return NewLogger()
	}
	f, err := os.OpenFile(filepath.Join(dir, "system.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return NewLogger()
	}
	return newLogger(io.MultiWriter(os.Stdout, f))
}

func newLogger(out io.Writer) *Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetLevel(logrus.DebugLevel)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})
	h := newHub()
	l.AddHook(h)
	return &Logger{log: l, hub: h}
}

// Info logs an informational message
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.log.WithFields(fields(keysAndValues)).Info(msg)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.log.WithFields(fields(keysAndValues)).Warn(msg)
}

// Error logs an error message
func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.log.WithFields(fields(keysAndValues)).Error(msg)
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.log.WithFields(fields(keysAndValues)).Debug(msg)
}

// Fatal logs a fatal message and exits
func (l *Logger) Fatal(msg string, keysAndValues ...interface{}) {
	l.log.WithFields(fields(keysAndValues)).Fatal(msg)
}

// Sync flushes any buffered log entries
func (l *Logger) Sync() error {
	return nil
}

// Subscribe registers a log consumer. The returned function unsubscribes it
// and closes the channel. Slow consumers drop entries rather than block
// emission call sites.
func (l *Logger) Subscribe() (<-chan domain.LogEntry, func()) {
	return l.hub.subscribe()
}

// Recent returns the retained recent entries, oldest first.
func (l *Logger) Recent() []domain.LogEntry {
	return l.hub.recent()
}

func fields(keysAndValues []interface{}) logrus.Fields {
	f := logrus.Fields{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		f[key] = keysAndValues[i+1]
	}
	return f
}

// hub fans log entries out to subscribers and retains a bounded ring of
// recent entries. It plugs into logrus as a hook so every emission site
// feeds the console panel without knowing about it.
type hub struct {
	mu          sync.Mutex
	nextID      int
	subscribers map[int]chan domain.LogEntry
	ring        []domain.LogEntry
}

func newHub() *hub {
	return &hub{subscribers: make(map[int]chan domain.LogEntry)}
}

// Levels implements logrus.Hook.
func (h *hub) Levels() []logrus.Level {
	return logrus.AllLevels
}

// Fire implements logrus.Hook.
func (h *hub) Fire(e *logrus.Entry) error {
	entry := domain.LogEntry{
		Timestamp: e.Time.UTC().Format(time.RFC3339),
		Level:     e.Level.String(),
		Message:   e.Message,
	}
	if len(e.Data) > 0 {
		entry.Fields = make(map[string]any, len(e.Data))
		for k, v := range e.Data {
			entry.Fields[k] = v
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.ring = append(h.ring, entry)
	if len(h.ring) > ringCapacity {
		h.ring = h.ring[len(h.ring)-ringCapacity:]
	}
	for _, ch := range h.subscribers {
		select {
		case ch <- entry:
		default:
		}
	}
	return nil
}

func (h *hub) subscribe() (<-chan domain.LogEntry, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	ch := make(chan domain.LogEntry, 64)
	h.subscribers[id] = ch

	unsubscribe := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if c, ok := h.subscribers[id]; ok {
			delete(h.subscribers, id)
			close(c)
		}
	}
	return ch, unsubscribe
}

func (h *hub) recent() []domain.LogEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]domain.LogEntry, len(h.ring))
	copy(out, h.ring)
	return out
}
