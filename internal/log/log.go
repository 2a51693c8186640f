package log

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Entry is one structured log line. Recent entries are kept in memory
// so the control surface can serve them without a log file.
type Entry struct {
	ID      string         `json:"id"`
	TS      string         `json:"ts"`
	Level   string         `json:"level"`
	Source  string         `json:"source"`
	Message string         `json:"message"`
	Err     string         `json:"err,omitempty"`
	Fields  map[string]any `json:"fields,omitempty"`
}

const ringSize = 1000

var (
	mu   sync.Mutex
	ring []Entry
)

func write(level, source, msg string, err error, fields map[string]any) {
	e := Entry{
		ID:      uuid.NewString(),
		TS:      time.Now().UTC().Format(time.RFC3339),
		Level:   level,
		Source:  source,
		Message: msg,
		Fields:  fields,
	}
	if err != nil {
		e.Err = err.Error()
	}
	b, _ := json.Marshal(e)
	log.Println(string(b))

	mu.Lock()
	ring = append(ring, e)
	if len(ring) > ringSize {
		ring = ring[len(ring)-ringSize:]
	}
	mu.Unlock()
}

func Info(source, msg string, fields map[string]any) { write("info", source, msg, nil, fields) }
func Warn(source, msg string, fields map[string]any) { write("warn", source, msg, nil, fields) }
func Error(source, msg string, err error, fields map[string]any) {
	write("error", source, msg, err, fields)
}

// Recent returns a copy of the buffered entries, oldest first.
func Recent() []Entry {
	mu.Lock()
	defer mu.Unlock()
	out := make([]Entry, len(ring))
	copy(out, ring)
	return out
}

// Clear drops the buffered entries.
func Clear() {
	mu.Lock()
	ring = nil
	mu.Unlock()
}
