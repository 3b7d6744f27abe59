package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Entry is one audit record; a line is appended per completed site crawl.
type Entry struct {
	Timestamp    string `json:"timestamp"`
	JobID        string `json:"jobId"`
	Host         string `json:"host"`
	RecordsFound int    `json:"recordsFound"`
	User         string `json:"user,omitempty"`
	Action       string `json:"action"`
}

// Logger appends JSON-lines entries to a file. An empty path disables
// auditing; a nil logger is safe to call.
type Logger struct {
	mu   sync.Mutex
	file *os.File
	now  func() time.Time
}

// NewLogger opens (or creates) the audit file in append mode.
func NewLogger(path string) (*Logger, error) {
	if path == "" {
		return nil, nil
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	return &Logger{file: file, now: time.Now}, nil
}

// Crawl records the completion of one site crawl.
func (l *Logger) Crawl(jobID uuid.UUID, host string, recordsFound int, user string) error {
	if l == nil {
		return nil
	}

	entry := Entry{
		Timestamp:    l.now().UTC().Format(time.RFC3339),
		JobID:        jobID.String(),
		Host:         host,
		RecordsFound: recordsFound,
		User:         user,
		Action:       "crawl",
	}
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode audit entry: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	_, err = l.file.Write(append(line, '\n'))
	return err
}

// Close flushes and closes the underlying file.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	return l.file.Close()
}
