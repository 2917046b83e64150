// Package audit writes an append-only JSONL trail of guard decisions.
// Each line records what happened to one tool invocation (trust level,
// sanitization action, fired patterns) but never the content itself.
package audit

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// GenesisHash is the prev_hash of the first event in a new log.
const GenesisHash = "sha256:0000000000000000000000000000000000000000000000000000000000000000"

// Event is one line in the audit log. Fields are flat values so
// json.Marshal field order is deterministic and lines hash reproducibly.
type Event struct {
	Timestamp    string   `json:"ts"`
	InvocationID string   `json:"invocation_id"`
	Tool         string   `json:"tool"`
	TrustLevel   string   `json:"trust_level"`
	Action       string   `json:"action"`
	Patterns     []string `json:"patterns,omitempty"`
	WarningCount int      `json:"warning_count,omitempty"`
	Error        string   `json:"error,omitempty"`
	PrevHash     string   `json:"prev_hash"`
}

// Log appends events to a JSONL file with SHA-256 hash chaining: each
// event's prev_hash is the hash of the previous line, so edits and
// deletions anywhere in the file break the chain.
type Log struct {
	path     string
	file     *os.File
	prevHash string
	mu       sync.Mutex
}

// Open opens or creates an audit log for appending. An existing file has
// its last line read back so new events continue the chain.
func Open(path string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating audit directory: %w", err)
	}

	prevHash := GenesisHash
	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		tail, err := lastLine(path)
		if err != nil {
			return nil, err
		}
		if len(tail) > 0 {
			prevHash = HashLine(tail)
		}
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("opening audit log: %w", err)
	}

	return &Log{path: path, file: file, prevHash: prevHash}, nil
}

func lastLine(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading audit log: %w", err)
	}
	defer f.Close()

	var tail []byte
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		tail = append(tail[:0], scanner.Bytes()...)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning audit log: %w", err)
	}
	return tail, nil
}

// Record appends one event. The timestamp is filled if empty; the
// prev_hash is always set by the log. The line is synced to disk before
// Record returns.
func (l *Log) Record(ev Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if ev.Timestamp == "" {
		ev.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}
	ev.PrevHash = l.prevHash

	line, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshaling audit event: %w", err)
	}
	if _, err := l.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("writing audit event: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("syncing audit log: %w", err)
	}

	l.prevHash = HashLine(line)
	return nil
}

// Path returns the file the log writes to.
func (l *Log) Path() string { return l.path }

// Close flushes and closes the underlying file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

// HashLine returns "sha256:<hex>" of one JSONL line.
func HashLine(line []byte) string {
	sum := sha256.Sum256(line)
	return "sha256:" + hex.EncodeToString(sum[:])
}
