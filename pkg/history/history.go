// Package history keeps an append-only JSONL ledger of completed tool runs
// so the writer can see what was run against the manuscript and when.
package history

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

const logFileName = "runs.jsonl"

// Record is one completed (or failed) tool run.
type Record struct {
	ID             string    `json:"id"`
	Tool           string    `json:"tool"`
	Started        time.Time `json:"started"`
	ElapsedSeconds float64   `json:"elapsed_seconds"`
	Success        bool      `json:"success"`
	WordCount      int       `json:"word_count"`
	PromptTokens   int       `json:"prompt_tokens"`
	ResponseTokens int       `json:"response_tokens"`
	OutputFiles    []string  `json:"output_files,omitempty"`
}

// Log appends and reads run records for one project directory.
type Log struct {
	path string
	mu   sync.Mutex
}

func Open(dir string) *Log {
	return &Log{path: filepath.Join(dir, logFileName)}
}

// Append writes one record. A missing ID gets a fresh UUID; a zero Started
// gets the current time.
func (l *Log) Append(r Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.Started.IsZero() {
		r.Started = time.Now()
	}

	data, err := json.Marshal(r)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open run log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write run log: %w", err)
	}
	return nil
}

// List returns all records, newest first. A missing log file is an empty
// history, not an error; corrupt lines are skipped.
func (l *Log) List() ([]Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var r Record
		if err := json.Unmarshal(scanner.Bytes(), &r); err != nil {
			continue
		}
		records = append(records, r)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Started.After(records[j].Started)
	})
	return records, nil
}
