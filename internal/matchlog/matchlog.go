// Package matchlog keeps an append-only JSONL history of emitted alerts
// for later audit.
package matchlog

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

const maxTextLen = 4000

// Record is one emitted alert.
type Record struct {
	Timestamp time.Time       `json:"ts"`
	Source    string          `json:"source"`
	Product   string          `json:"product"`
	Brand     string          `json:"brand,omitempty"`
	Price     decimal.Decimal `json:"price"`
	Reason    string          `json:"reason"`
	Text      string          `json:"text"`
}

type Writer struct {
	mu   sync.Mutex
	path string
}

func NewWriter(path string) *Writer {
	return &Writer{path: path}
}

// Append writes one record as a JSON line. Text is truncated to keep lines
// bounded.
func (w *Writer) Append(r Record) error {
	if w.path == "" {
		return nil
	}

	if len(r.Text) > maxTextLen {
		r.Text = r.Text[:maxTextLen]
	}

	line, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encoding match record: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("opening match log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("writing match record: %w", err)
	}

	return nil
}
