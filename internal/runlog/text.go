package runlog

import (
	"context"
	"fmt"
	"os"
	"sync"

	"coinpulse/internal/domain"
)

const lineTimeLayout = "2006-01-02 15:04:05.000000"

// TextRecorder appends one plain-text line per run.
type TextRecorder struct {
	path string
	mu   sync.Mutex
}

func NewTextRecorder(path string) *TextRecorder {
	return &TextRecorder{path: path}
}

// Line formats the record written for result.
func Line(result domain.RunResult) string {
	return fmt.Sprintf("[%s] run=%s Hourly crypto data collected. Rows added: %d\n",
		result.CompletedAt.UTC().Format(lineTimeLayout), result.RunID, result.RowsAdded)
}

func (r *TextRecorder) Record(_ context.Context, result domain.RunResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open run log: %w", err)
	}
	if _, err := f.WriteString(Line(result)); err != nil {
		f.Close()
		return fmt.Errorf("append run log: %w", err)
	}
	return f.Close()
}

func (r *TextRecorder) Close() error { return nil }
