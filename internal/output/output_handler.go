package output

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/manifest-network/ibcsend/internal/models"
)

const (
	ExitSuccess = 0
	ExitFailure = 1
)

// Reporter turns the final result of an invocation into a single report and an exit status.
// Only the first call is reported; later calls write nothing.
type Reporter interface {
	// Success reports the events emitted by a completed transfer.
	Success(events []models.Event) int

	// Error reports a failed invocation.
	Error(err error) int
}

// NewReporter returns a Reporter writing to w, as JSON when jsonMode is set.
func NewReporter(w io.Writer, jsonMode bool) Reporter {
	if jsonMode {
		return &jsonReporter{w: w}
	}
	return &textReporter{w: w}
}

type once struct {
	mu   sync.Mutex
	done bool
}

// first reports whether this is the first report for the invocation.
func (o *once) first() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.done {
		slog.Warn("Outcome already reported, dropping duplicate report")
		return false
	}
	o.done = true
	return true
}

type textReporter struct {
	once
	w io.Writer
}

func (r *textReporter) Success(events []models.Event) int {
	if !r.first() {
		return ExitSuccess
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SUCCESS %d event(s)\n", len(events))
	for _, ev := range events {
		fmt.Fprintf(&b, "  %s height=%d tx=%s", ev.Type, ev.Height, ev.TxHash)
		for _, a := range ev.Attributes {
			fmt.Fprintf(&b, " %s=%s", a.Key, a.Value)
		}
		b.WriteString("\n")
	}

	if _, err := io.WriteString(r.w, b.String()); err != nil {
		slog.Error("Failed to write success report", "error", err)
	}
	return ExitSuccess
}

func (r *textReporter) Error(err error) int {
	if !r.first() {
		return ExitFailure
	}

	if _, werr := fmt.Fprintf(r.w, "ERROR %s\n", err); werr != nil {
		slog.Error("Failed to write error report", "error", werr)
	}
	return ExitFailure
}

type jsonReporter struct {
	once
	w io.Writer
}

type report struct {
	Status string `json:"status"`
	Result any    `json:"result"`
}

func (r *jsonReporter) Success(events []models.Event) int {
	if !r.first() {
		return ExitSuccess
	}
	if events == nil {
		events = []models.Event{}
	}
	r.write(report{Status: "success", Result: events})
	return ExitSuccess
}

func (r *jsonReporter) Error(err error) int {
	if !r.first() {
		return ExitFailure
	}
	r.write(report{Status: "error", Result: err.Error()})
	return ExitFailure
}

func (r *jsonReporter) write(rep report) {
	if err := json.NewEncoder(r.w).Encode(rep); err != nil {
		slog.Error("Failed to write report", "status", rep.Status, "error", err)
	}
}
