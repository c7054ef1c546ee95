// Package report turns pipeline outcomes into the log text shown to users.
package report

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"image-compressor-go/internal/pipeline"

	"github.com/dustin/go-humanize"
)

// FinishedLine ends every run's log.
const FinishedLine = "Compression finished.\n"

// Formatter renders outcomes. The zero value prints raw byte counts.
type Formatter struct {
	GroupThousands bool
}

// Bytes formats a byte count, grouped by thousands when enabled.
func (f Formatter) Bytes(n int64) string {
	if f.GroupThousands {
		return humanize.Comma(n)
	}
	return strconv.FormatInt(n, 10)
}

// Outcome renders one outcome. Successes take three lines plus a blank line;
// failures take one line.
func (f Formatter) Outcome(o pipeline.Outcome) string {
	if !o.Succeeded() {
		return fmt.Sprintf("Error processing %s: %s\n", o.OriginalName, o.Error)
	}
	return fmt.Sprintf("Before: %s - %s bytes\nAfter: %s - %s bytes\nCompression Ratio: %.2f%%\n\n",
		o.OriginalName, f.Bytes(o.OriginalSize),
		o.OutputName, f.Bytes(o.CompressedSize),
		o.RatioPercent)
}

// Finished returns the completion line.
func (f Formatter) Finished() string {
	return FinishedLine
}

// Report renders a whole report, completion line included.
func (f Formatter) Report(r *pipeline.Report) string {
	var b strings.Builder
	for _, o := range r.Outcomes {
		b.WriteString(f.Outcome(o))
	}
	b.WriteString(f.Finished())
	return b.String()
}

// Alert is a blocking error shown before any file is processed.
type Alert struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

func (a Alert) String() string {
	return a.Title + ": " + a.Message
}

// AlertFor maps a run error to the alert shown to the user. Directory errors
// become "Input Error" or "Output Error"; anything else is a generic error.
func AlertFor(err error) Alert {
	var dirErr *pipeline.InvalidDirectoryError
	if errors.As(err, &dirErr) {
		if dirErr.Which == pipeline.RoleOutput {
			return Alert{Title: "Output Error", Message: "Invalid output directory"}
		}
		return Alert{Title: "Input Error", Message: "Invalid input directory"}
	}
	return Alert{Title: "Error", Message: err.Error()}
}
