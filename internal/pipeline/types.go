package pipeline

import (
	"fmt"
	"time"

	"image-compressor-go/internal/config"
)

// Request describes a single compression run.
type Request struct {
	InputDirectory  string
	OutputDirectory string
	// Quality is the quality factor in (0, 1]. Zero means config.DefaultQuality.
	Quality float64
}

// QualityOrDefault returns the effective quality factor.
func (r Request) QualityOrDefault() float64 {
	if r.Quality == 0 {
		return config.DefaultQuality
	}
	return r.Quality
}

// SourceImage is an eligible file found in the input directory.
type SourceImage struct {
	Path string
	Name string
	// Base is the name without its final extension.
	Base string
	// Extension is the final extension without the dot, in its original case.
	Extension string
}

// OutputName returns "<base>-min.<ext>".
func (s SourceImage) OutputName() string {
	return s.Base + OutputSuffix + "." + s.Extension
}

// Status tags an Outcome.
type Status int

const (
	StatusSuccess Status = iota
	StatusFailure
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFailure:
		return "failure"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Outcome is the result of processing one file. Success outcomes carry sizes
// and a ratio; failure outcomes carry the error message.
type Outcome struct {
	Status         Status
	Index          int
	OriginalName   string
	OriginalSize   int64
	OutputName     string
	CompressedSize int64
	RatioPercent   float64
	Error          string
	Duration       time.Duration
}

// Succeeded reports whether the outcome is a Success.
func (o Outcome) Succeeded() bool {
	return o.Status == StatusSuccess
}

// SuccessOutcome builds a Success with the ratio computed from the sizes.
func SuccessOutcome(originalName string, originalSize int64, outputName string, compressedSize int64) Outcome {
	return Outcome{
		Status:         StatusSuccess,
		OriginalName:   originalName,
		OriginalSize:   originalSize,
		OutputName:     outputName,
		CompressedSize: compressedSize,
		RatioPercent:   Ratio(originalSize, compressedSize),
	}
}

// FailureOutcome builds a Failure carrying err's message.
func FailureOutcome(originalName string, err error) Outcome {
	return Outcome{
		Status:       StatusFailure,
		OriginalName: originalName,
		Error:        err.Error(),
	}
}

// Ratio returns (1 - compressed/original) * 100, or 0 when original is 0.
// The result is negative when the output grew.
func Ratio(originalSize, compressedSize int64) float64 {
	if originalSize <= 0 {
		return 0
	}
	return (1 - float64(compressedSize)/float64(originalSize)) * 100
}

// Report is the ordered record of one run.
type Report struct {
	RunID           string
	InputDirectory  string
	OutputDirectory string
	Quality         float64
	Outcomes        []Outcome
	StartedAt       time.Time
	FinishedAt      time.Time
	Finished        bool
	Canceled        bool
}

// Succeeded returns the number of Success outcomes.
func (r *Report) Succeeded() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Succeeded() {
			n++
		}
	}
	return n
}

// Failed returns the number of Failure outcomes.
func (r *Report) Failed() int {
	return len(r.Outcomes) - r.Succeeded()
}
