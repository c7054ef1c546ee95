package report

import (
	"errors"
	"fmt"
	"testing"

	"image-compressor-go/internal/pipeline"

	"github.com/stretchr/testify/require"
)

func TestOutcomeSuccess(t *testing.T) {
	o := pipeline.SuccessOutcome("photo.jpg", 500000, "photo-min.jpg", 123456)

	require.Equal(t,
		"Before: photo.jpg - 500000 bytes\nAfter: photo-min.jpg - 123456 bytes\nCompression Ratio: 75.31%\n\n",
		Formatter{}.Outcome(o))

	require.Equal(t,
		"Before: photo.jpg - 500,000 bytes\nAfter: photo-min.jpg - 123,456 bytes\nCompression Ratio: 75.31%\n\n",
		Formatter{GroupThousands: true}.Outcome(o))
}

func TestOutcomeNegativeAndZeroRatio(t *testing.T) {
	grown := pipeline.SuccessOutcome("icon.png", 2000, "icon-min.png", 2500)
	require.Contains(t, Formatter{}.Outcome(grown), "Compression Ratio: -25.00%\n")

	empty := pipeline.SuccessOutcome("empty.gif", 0, "empty-min.gif", 40)
	require.Contains(t, Formatter{}.Outcome(empty), "Compression Ratio: 0.00%\n")
}

func TestOutcomeFailure(t *testing.T) {
	o := pipeline.FailureOutcome("broken.png", errors.New("cannot decode image: image: unknown format"))
	require.Equal(t, "Error processing broken.png: cannot decode image: image: unknown format\n", Formatter{}.Outcome(o))
}

func TestReport(t *testing.T) {
	r := &pipeline.Report{Outcomes: []pipeline.Outcome{
		pipeline.FailureOutcome("a.png", errors.New("boom")),
		pipeline.SuccessOutcome("b.gif", 1000, "b-min.gif", 900),
	}}

	require.Equal(t,
		"Error processing a.png: boom\n"+
			"Before: b.gif - 1,000 bytes\nAfter: b-min.gif - 900 bytes\nCompression Ratio: 10.00%\n\n"+
			"Compression finished.\n",
		Formatter{GroupThousands: true}.Report(r))

	require.Equal(t, FinishedLine, Formatter{}.Report(&pipeline.Report{}))
}

func TestAlertFor(t *testing.T) {
	in := AlertFor(&pipeline.InvalidDirectoryError{Which: pipeline.RoleInput, Path: "/x"})
	require.Equal(t, Alert{Title: "Input Error", Message: "Invalid input directory"}, in)

	out := AlertFor(fmt.Errorf("run: %w", &pipeline.InvalidDirectoryError{Which: pipeline.RoleOutput, Path: "/y"}))
	require.Equal(t, "Output Error: Invalid output directory", out.String())

	other := AlertFor(errors.New("invalid quality: 2"))
	require.Equal(t, "Error", other.Title)
	require.Equal(t, "invalid quality: 2", other.Message)
}
