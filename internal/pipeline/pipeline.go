package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"image-compressor-go/internal/codec"
	"image-compressor-go/internal/config"
	"image-compressor-go/internal/logger"
	"image-compressor-go/internal/metadata"
	"image-compressor-go/internal/statistics"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// MetadataCopier carries tags from a source file to its compressed copy.
type MetadataCopier interface {
	CopyMetadata(src, dst string) error
}

// Options tune discovery and decoding.
type Options struct {
	// CaseInsensitive folds case when matching EligibleSuffixes.
	CaseInsensitive bool
	// AutoOrient applies the EXIF orientation while decoding.
	AutoOrient bool
	// Metadata, when set, is called after each JPEG output is written.
	Metadata MetadataCopier
}

// Pipeline compresses every eligible image of an input directory into an
// output directory, one file at a time.
type Pipeline struct {
	fs     afero.Fs
	logger *logrus.Logger
	stats  *statistics.Statistics
	opts   Options
}

// New returns a Pipeline. A nil logger discards output and nil stats are
// not collected.
func New(fs afero.Fs, log *logrus.Logger, stats *statistics.Statistics, opts Options) *Pipeline {
	if log == nil {
		log = logger.Discard()
	}
	return &Pipeline{
		fs:     fs,
		logger: log,
		stats:  stats,
		opts:   opts,
	}
}

// Validate checks the input directory, then the output directory, then the
// quality factor. Directory failures are *InvalidDirectoryError.
func (p *Pipeline) Validate(req Request) error {
	if err := checkDirectory(p.fs, RoleInput, req.InputDirectory); err != nil {
		return err
	}
	if err := checkDirectory(p.fs, RoleOutput, req.OutputDirectory); err != nil {
		return err
	}
	return config.ValidateQuality(req.QualityOrDefault())
}

// Run processes req synchronously. sink, if not nil, receives every outcome
// as soon as it is produced. The returned report holds the same outcomes in
// the same order.
func (p *Pipeline) Run(ctx context.Context, req Request, sink func(Outcome)) (*Report, error) {
	report, files, err := p.prepare(req)
	if err != nil {
		return nil, err
	}
	p.execute(ctx, req, report, files, sink)
	return report, nil
}

// Stream validates req and then processes it on its own goroutine. Outcomes
// arrive on the returned channel in discovery order and the channel is closed
// once the run completes. Callers must drain the channel; after ctx is
// canceled no further outcome is sent.
func (p *Pipeline) Stream(ctx context.Context, req Request) (<-chan Outcome, error) {
	report, files, err := p.prepare(req)
	if err != nil {
		return nil, err
	}

	out := make(chan Outcome)
	go func() {
		defer close(out)
		p.execute(ctx, req, report, files, func(o Outcome) {
			select {
			case out <- o:
			case <-ctx.Done():
			}
		})
	}()
	return out, nil
}

func (p *Pipeline) prepare(req Request) (*Report, []SourceImage, error) {
	if err := p.Validate(req); err != nil {
		return nil, nil, err
	}

	files, err := Discover(p.fs, req.InputDirectory, p.opts.CaseInsensitive)
	if err != nil {
		return nil, nil, &InvalidDirectoryError{Which: RoleInput, Path: req.InputDirectory, Err: err}
	}

	report := &Report{
		RunID:           uuid.New().String(),
		InputDirectory:  req.InputDirectory,
		OutputDirectory: req.OutputDirectory,
		Quality:         req.QualityOrDefault(),
		Outcomes:        make([]Outcome, 0, len(files)),
		StartedAt:       time.Now(),
	}
	return report, files, nil
}

func (p *Pipeline) execute(ctx context.Context, req Request, report *Report, files []SourceImage, sink func(Outcome)) {
	log := logger.WithRun(p.logger, report.RunID)
	log.WithFields(logrus.Fields{
		"input":   report.InputDirectory,
		"output":  report.OutputDirectory,
		"quality": report.Quality,
		"files":   len(files),
	}).Info("Starting compression run")

	if sameDirectory(req.InputDirectory, req.OutputDirectory) {
		log.Warn("Input and output directories are the same; outputs may shadow later source files")
	}

	if p.stats != nil {
		for _, f := range files {
			p.stats.IncrementFilesFound()
			p.stats.IncrementFileType(f.Extension)
		}
	}

	for i, src := range files {
		if err := ctx.Err(); err != nil {
			log.WithField("remaining", len(files)-i).Warn("Compression run canceled")
			report.Canceled = true
			if p.stats != nil {
				p.stats.MarkCanceled()
			}
			break
		}

		outcome := p.processFile(log, req.OutputDirectory, src, report.Quality)
		outcome.Index = i
		report.Outcomes = append(report.Outcomes, outcome)

		if p.stats != nil {
			if outcome.Succeeded() {
				p.stats.RecordSuccess(outcome.OriginalSize, outcome.CompressedSize)
			} else {
				p.stats.RecordFailure(src.Path, "compress", outcome.Error)
			}
		}
		if sink != nil {
			sink(outcome)
		}
	}

	report.FinishedAt = time.Now()
	report.Finished = true
	if p.stats != nil {
		p.stats.Finalize()
	}

	log.WithFields(logrus.Fields{
		"succeeded": report.Succeeded(),
		"failed":    report.Failed(),
		"duration":  report.FinishedAt.Sub(report.StartedAt).String(),
	}).Info("Compression run finished")
}

// processFile turns one source file into an outcome. Every error is scoped
// to the file.
func (p *Pipeline) processFile(log *logrus.Entry, outputDir string, src SourceImage, quality float64) Outcome {
	start := time.Now()
	flog := logger.WithFileOperation(log, src.Path, "compress")
	flog.Debug("Processing file")

	outcome, err := p.compress(flog, outputDir, src, quality)
	if err != nil {
		flog.WithError(err).Warn("Compression failed")
		outcome = FailureOutcome(src.Name, err)
	} else {
		flog.WithFields(logrus.Fields{
			"original_size":   outcome.OriginalSize,
			"compressed_size": outcome.CompressedSize,
			"ratio":           fmt.Sprintf("%.2f", outcome.RatioPercent),
		}).Info("Image compressed")
	}
	outcome.Duration = time.Since(start)
	return outcome
}

func (p *Pipeline) compress(flog *logrus.Entry, outputDir string, src SourceImage, quality float64) (Outcome, error) {
	// The original is read whole before anything is written so its size is
	// known even when the output path overwrites it.
	data, err := afero.ReadFile(p.fs, src.Path)
	if err != nil {
		return Outcome{}, &DecodeError{Name: src.Name, Err: err}
	}
	originalSize := int64(len(data))

	img, err := codec.Decode(bytes.NewReader(data), p.opts.AutoOrient)
	if err != nil {
		return Outcome{}, &DecodeError{Name: src.Name, Err: err}
	}

	dst := OutputPath(outputDir, src)
	if err := codec.WriteFile(p.fs, dst, img, src.Extension, quality); err != nil {
		var unsupported *UnsupportedFormatError
		if errors.As(err, &unsupported) {
			return Outcome{}, err
		}
		return Outcome{}, &EncodeError{Name: src.OutputName(), Err: err}
	}

	if codec.IsLossy(src.Extension) {
		p.carryMetadata(flog, data, src.Path, dst)
	}

	info, err := p.fs.Stat(dst)
	if err != nil {
		return Outcome{}, &EncodeError{Name: src.OutputName(), Err: err}
	}

	return SuccessOutcome(src.Name, originalSize, src.OutputName(), info.Size()), nil
}

// carryMetadata copies tags to dst when a copier is configured. Failures are
// only logged; the compressed image itself is already valid.
func (p *Pipeline) carryMetadata(flog *logrus.Entry, data []byte, src, dst string) {
	if p.opts.Metadata == nil {
		if flog.Logger.IsLevelEnabled(logrus.DebugLevel) && metadata.HasEXIF(bytes.NewReader(data)) {
			flog.Debug("EXIF metadata not carried over to output")
		}
		return
	}
	if err := p.opts.Metadata.CopyMetadata(src, dst); err != nil {
		flog.WithError(err).Warn("Metadata not copied")
	}
}

func sameDirectory(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}
