package statistics

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
)

// maxSummaryErrors caps how many errors GetErrorSummary lists.
const maxSummaryErrors = 10

// Statistics contains the totals for one compression run.
type Statistics struct {
	TotalFilesFound     int64
	TotalFilesProcessed int64
	FilesCompressed     int64
	FilesGrown          int64
	FilesWithErrors     int64

	BytesBefore int64
	BytesAfter  int64

	StartTime      time.Time
	EndTime        time.Time
	Duration       time.Duration
	FilesPerSecond float64
	Canceled       bool

	Errors []StatError

	mutex sync.RWMutex

	FileTypeStats map[string]int64
}

// StatError represents an error that occurred during processing.
type StatError struct {
	FilePath  string
	Operation string
	Error     string
	Timestamp time.Time
}

// NewStatistics returns a new Statistics instance.
func NewStatistics() *Statistics {
	return &Statistics{
		StartTime:     time.Now(),
		FileTypeStats: make(map[string]int64),
		Errors:        make([]StatError, 0),
	}
}

// IncrementFilesFound increases the count of found files by 1.
func (s *Statistics) IncrementFilesFound() {
	atomic.AddInt64(&s.TotalFilesFound, 1)
}

// IncrementFileType increases the count for a specific file type by 1.
func (s *Statistics) IncrementFileType(fileType string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.FileTypeStats[strings.ToUpper(fileType)]++
}

// RecordSuccess counts a compressed file and its sizes.
func (s *Statistics) RecordSuccess(originalSize, compressedSize int64) {
	atomic.AddInt64(&s.TotalFilesProcessed, 1)
	atomic.AddInt64(&s.FilesCompressed, 1)
	atomic.AddInt64(&s.BytesBefore, originalSize)
	atomic.AddInt64(&s.BytesAfter, compressedSize)
	if compressedSize > originalSize {
		atomic.AddInt64(&s.FilesGrown, 1)
	}
}

// RecordFailure counts a failed file and keeps its error.
func (s *Statistics) RecordFailure(filePath, operation, errorMsg string) {
	atomic.AddInt64(&s.TotalFilesProcessed, 1)
	atomic.AddInt64(&s.FilesWithErrors, 1)
	s.AddError(filePath, operation, errorMsg)
}

// MarkCanceled records that the run stopped before every file was processed.
func (s *Statistics) MarkCanceled() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.Canceled = true
}

// AddError records an error that occurred during processing.
func (s *Statistics) AddError(filePath, operation, errorMsg string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.Errors = append(s.Errors, StatError{
		FilePath:  filePath,
		Operation: operation,
		Error:     errorMsg,
		Timestamp: time.Now(),
	})
}

// Finalize calculates duration and throughput.
func (s *Statistics) Finalize() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.EndTime = time.Now()
	s.Duration = s.EndTime.Sub(s.StartTime)

	totalProcessed := atomic.LoadInt64(&s.TotalFilesProcessed)
	if s.Duration.Seconds() > 0 {
		s.FilesPerSecond = float64(totalProcessed) / s.Duration.Seconds()
	}
}

// SavedPercent returns the overall size reduction across compressed files.
func (s *Statistics) SavedPercent() float64 {
	before := atomic.LoadInt64(&s.BytesBefore)
	after := atomic.LoadInt64(&s.BytesAfter)
	if before <= 0 {
		return 0
	}
	return (1 - float64(after)/float64(before)) * 100
}

// GetSummary returns a formatted summary of all statistics.
func (s *Statistics) GetSummary() string {
	s.mutex.RLock()
	duration := s.Duration
	fps := s.FilesPerSecond
	canceled := s.Canceled
	s.mutex.RUnlock()

	before := atomic.LoadInt64(&s.BytesBefore)
	after := atomic.LoadInt64(&s.BytesAfter)

	status := "completed"
	if canceled {
		status = "canceled"
	}

	return fmt.Sprintf(`Image Compressor Statistics Summary:

Run:
		Status: %s
		Duration: %v
		Files/Second: %.2f

Files:
		Total Found: %s
		Total Processed: %s
		Compressed: %s
		Grown: %s
		Errors: %s

Sizes:
		Before: %s
		After: %s
		Saved: %.2f%%`,
		status,
		duration.Round(time.Millisecond),
		fps,
		humanize.Comma(atomic.LoadInt64(&s.TotalFilesFound)),
		humanize.Comma(atomic.LoadInt64(&s.TotalFilesProcessed)),
		humanize.Comma(atomic.LoadInt64(&s.FilesCompressed)),
		humanize.Comma(atomic.LoadInt64(&s.FilesGrown)),
		humanize.Comma(atomic.LoadInt64(&s.FilesWithErrors)),
		humanize.IBytes(uint64(before)),
		humanize.IBytes(uint64(after)),
		s.SavedPercent())
}

// GetFileTypeBreakdown returns a formatted breakdown of file types processed.
func (s *Statistics) GetFileTypeBreakdown() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if len(s.FileTypeStats) == 0 {
		return "No file type statistics available"
	}

	var b strings.Builder
	b.WriteString("File Type Breakdown:\n")
	for _, fileType := range []string{"JPG", "JPEG", "PNG", "GIF"} {
		if count, ok := s.FileTypeStats[fileType]; ok {
			fmt.Fprintf(&b, "  %s: %d\n", fileType, count)
		}
	}
	return b.String()
}

// GetErrorSummary returns a summary of errors that occurred during processing.
func (s *Statistics) GetErrorSummary() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if len(s.Errors) == 0 {
		return "No errors occurred during processing"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Errors (%d total):\n", len(s.Errors))
	for i, err := range s.Errors {
		if i >= maxSummaryErrors {
			fmt.Fprintf(&b, "  ... and %d more errors\n", len(s.Errors)-maxSummaryErrors)
			break
		}
		fmt.Fprintf(&b, "  [%s] %s: %s - %s\n",
			err.Timestamp.Format("15:04:05"),
			err.Operation,
			err.FilePath,
			err.Error)
	}
	return b.String()
}

// Snapshot is a copy of the counters that is safe to serialise.
type Snapshot struct {
	TotalFound     int64   `json:"total_found"`
	TotalProcessed int64   `json:"total_processed"`
	Compressed     int64   `json:"compressed"`
	Grown          int64   `json:"grown"`
	Errors         int64   `json:"errors"`
	BytesBefore    int64   `json:"bytes_before"`
	BytesAfter     int64   `json:"bytes_after"`
	SavedPercent   float64 `json:"saved_percent"`
	Canceled       bool    `json:"canceled"`
}

// GetSnapshot returns the current counters.
func (s *Statistics) GetSnapshot() Snapshot {
	s.mutex.RLock()
	canceled := s.Canceled
	s.mutex.RUnlock()

	return Snapshot{
		TotalFound:     atomic.LoadInt64(&s.TotalFilesFound),
		TotalProcessed: atomic.LoadInt64(&s.TotalFilesProcessed),
		Compressed:     atomic.LoadInt64(&s.FilesCompressed),
		Grown:          atomic.LoadInt64(&s.FilesGrown),
		Errors:         atomic.LoadInt64(&s.FilesWithErrors),
		BytesBefore:    atomic.LoadInt64(&s.BytesBefore),
		BytesAfter:     atomic.LoadInt64(&s.BytesAfter),
		SavedPercent:   s.SavedPercent(),
		Canceled:       canceled,
	}
}

// GetDuration returns the total duration of the operation.
func (s *Statistics) GetDuration() time.Duration {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.Duration
}
