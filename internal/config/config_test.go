package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"image-compressor-go/internal/logger"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "{}\n"))
	require.NoError(t, err)

	require.Equal(t, DefaultQuality, cfg.Quality)
	require.False(t, cfg.Processing.CaseInsensitive)
	require.True(t, cfg.Report.GroupThousands)
	require.Equal(t, "info", cfg.Logging.Level)
}

func TestDefaultLoggingMatchesLogger(t *testing.T) {
	want := logger.DefaultConfig()
	got := DefaultConfig().Logging

	require.Equal(t, want.Level, got.Level)
	require.Equal(t, want.FilePath, got.FilePath)
	require.Equal(t, want.MaxSize, got.MaxSize)
	require.Equal(t, want.MaxBackups, got.MaxBackups)
	require.Equal(t, want.MaxAge, got.MaxAge)
	require.Equal(t, want.Compress, got.Compress)
}

func TestLoadConfigFromFile(t *testing.T) {
	path := writeConfig(t, `
input_directory: /photos/in
output_directory: /photos/out
quality: 0.3
processing:
  case_insensitive: true
report:
  group_thousands: false
logging:
  level: DEBUG
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	require.Equal(t, "/photos/in", cfg.InputDirectory)
	require.Equal(t, "/photos/out", cfg.OutputDirectory)
	require.InDelta(t, 0.3, cfg.Quality, 1e-9)
	require.True(t, cfg.Processing.CaseInsensitive)
	require.False(t, cfg.Report.GroupThousands)
	require.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("IMAGE_COMPRESSOR_QUALITY", "0.8")
	t.Setenv("IMAGE_COMPRESSOR_PROCESSING_AUTO_ORIENT", "true")

	cfg, err := LoadConfig(writeConfig(t, "quality: 0.2\n"))
	require.NoError(t, err)

	require.InDelta(t, 0.8, cfg.Quality, 1e-9)
	require.True(t, cfg.Processing.AutoOrient)
}

func TestLoadConfigRejectsOutOfRangeQuality(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "quality: 1.5\n"))
	require.ErrorContains(t, err, "invalid quality")
}

func TestLoadConfigRejectsUnknownLogLevel(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "logging:\n  level: chatty\n"))
	require.ErrorContains(t, err, "invalid log level")
}

func TestValidateQuality(t *testing.T) {
	for _, q := range []float64{0.1, 0.5, 0.9, 1} {
		require.NoError(t, ValidateQuality(q), "quality %v", q)
	}
	for _, q := range []float64{0, -0.1, 1.0001, math.NaN()} {
		require.Error(t, ValidateQuality(q), "quality %v", q)
	}
}

func TestGetQualityOptions(t *testing.T) {
	opts := GetQualityOptions()
	require.Len(t, opts, 9)
	require.Equal(t, "0.1", opts[0].Label)
	require.Equal(t, "0.9", opts[8].Label)
	require.InDelta(t, 0.5, opts[4].Value, 1e-9)
}
