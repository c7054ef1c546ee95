package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"image-compressor-go/internal/codec"
	"image-compressor-go/internal/config"
	"image-compressor-go/internal/logger"
	"image-compressor-go/internal/metadata"
	"image-compressor-go/internal/pipeline"
	"image-compressor-go/internal/report"
	"image-compressor-go/internal/statistics"
	"image-compressor-go/internal/web"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var (
	cfgFile   string
	inputDir  string
	outputDir string
	quality   float64
	verbose   bool
	quiet     bool
	port      int
)

// errReported marks an error that has already been shown to the user.
var errReported = errors.New("already reported")

// rootCmd compresses every image of one directory into another.
var rootCmd = &cobra.Command{
	Use:   "image-compressor [input-dir] [output-dir]",
	Short: "Batch-compress JPEG, PNG and GIF images",
	Long: `ImageCompressor re-encodes every .jpg, .png and .gif file found directly
inside the input directory and writes a "<name>-min.<ext>" copy into the
output directory, reporting the size before and after.

Quality (0 < q <= 1) applies to JPEG only; smaller numbers mean smaller files.
PNG and GIF files are re-encoded with their default settings.`,
	Args:          cobra.MaximumNArgs(2),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runCompress,
}

// serveCmd starts the web interface server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start web interface server",
	Long: `Starts an HTTP server exposing the compressor as a JSON API.
Progress of a running batch is pushed to websocket clients on /ws
as each file finishes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

// inspectCmd shows how a single file would be treated.
var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Show format, dimensions and EXIF of an image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInspect(cmd.OutOrStdout(), args[0])
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "suppress non-error output")

	rootCmd.Flags().StringVar(&inputDir, "input", "", "directory containing the images to compress")
	rootCmd.Flags().StringVar(&outputDir, "output", "", "directory receiving the compressed copies")
	rootCmd.Flags().Float64Var(&quality, "quality", config.DefaultQuality, "JPEG quality factor, 0 < q <= 1")

	serveCmd.Flags().IntVar(&port, "port", 8080, "port to run web server on")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(inspectCmd)
}

// runCompress runs one batch and prints its log.
func runCompress(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := setupLogger(cfg)
	copier := setupMetadataCopier(cfg, log)
	if copier != nil {
		defer copier.Close()
	}

	stats := statistics.NewStatistics()
	opts := pipeline.Options{
		CaseInsensitive: cfg.Processing.CaseInsensitive,
		AutoOrient:      cfg.Processing.AutoOrient,
	}
	if copier != nil {
		opts.Metadata = copier
	}
	p := pipeline.New(afero.NewOsFs(), log, stats, opts)
	formatter := report.Formatter{GroupThousands: cfg.Report.GroupThousands}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	req := pipeline.Request{
		InputDirectory:  cfg.InputDirectory,
		OutputDirectory: cfg.OutputDirectory,
		Quality:         cfg.Quality,
	}
	result, err := p.Run(ctx, req, func(o pipeline.Outcome) {
		fmt.Fprint(out, formatter.Outcome(o))
	})
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), report.AlertFor(err).String())
		log.WithError(err).Error("Compression run rejected")
		return errReported
	}
	fmt.Fprint(out, formatter.Finished())
	log.WithField("duration", stats.GetDuration().String()).Debug("Compression command done")

	if result.Canceled {
		fmt.Fprintln(cmd.ErrOrStderr(), "Compression canceled.")
	}
	if !quiet {
		fmt.Fprintln(out, "\n"+stats.GetSummary())
		if result.Failed() > 0 {
			fmt.Fprintln(out, "\n"+stats.GetErrorSummary())
		}
	}

	return nil
}

// runServe starts the web server and handles graceful shutdown.
func runServe() error {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "CONFIG LOAD ERROR: %v\n", err)
		cfg = config.DefaultConfig()
	}

	log := setupLogger(cfg)
	copier := setupMetadataCopier(cfg, log)
	var mc pipeline.MetadataCopier
	if copier != nil {
		defer copier.Close()
		mc = copier
	}
	server := web.NewServer(cfg, log, afero.NewOsFs(), mc)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := server.Start(port); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	fmt.Printf("ImageCompressor API started on http://localhost:%d\n", port)
	fmt.Printf("Press Ctrl+C to stop the server\n\n")

	<-sigChan
	fmt.Println("\nShutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Stop(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	fmt.Println("Server stopped gracefully")
	return nil
}

// runInspect prints how the compressor would treat a file.
func runInspect(w io.Writer, filePath string) error {
	if !fileExists(filePath) {
		return fmt.Errorf("file does not exist: %s", filePath)
	}

	name := filepath.Base(filePath)
	src := pipeline.NewSourceImage(filepath.Dir(filePath), name)

	fmt.Fprintf(w, "File: %s\n", filePath)
	fmt.Fprintf(w, "Eligible: %t\n", pipeline.IsEligible(name, false))
	fmt.Fprintf(w, "Output name: %s\n", src.OutputName())

	enc, err := codec.ForExtension(src.Extension)
	if err != nil {
		fmt.Fprintf(w, "Format: %v\n", err)
		return nil
	}
	qualityNote := "quality ignored"
	if codec.IsLossy(src.Extension) {
		qualityNote = "quality applies"
	}
	fmt.Fprintf(w, "Format: %s (%s)\n", enc.Format(), qualityNote)

	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}
	fmt.Fprintf(w, "Size: %s bytes (%s)\n", humanize.Comma(info.Size()), humanize.IBytes(uint64(info.Size())))

	img, err := codec.Decode(f, false)
	if err != nil {
		fmt.Fprintf(w, "Decode error: %v\n", err)
		return nil
	}
	fmt.Fprintf(w, "Dimensions: %dx%d\n", img.Bounds().Dx(), img.Bounds().Dy())

	summary, err := metadata.ReadEXIFFile(filePath)
	if err != nil {
		fmt.Fprintln(w, "EXIF: none")
		return nil
	}
	fmt.Fprintf(w, "EXIF: make=%q model=%q software=%q orientation=%d\n",
		summary.Make, summary.Model, summary.Software, summary.Orientation)
	if summary.DateTime != nil {
		fmt.Fprintf(w, "EXIF date: %s\n", summary.DateTime.Format("2006-01-02 15:04:05"))
	}
	return nil
}

// loadConfig loads configuration and applies CLI overrides.
func loadConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, err
	}

	if inputDir != "" {
		cfg.InputDirectory = inputDir
	} else if len(args) > 0 {
		cfg.InputDirectory = args[0]
	}

	if outputDir != "" {
		cfg.OutputDirectory = outputDir
	} else if len(args) > 1 {
		cfg.OutputDirectory = args[1]
	}

	if cmd.Flags().Changed("quality") {
		cfg.Quality = quality
	}
	if err := config.ValidateQuality(cfg.Quality); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setupLogger configures and returns a logger.
func setupLogger(cfg *config.Config) *logrus.Logger {
	loggerCfg := logger.LoggerConfig{
		Level:      cfg.Logging.Level,
		FilePath:   cfg.Logging.FilePath,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAge,
		Compress:   cfg.Logging.Compress,
		Console:    verbose,
	}

	if verbose {
		loggerCfg.Level = "debug"
	}
	if quiet {
		loggerCfg.Level = "error"
	}

	log, err := logger.NewLogger(loggerCfg)
	if err != nil {
		log = logrus.New()
		log.SetLevel(logrus.InfoLevel)
	}

	return log
}

// setupMetadataCopier starts exiftool when metadata preservation is enabled.
func setupMetadataCopier(cfg *config.Config, log *logrus.Logger) *metadata.ExiftoolCopier {
	if !cfg.Processing.PreserveMetadata {
		return nil
	}
	copier, err := metadata.NewExiftoolCopier(cfg.Processing.AutoOrient)
	if err != nil {
		log.WithError(err).Warn("Metadata preservation disabled")
		return nil
	}
	return copier
}

// fileExists returns true if the given path exists and is a file.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
