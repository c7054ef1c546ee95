package config

import (
	"errors"
	"fmt"
	"strings"

	"image-compressor-go/internal/logger"

	"github.com/spf13/viper"
)

// DefaultQuality is the quality factor used when none is configured.
const DefaultQuality = 0.5

// QualityOption represents one of the predefined quality choices offered to users
type QualityOption struct {
	Value       float64 `json:"value"`
	Label       string  `json:"label"`
	Description string  `json:"description"`
}

// Config represents the main configuration structure
type Config struct {
	InputDirectory  string           `mapstructure:"input_directory"`
	OutputDirectory string           `mapstructure:"output_directory"`
	Quality         float64          `mapstructure:"quality"`
	Processing      ProcessingConfig `mapstructure:"processing"`
	Report          ReportConfig     `mapstructure:"report"`
	Logging         LoggingConfig    `mapstructure:"logging"`
}

// ProcessingConfig contains file processing settings
type ProcessingConfig struct {
	CaseInsensitive  bool `mapstructure:"case_insensitive"`
	AutoOrient       bool `mapstructure:"auto_orient"`
	PreserveMetadata bool `mapstructure:"preserve_metadata"`
}

// ReportConfig contains settings for the human-readable log output
type ReportConfig struct {
	GroupThousands bool `mapstructure:"group_thousands"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"` // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
	Compress   bool   `mapstructure:"compress"`
}

// GetQualityOptions returns the discrete quality choices, from smallest output to best fidelity
func GetQualityOptions() []QualityOption {
	options := make([]QualityOption, 0, 9)
	for i := 1; i <= 9; i++ {
		v := float64(i) / 10
		desc := "balanced size and fidelity"
		switch {
		case i <= 3:
			desc = "smallest files, visible artifacts"
		case i >= 7:
			desc = "larger files, close to the original"
		}
		options = append(options, QualityOption{
			Value:       v,
			Label:       fmt.Sprintf("%.1f", v),
			Description: desc,
		})
	}
	return options
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	logDefaults := logger.DefaultConfig()
	return &Config{
		Quality: DefaultQuality,
		Processing: ProcessingConfig{
			CaseInsensitive:  false,
			AutoOrient:       false,
			PreserveMetadata: false,
		},
		Report: ReportConfig{
			GroupThousands: true,
		},
		Logging: LoggingConfig{
			Level:      logDefaults.Level,
			FilePath:   logDefaults.FilePath,
			MaxSize:    logDefaults.MaxSize,
			MaxBackups: logDefaults.MaxBackups,
			MaxAge:     logDefaults.MaxAge,
			Compress:   logDefaults.Compress,
		},
	}
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()
	v := viper.New()

	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.image-compressor")
		v.AddConfigPath("/etc/image-compressor")
	}

	// Defaults make every key visible to AutomaticEnv during Unmarshal
	setDefaults(v, config)

	v.SetEnvPrefix("IMAGE_COMPRESSOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func setDefaults(v *viper.Viper, c *Config) {
	v.SetDefault("input_directory", c.InputDirectory)
	v.SetDefault("output_directory", c.OutputDirectory)
	v.SetDefault("quality", c.Quality)
	v.SetDefault("processing.case_insensitive", c.Processing.CaseInsensitive)
	v.SetDefault("processing.auto_orient", c.Processing.AutoOrient)
	v.SetDefault("processing.preserve_metadata", c.Processing.PreserveMetadata)
	v.SetDefault("report.group_thousands", c.Report.GroupThousands)
	v.SetDefault("logging.level", c.Logging.Level)
	v.SetDefault("logging.file_path", c.Logging.FilePath)
	v.SetDefault("logging.max_size", c.Logging.MaxSize)
	v.SetDefault("logging.max_backups", c.Logging.MaxBackups)
	v.SetDefault("logging.max_age", c.Logging.MaxAge)
	v.SetDefault("logging.compress", c.Logging.Compress)
}

// Validate validates the configuration.
// Directories are checked by the pipeline itself so that the caller can tell
// an input failure from an output failure.
func (c *Config) Validate() error {
	if err := ValidateQuality(c.Quality); err != nil {
		return err
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	c.Logging.Level = strings.ToLower(c.Logging.Level)
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.Logging.Level)
	}

	if c.Logging.MaxSize <= 0 {
		c.Logging.MaxSize = 10
	}

	return nil
}

// ValidateQuality reports whether q lies in (0, 1].
func ValidateQuality(q float64) error {
	if !(q > 0 && q <= 1) {
		return fmt.Errorf("invalid quality: %v (must be greater than 0 and at most 1)", q)
	}
	return nil
}
