package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nishad/runsheet/internal/paths"
	"gopkg.in/yaml.v3"
)

// Config represents the runsheet tool configuration
type Config struct {
	LogLevel   string           `yaml:"log_level"`
	Output     OutputConfig     `yaml:"output"`     // Where runsheets are written
	OSDR       OSDRConfig       `yaml:"osdr"`       // Remote file lookup
	Server     ServerConfig     `yaml:"server"`     // HTTP API
	Conversion ConversionConfig `yaml:"conversion"` // Conversion defaults
}

// OutputConfig selects the runsheet sink
type OutputConfig struct {
	Sink      string   `yaml:"sink"`      // "local" or "s3"
	Directory string   `yaml:"directory"` // Local output directory
	S3        S3Config `yaml:"s3"`
}

// S3Config contains object storage settings for the s3 sink
type S3Config struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`   // Optional, for MinIO and friends
	Prefix    string `yaml:"prefix"`     // Key prefix for written runsheets
	PathStyle bool   `yaml:"path_style"` // Force path-style addressing
}

// OSDRConfig contains remote repository API settings
type OSDRConfig struct {
	FilesURL     string      `yaml:"files_url"`      // Template with %s for the OSD number
	SearchURL    string      `yaml:"search_url"`     // Search API used for GLDS mapping
	AccessionURL string      `yaml:"accession_url"`  // Search API used for OSD/GLDS lookups
	DownloadBase string      `yaml:"download_base"`  // Prefix for remote_url suffixes
	Timeout      int         `yaml:"timeout"`        // Seconds
	Cache        CacheConfig `yaml:"cache"`
}

// CacheConfig contains the file-listing cache settings
type CacheConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	TTL     int    `yaml:"ttl"` // Seconds
}

// ServerConfig contains HTTP API settings
type ServerConfig struct {
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	MaxUploadMB   int    `yaml:"max_upload_mb"`
	EnableMetrics bool   `yaml:"enable_metrics"`
}

// ConversionConfig contains defaults for runsheet conversion
type ConversionConfig struct {
	ConfigVersion      string `yaml:"config_version"`
	AssertFactorValues bool   `yaml:"assert_factor_values"`
	ProfilesDirectory  string `yaml:"profiles_directory"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Output: OutputConfig{
			Sink:      "local",
			Directory: ".",
			S3: S3Config{
				Region: "us-east-1",
				Prefix: "runsheets/",
			},
		},
		OSDR: OSDRConfig{
			FilesURL:     "https://osdr.nasa.gov/osdr/data/osd/files/%s",
			SearchURL:    "https://osdr.nasa.gov/osdr/data/search?ffield=Data+Source+Type&fvalue=cgene&size=5000",
			AccessionURL: "https://osdr.nasa.gov/osdr/data/search?size=2000",
			DownloadBase: "https://osdr.nasa.gov",
			Timeout:      30,
			Cache: CacheConfig{
				Enabled: true,
				Path:    paths.GetFileCachePath(),
				TTL:     86400, // 1 day
			},
		},
		Server: ServerConfig{
			Host:          "localhost",
			Port:          8080,
			MaxUploadMB:   64,
			EnableMetrics: true,
		},
		Conversion: ConversionConfig{
			ConfigVersion:      "Latest",
			AssertFactorValues: true,
			ProfilesDirectory:  paths.GetProfilesPath(),
		},
	}
}

// Load loads configuration from a file
func Load(path string) (*Config, error) {
	// Start with defaults
	config := DefaultConfig()

	// Check if file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		config.applyEnvOverrides()
		if err := config.Validate(); err != nil {
			return nil, err
		}
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.Output.Directory = expandPath(config.Output.Directory)
	config.OSDR.Cache.Path = expandPath(config.OSDR.Cache.Path)
	config.Conversion.ProfilesDirectory = expandPath(config.Conversion.ProfilesDirectory)

	config.applyEnvOverrides()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides lets deployment environments override file settings
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("RUNSHEET_OUTPUT_SINK"); v != "" {
		c.Output.Sink = v
	}
	if v := os.Getenv("RUNSHEET_OUTPUT_DIR"); v != "" {
		c.Output.Directory = expandPath(v)
	}
	if v := os.Getenv("RUNSHEET_S3_BUCKET"); v != "" {
		c.Output.S3.Bucket = v
	}
	if v := os.Getenv("RUNSHEET_S3_REGION"); v != "" {
		c.Output.S3.Region = v
	}
	if v := os.Getenv("RUNSHEET_S3_ENDPOINT"); v != "" {
		c.Output.S3.Endpoint = v
	}
	if v := os.Getenv("RUNSHEET_S3_PATH_STYLE"); v != "" {
		c.Output.S3.PathStyle = strings.EqualFold(v, "true")
	}
	if v := os.Getenv("RUNSHEET_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("RUNSHEET_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
}

// Validate checks settings that cannot be defaulted
func (c *Config) Validate() error {
	switch c.Output.Sink {
	case "local", "":
	case "s3":
		if c.Output.S3.Bucket == "" {
			return fmt.Errorf("output.s3.bucket is required for the s3 sink")
		}
	default:
		return fmt.Errorf("unknown output sink %q (expected local or s3)", c.Output.Sink)
	}
	if c.OSDR.Timeout < 0 {
		return fmt.Errorf("osdr.timeout must not be negative")
	}
	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetConfigPath returns the default config file path
func GetConfigPath() string {
	// Check environment variable first
	if path := os.Getenv("RUNSHEET_CONFIG"); path != "" {
		return path
	}

	// Check current directory
	if _, err := os.Stat("runsheet.yaml"); err == nil {
		return "runsheet.yaml"
	}

	p := paths.GetPaths()
	return filepath.Join(p.ConfigDir, "config.yaml")
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if len(path) == 0 {
		return path
	}

	if path[0] == '~' {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[1:])
	}

	return path
}

// IsS3Sink returns true if runsheets go to object storage
func (c *Config) IsS3Sink() bool {
	return c.Output.Sink == "s3"
}
