package config

import (
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultInstallDir  = "/opt/paloaltonetworks/globalprotect"
	DefaultToolName    = "PanGpHip"
	DefaultLogFile     = "/tmp/openconnect-hipreport.log"
	DefaultOSRelease   = "/etc/os-release"
	DefaultPrefixBytes = 10
	// LastDocument selects the last complete document PanGpHip prints.
	LastDocument = -1
)

type Config struct {
	GlobalProtect GlobalProtectConfig `yaml:"globalprotect"`
	HIP           HIPConfig           `yaml:"hip"`
	OSRelease     OSReleaseConfig     `yaml:"os_release"`
	Logging       LoggingConfig       `yaml:"logging"`
	Tracing       TracingConfig       `yaml:"tracing"`
}

type GlobalProtectConfig struct {
	InstallDir string `yaml:"install_dir"`
	Tool       string `yaml:"tool"`
}

type HIPConfig struct {
	// PrefixBytes is the length of the framing prefix PanGpHip writes
	// before its first document.
	PrefixBytes int `yaml:"prefix_bytes"`
	// Document is the zero-based index of the concatenated document that
	// carries the HIP report, or LastDocument.
	Document int `yaml:"document"`
	TimeoutS int `yaml:"timeout_s"`
}

type OSReleaseConfig struct {
	Path         string `yaml:"-"`
	AllowMissing bool   `yaml:"allow_missing"`
}

type LoggingConfig struct {
	Debug bool   `yaml:"debug"`
	File  string `yaml:"file"`
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

type TracingConfig struct {
	Endpoint    string  `yaml:"endpoint"`
	Insecure    bool    `yaml:"insecure"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// DefaultConfig returns a config matching a stock GlobalProtect install
func DefaultConfig() *Config {
	return &Config{
		GlobalProtect: GlobalProtectConfig{
			InstallDir: DefaultInstallDir,
		},
		HIP: HIPConfig{
			PrefixBytes: DefaultPrefixBytes,
			Document:    LastDocument,
			TimeoutS:    0,
		},
		OSRelease: OSReleaseConfig{
			Path:         DefaultOSRelease,
			AllowMissing: false,
		},
		Logging: LoggingConfig{
			Debug: false,
			File:  DefaultLogFile,
			Level: "debug",
		},
		Tracing: TracingConfig{
			SampleRatio: 1,
		},
	}
}

// Load reads config from file, then applies env var overrides
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, err
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, err
			}
		}
	}

	applyEnv(cfg, os.Getenv)

	if cfg.GlobalProtect.Tool == "" {
		cfg.GlobalProtect.Tool = filepath.Join(cfg.GlobalProtect.InstallDir, DefaultToolName)
	}

	return cfg, nil
}

func applyEnv(cfg *Config, getenv func(string) string) {
	if getenv("HIPTOOL_DEBUG") != "" {
		cfg.Logging.Debug = true
	}
	if dir := getenv("PA_GP_PATH"); dir != "" {
		cfg.GlobalProtect.InstallDir = dir
	}
	if tool := getenv("PA_GP_HIP"); tool != "" {
		cfg.GlobalProtect.Tool = tool
	}
	if file := getenv("GENHIP_LOG_FILE"); file != "" {
		cfg.Logging.File = file
	}
	if level := getenv("GENHIP_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = strings.ToLower(strings.TrimSpace(level))
	}
}

func (c *Config) Validate() error {
	if c.GlobalProtect.InstallDir == "" {
		return ErrMissingInstallDir
	}
	if c.GlobalProtect.Tool == "" {
		return ErrMissingTool
	}
	if c.HIP.PrefixBytes < 0 {
		return ErrInvalidPrefix
	}
	if c.HIP.Document < LastDocument {
		return ErrInvalidDocument
	}
	if c.HIP.TimeoutS < 0 {
		c.HIP.TimeoutS = 0
	}
	if c.OSRelease.Path == "" {
		c.OSRelease.Path = DefaultOSRelease
	}
	if c.Logging.Debug && c.Logging.File == "" {
		c.Logging.File = DefaultLogFile
	}
	if c.Tracing.SampleRatio <= 0 || c.Tracing.SampleRatio > 1 {
		c.Tracing.SampleRatio = 1
	}
	return nil
}

var (
	ErrMissingInstallDir = &Error{"GlobalProtect install dir is required"}
	ErrMissingTool       = &Error{"HIP tool path is required"}
	ErrInvalidPrefix     = &Error{"hip prefix_bytes must be >= 0"}
	ErrInvalidDocument   = &Error{"hip document index must be >= 0, or -1 for the last document"}
)

type Error struct {
	Message string
}

func (e *Error) Error() string {
	return e.Message
}
