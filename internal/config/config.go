package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir   string `toml:"data_dir"`
	FramesDir string `toml:"frames_dir"`
	RunsDir   string `toml:"runs_dir"`
	LogDir    string `toml:"log_dir"`
}

// Roboflow contains configuration for the Roboflow dataset API.
type Roboflow struct {
	BaseURL        string `toml:"base_url"`
	RequestTimeout int    `toml:"request_timeout"`
}

// FFmpeg contains transcoder and prober invocation settings.
type FFmpeg struct {
	Binary       string `toml:"binary"`
	ProbeBinary  string `toml:"probe_binary"`
	HWAccel      string `toml:"hwaccel"`
	Encoder      string `toml:"encoder"`
	EncodePreset string `toml:"encode_preset"`
	Quality      int    `toml:"quality"`
	FrameQuality int    `toml:"frame_quality"`
}

// Training contains settings for the external training framework CLI.
type Training struct {
	Binary       string `toml:"binary"`
	SettingsPath string `toml:"settings_path"`
}

// GPULock controls the advisory lock serializing GPU jobs.
type GPULock struct {
	Enabled bool `toml:"enabled"`
}

// History controls the local invocation-history store.
type History struct {
	Enabled bool `toml:"enabled"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for detlab.
//
// Configuration sections by concern:
//   - Paths: dataset/frames/runs/log directories
//   - Roboflow: dataset API endpoint and metadata timeout
//   - FFmpeg: transcoder/prober binaries and encode parameters
//   - Training: yolo CLI binary and default settings file
//   - GPULock: single-GPU-job serialization
//   - History: invocation history store toggle
//   - Logging: log format and level
type Config struct {
	Paths    Paths    `toml:"paths"`
	Roboflow Roboflow `toml:"roboflow"`
	FFmpeg   FFmpeg   `toml:"ffmpeg"`
	Training Training `toml:"training"`
	GPULock  GPULock  `toml:"gpu_lock"`
	History  History  `toml:"history"`
	Logging  Logging  `toml:"logging"`
}

// envOverrides are applied over the file contents so deployments can adjust
// behavior without editing the config file.
type envOverrides struct {
	LogLevel        string `env:"DETLAB_LOG_LEVEL"`
	LogFormat       string `env:"DETLAB_LOG_FORMAT"`
	FFmpegBinary    string `env:"DETLAB_FFMPEG"`
	FFprobeBinary   string `env:"DETLAB_FFPROBE"`
	YoloBinary      string `env:"DETLAB_YOLO"`
	RoboflowBaseURL string `env:"DETLAB_ROBOFLOW_BASE_URL"`
}

// DefaultConfigPath returns the absolute path to the default configuration
// file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/detlab/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. The boolean reports
// whether a file existed at the resolved path.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func (c *Config) applyEnv() error {
	var overrides envOverrides
	if err := env.Parse(&overrides); err != nil {
		return fmt.Errorf("parse environment overrides: %w", err)
	}
	if v := strings.TrimSpace(overrides.LogLevel); v != "" {
		c.Logging.Level = v
	}
	if v := strings.TrimSpace(overrides.LogFormat); v != "" {
		c.Logging.Format = v
	}
	if v := strings.TrimSpace(overrides.FFmpegBinary); v != "" {
		c.FFmpeg.Binary = v
	}
	if v := strings.TrimSpace(overrides.FFprobeBinary); v != "" {
		c.FFmpeg.ProbeBinary = v
	}
	if v := strings.TrimSpace(overrides.YoloBinary); v != "" {
		c.Training.Binary = v
	}
	if v := strings.TrimSpace(overrides.RoboflowBaseURL); v != "" {
		c.Roboflow.BaseURL = v
	}
	return nil
}

func (c *Config) normalize() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.FramesDir, err = expandPath(c.Paths.FramesDir); err != nil {
		return fmt.Errorf("paths.frames_dir: %w", err)
	}
	if c.Paths.RunsDir, err = expandPath(c.Paths.RunsDir); err != nil {
		return fmt.Errorf("paths.runs_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Roboflow.BaseURL = strings.TrimRight(strings.TrimSpace(c.Roboflow.BaseURL), "/")
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("detlab.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories commands write into.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.FramesDir, c.Paths.RunsDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// HistoryDBPath returns the location of the invocation-history database.
func (c *Config) HistoryDBPath() string {
	return filepath.Join(c.Paths.LogDir, "history.db")
}

// GPULockPath returns the advisory lock file guarding GPU jobs.
func (c *Config) GPULockPath() string {
	return filepath.Join(c.Paths.LogDir, "gpu.lock")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
