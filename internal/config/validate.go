package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateRoboflow(); err != nil {
		return err
	}
	if err := c.validateFFmpeg(); err != nil {
		return err
	}
	if err := c.validateTraining(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateRoboflow() error {
	if strings.TrimSpace(c.Roboflow.BaseURL) == "" {
		return errors.New("roboflow.base_url must be set")
	}
	if c.Roboflow.RequestTimeout <= 0 {
		return errors.New("roboflow.request_timeout must be positive (seconds)")
	}
	return nil
}

func (c *Config) validateFFmpeg() error {
	if strings.TrimSpace(c.FFmpeg.Binary) == "" {
		return errors.New("ffmpeg.binary must be set")
	}
	if strings.TrimSpace(c.FFmpeg.ProbeBinary) == "" {
		return errors.New("ffmpeg.probe_binary must be set")
	}
	if c.FFmpeg.Quality < 0 || c.FFmpeg.Quality > 51 {
		return errors.New("ffmpeg.quality must be between 0 and 51")
	}
	if c.FFmpeg.FrameQuality < 1 || c.FFmpeg.FrameQuality > 31 {
		return errors.New("ffmpeg.frame_quality must be between 1 and 31")
	}
	return nil
}

func (c *Config) validateTraining() error {
	if strings.TrimSpace(c.Training.Binary) == "" {
		return errors.New("training.binary must be set")
	}
	if strings.TrimSpace(c.Training.SettingsPath) == "" {
		return errors.New("training.settings_path must be set")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json", "":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	return nil
}
