package config

const (
	defaultDataDir          = "~/.local/share/detlab/datasets"
	defaultFramesDir        = "~/.local/share/detlab/frames"
	defaultRunsDir          = "runs"
	defaultLogDir           = "~/.local/share/detlab/logs"
	defaultRoboflowBaseURL  = "https://api.roboflow.com"
	defaultRequestTimeout   = 10
	defaultFFmpegBinary     = "ffmpeg"
	defaultFFprobeBinary    = "ffprobe"
	defaultHWAccel          = "cuda"
	defaultEncoder          = "hevc_nvenc"
	defaultEncodePreset     = "p4"
	defaultEncodeQuality    = 28
	defaultFrameQuality     = 2
	defaultTrainingBinary   = "yolo"
	defaultTrainingSettings = "settings.json"
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:   defaultDataDir,
			FramesDir: defaultFramesDir,
			RunsDir:   defaultRunsDir,
			LogDir:    defaultLogDir,
		},
		Roboflow: Roboflow{
			BaseURL:        defaultRoboflowBaseURL,
			RequestTimeout: defaultRequestTimeout,
		},
		FFmpeg: FFmpeg{
			Binary:       defaultFFmpegBinary,
			ProbeBinary:  defaultFFprobeBinary,
			HWAccel:      defaultHWAccel,
			Encoder:      defaultEncoder,
			EncodePreset: defaultEncodePreset,
			Quality:      defaultEncodeQuality,
			FrameQuality: defaultFrameQuality,
		},
		Training: Training{
			Binary:       defaultTrainingBinary,
			SettingsPath: defaultTrainingSettings,
		},
		GPULock: GPULock{
			Enabled: true,
		},
		History: History{
			Enabled: true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
