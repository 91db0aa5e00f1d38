package config

const (
	defaultConfigPath            = "~/.config/drip/config.toml"
	defaultDisplayWidth          = 1280
	defaultDisplayHeight         = 800
	defaultCameraWidth           = 1280
	defaultCameraHeight          = 720
	defaultCameraDevice          = "/dev/video0"
	defaultCameraFormat          = "mjpeg"
	defaultRecordingFPS          = 30.0
	defaultTempDir               = "/tmp"
	defaultRecordingsDir         = "./recordings"
	defaultProgressFile          = "/tmp/ffmpeg_progress.txt"
	defaultTranscodePollMS       = 200
	defaultFFmpegBinary          = "ffmpeg"
	defaultFFprobeBinary         = "ffprobe"
	defaultZoomStep              = 512
	defaultZoomRepeatMS          = 100
	defaultSerialBaud            = 9600
	defaultSerialReplyTimeoutMS  = 200
	defaultExportDestDir         = "./recordings/"
	defaultNtfyRequestTimeout    = 10
	defaultAPIBind               = "0.0.0.0:5000"
	defaultStateDir              = "~/.local/share/drip"
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultLogRetentionDays      = 30
	maxZoomStep                  = 16384
	minTranscodePollMS           = 10
	maxSerialReplyTimeoutSeconds = 10
)

// DefaultSerialPorts lists the candidate device paths tried, in order, when
// the camera head connection is opened.
var DefaultSerialPorts = []string{"/dev/ttyUSB0", "/dev/ttyACM0", "/dev/ttyS0"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		DisplayWidth:         defaultDisplayWidth,
		DisplayHeight:        defaultDisplayHeight,
		FullScreen:           true,
		ShowNavBar:           true,
		ShowFPS:              false,
		CameraWidth:          defaultCameraWidth,
		CameraHeight:         defaultCameraHeight,
		CameraDevice:         defaultCameraDevice,
		CameraFormat:         defaultCameraFormat,
		RecordingFPS:         defaultRecordingFPS,
		OverlayTimestamp:     true,
		TempDir:              defaultTempDir,
		RecordingsDir:        defaultRecordingsDir,
		ProgressFile:         defaultProgressFile,
		TranscodePollMS:      defaultTranscodePollMS,
		FFmpegBinary:         defaultFFmpegBinary,
		FFprobeBinary:        defaultFFprobeBinary,
		ZoomStep:             defaultZoomStep,
		ZoomRepeatMS:         defaultZoomRepeatMS,
		SerialPorts:          append([]string(nil), DefaultSerialPorts...),
		SerialBaud:           defaultSerialBaud,
		SerialReplyTimeoutMS: defaultSerialReplyTimeoutMS,
		ExportDestDir:        defaultExportDestDir,
		KeepOriginalFiles:    true,
		ExportManifest:       true,
		NtfyRequestTimeout:   defaultNtfyRequestTimeout,
		APIEnabled:           true,
		APIBind:              defaultAPIBind,
		StorageMonitor:       true,
		StateDir:             defaultStateDir,
		LogFormat:            defaultLogFormat,
		LogLevel:             defaultLogLevel,
		LogRetentionDays:     defaultLogRetentionDays,
	}
}
