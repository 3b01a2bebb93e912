// Package config provides configuration management using Viper.
// It loads configuration from environment variables, .env files, and config files.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	defaultServerPort   = 8080
	defaultServerHost   = "0.0.0.0"
	defaultReadTimeout  = 30 * time.Second
	defaultWriteTimeout = 30 * time.Second
	defaultLogLevel     = "info"
	defaultLogPretty    = false
	envPrefix           = "SIGNAGE"
)

// Storage defaults
const (
	defaultDataDir       = "./data"
	defaultScreensFile   = "screens.json"
	defaultPlaylistsFile = "playlists.json"
)

// Media defaults
const (
	defaultMediaLibraryPath  = "./media"
	defaultMediaWatchEnabled = true
	defaultFFprobePath       = "ffprobe"
)

// Streaming defaults
const (
	defaultFFmpegPath              = "ffmpeg"
	defaultSegmentPath             = "./data/hls"
	defaultRTMPBaseURL             = "rtmp://127.0.0.1:1935/live"
	defaultRotationIntervalMs      = 30000
	defaultSegmentDuration         = 2
	defaultPlaylistSize            = 10
	defaultSegmentRetentionSeconds = 60
	defaultCleanupInterval         = 30 * time.Second
	defaultStopTimeout             = 5 * time.Second
	defaultEncodingPreset          = "veryfast"
	defaultHardwareAccel           = "none"
	defaultAutoStart               = true
	defaultMinFreeDiskMB           = 512
)

// Presence defaults
const (
	defaultPingInterval = 30 * time.Second
	defaultPongWait     = 60 * time.Second
	defaultWriteWait    = 10 * time.Second
	defaultSendBuffer   = 32
)

// Liveness defaults
const (
	defaultSweepInterval   = 60 * time.Second
	defaultLivenessTimeout = 5 * time.Minute
)

var defaultAutoStartVariants = []string{"stream", "hls"}

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Logging   LoggingConfig
	Media     MediaConfig
	Streaming StreamingConfig
	Presence  PresenceConfig
	Liveness  LivenessConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int
	Host         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// StorageConfig locates the persisted JSON documents
type StorageConfig struct {
	DataDir       string
	ScreensFile   string
	PlaylistsFile string
}

// ScreensPath returns the full path of the screen registry document
func (s StorageConfig) ScreensPath() string {
	return filepath.Join(s.DataDir, s.ScreensFile)
}

// PlaylistsPath returns the full path of the playlist registry document
func (s StorageConfig) PlaylistsPath() string {
	return filepath.Join(s.DataDir, s.PlaylistsFile)
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Pretty bool
}

// MediaConfig holds media library configuration
type MediaConfig struct {
	LibraryPath  string
	WatchEnabled bool
	FFprobePath  string
}

// StreamingConfig holds encoder pipeline configuration
type StreamingConfig struct {
	FFmpegPath              string
	SegmentPath             string
	RTMPBaseURL             string
	RotationIntervalMs      int64
	SegmentDuration         int
	PlaylistSize            int
	SegmentRetentionSeconds int
	CleanupInterval         time.Duration
	StopTimeout             time.Duration
	EncodingPreset          string
	HardwareAccel           string
	AutoStart               bool
	AutoStartVariants       []string
	MinFreeDiskMB           int
}

// RotationInterval returns the rotation bucket as a duration
func (s StreamingConfig) RotationInterval() time.Duration {
	return time.Duration(s.RotationIntervalMs) * time.Millisecond
}

// SegmentRetention returns the segment retention window as a duration
func (s StreamingConfig) SegmentRetention() time.Duration {
	return time.Duration(s.SegmentRetentionSeconds) * time.Second
}

// PresenceConfig holds websocket presence bus configuration
type PresenceConfig struct {
	PingInterval time.Duration
	PongWait     time.Duration
	WriteWait    time.Duration
	SendBuffer   int
}

// LivenessConfig holds heartbeat reconciler configuration
type LivenessConfig struct {
	SweepInterval time.Duration
	Timeout       time.Duration
}

// Load reads configuration from .env file, config files, environment variables, and defaults
func Load() (*Config, error) {
	// .env files are optional in production and CI where env vars are set directly
	_ = godotenv.Load() // nolint:errcheck // .env file is optional

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/signage")

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.host", defaultServerHost)
	v.SetDefault("server.readtimeout", defaultReadTimeout)
	v.SetDefault("server.writetimeout", defaultWriteTimeout)

	v.SetDefault("storage.datadir", defaultDataDir)
	v.SetDefault("storage.screensfile", defaultScreensFile)
	v.SetDefault("storage.playlistsfile", defaultPlaylistsFile)

	v.SetDefault("logging.level", defaultLogLevel)
	v.SetDefault("logging.pretty", defaultLogPretty)

	v.SetDefault("media.librarypath", defaultMediaLibraryPath)
	v.SetDefault("media.watchenabled", defaultMediaWatchEnabled)
	v.SetDefault("media.ffprobepath", defaultFFprobePath)

	v.SetDefault("streaming.ffmpegpath", defaultFFmpegPath)
	v.SetDefault("streaming.segmentpath", defaultSegmentPath)
	v.SetDefault("streaming.rtmpbaseurl", defaultRTMPBaseURL)
	v.SetDefault("streaming.rotationintervalms", defaultRotationIntervalMs)
	v.SetDefault("streaming.segmentduration", defaultSegmentDuration)
	v.SetDefault("streaming.playlistsize", defaultPlaylistSize)
	v.SetDefault("streaming.segmentretentionseconds", defaultSegmentRetentionSeconds)
	v.SetDefault("streaming.cleanupinterval", defaultCleanupInterval)
	v.SetDefault("streaming.stoptimeout", defaultStopTimeout)
	v.SetDefault("streaming.encodingpreset", defaultEncodingPreset)
	v.SetDefault("streaming.hardwareaccel", defaultHardwareAccel)
	v.SetDefault("streaming.autostart", defaultAutoStart)
	v.SetDefault("streaming.autostartvariants", defaultAutoStartVariants)
	v.SetDefault("streaming.minfreediskmb", defaultMinFreeDiskMB)

	v.SetDefault("presence.pinginterval", defaultPingInterval)
	v.SetDefault("presence.pongwait", defaultPongWait)
	v.SetDefault("presence.writewait", defaultWriteWait)
	v.SetDefault("presence.sendbuffer", defaultSendBuffer)

	v.SetDefault("liveness.sweepinterval", defaultSweepInterval)
	v.SetDefault("liveness.timeout", defaultLivenessTimeout)
}

// Validate checks that configuration values are valid
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("invalid read timeout: %v (must be > 0)", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("invalid write timeout: %v (must be > 0)", c.Server.WriteTimeout)
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLevels, c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.Logging.Level, strings.Join(validLevels, ", "))
	}

	if c.Storage.DataDir == "" || c.Storage.ScreensFile == "" || c.Storage.PlaylistsFile == "" {
		return errors.New("storage data dir and document names must not be empty")
	}

	if c.Streaming.RotationIntervalMs <= 0 {
		return fmt.Errorf("invalid rotation interval: %dms (must be > 0)", c.Streaming.RotationIntervalMs)
	}
	if c.Streaming.SegmentDuration <= 0 {
		return fmt.Errorf("invalid segment duration: %d (must be > 0)", c.Streaming.SegmentDuration)
	}
	if c.Streaming.PlaylistSize <= 0 {
		return fmt.Errorf("invalid playlist size: %d (must be > 0)", c.Streaming.PlaylistSize)
	}
	if c.Streaming.SegmentRetentionSeconds <= 0 {
		return fmt.Errorf("invalid segment retention: %ds (must be > 0)", c.Streaming.SegmentRetentionSeconds)
	}
	if c.Streaming.CleanupInterval <= 0 {
		return fmt.Errorf("invalid cleanup interval: %v (must be > 0)", c.Streaming.CleanupInterval)
	}
	if c.Streaming.StopTimeout <= 0 {
		return fmt.Errorf("invalid stop timeout: %v (must be > 0)", c.Streaming.StopTimeout)
	}
	validAccels := []string{"", "none", "auto", "nvenc", "qsv", "vaapi", "videotoolbox"}
	if !contains(validAccels, c.Streaming.HardwareAccel) {
		return fmt.Errorf("invalid hardware acceleration: %s", c.Streaming.HardwareAccel)
	}
	for _, variant := range c.Streaming.AutoStartVariants {
		if variant != "stream" && variant != "hls" {
			return fmt.Errorf("invalid auto start variant: %s (must be stream or hls)", variant)
		}
	}

	if c.Presence.PingInterval <= 0 || c.Presence.PongWait <= c.Presence.PingInterval {
		return fmt.Errorf("invalid presence timing: ping %v must be > 0 and below pong wait %v",
			c.Presence.PingInterval, c.Presence.PongWait)
	}
	if c.Presence.WriteWait <= 0 {
		return fmt.Errorf("invalid presence write wait: %v (must be > 0)", c.Presence.WriteWait)
	}
	if c.Presence.SendBuffer <= 0 {
		return fmt.Errorf("invalid presence send buffer: %d (must be > 0)", c.Presence.SendBuffer)
	}

	if c.Liveness.SweepInterval <= 0 {
		return fmt.Errorf("invalid liveness sweep interval: %v (must be > 0)", c.Liveness.SweepInterval)
	}
	if c.Liveness.Timeout <= 0 {
		return fmt.Errorf("invalid liveness timeout: %v (must be > 0)", c.Liveness.Timeout)
	}

	return nil
}

// contains checks if a string slice contains a specific value
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
