package config

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"vidshrink/internal/dirs"
	"vidshrink/internal/model"
	"vidshrink/internal/pipeline"
)

// Settings is the resolved configuration from defaults, config file,
// VIDSHRINK_* environment and flags (in increasing precedence).
type Settings struct {
	FFmpegPath  string
	FFprobePath string
	Verbose     bool

	AudioKbps         int
	MinVideoKbps      int
	Tolerance         float64
	RetrySafety       float64
	PassthroughMargin float64
	Container         string
	VideoCodec        string
	Preset            string
	TwoPass           bool

	LogLevel       string
	LogFile        string
	MetricsPushURL string
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	t := pipeline.DefaultTuning()
	enc := pipeline.DefaultEncodeOptions()
	v.SetDefault("audio_kbps", enc.AudioBps/1000)
	v.SetDefault("min_video_kbps", enc.MinVideoBps/1000)
	v.SetDefault("tolerance", t.Tolerance)
	v.SetDefault("retry_safety", t.RetrySafety)
	v.SetDefault("passthrough_margin", t.PassthroughMargin)
	v.SetDefault("container", enc.Container)
	v.SetDefault("video_codec", enc.VideoCodec)
	v.SetDefault("preset", enc.Preset)
	v.SetDefault("two_pass", false)
	v.SetDefault("log_level", "info")
}

// Init wires Viper with config paths, env, defaults, and flag bindings.
// It is non-fatal: any errors are returned for optional handling by caller.
func Init(root *cobra.Command) error {
	v := viper.GetViper()

	// Ensure base directories exist
	_ = dirs.EnsureAll()

	// Setup config search path
	if cfgDir, err := dirs.ConfigDir(); err == nil {
		v.AddConfigPath(cfgDir)
	}
	v.SetConfigName("config") // supports config.{yaml|yml|json|toml}

	// Environment variables: VIDSHRINK_*
	v.SetEnvPrefix("VIDSHRINK")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	// Bind root persistent flags to Viper keys
	BindFlags(v, root.PersistentFlags(), map[string]string{
		"verbose":          "verbose",
		"ffmpeg":           "ffmpeg",
		"ffprobe":          "ffprobe",
		"log_level":        "log-level",
		"log_file":         "log-file",
		"metrics_push_url": "metrics-push-url",
	})

	// Read config file if present (ignore not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

// BindFlags binds each viper key to the named flag when fs defines it.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		if f := fs.Lookup(name); f != nil {
			_ = v.BindPFlag(key, f)
		}
	}
}

// Load resolves Settings from the global viper instance.
func Load() (Settings, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom resolves and validates Settings from v.
func LoadFrom(v *viper.Viper) (Settings, error) {
	s := Settings{
		FFmpegPath:        v.GetString("ffmpeg"),
		FFprobePath:       v.GetString("ffprobe"),
		Verbose:           v.GetBool("verbose"),
		AudioKbps:         v.GetInt("audio_kbps"),
		MinVideoKbps:      v.GetInt("min_video_kbps"),
		Tolerance:         v.GetFloat64("tolerance"),
		RetrySafety:       v.GetFloat64("retry_safety"),
		PassthroughMargin: v.GetFloat64("passthrough_margin"),
		Container:         strings.ToLower(strings.TrimPrefix(v.GetString("container"), ".")),
		VideoCodec:        v.GetString("video_codec"),
		Preset:            v.GetString("preset"),
		TwoPass:           v.GetBool("two_pass"),
		LogLevel:          v.GetString("log_level"),
		LogFile:           v.GetString("log_file"),
		MetricsPushURL:    v.GetString("metrics_push_url"),
	}
	return s, s.Validate()
}

// Validate rejects values the controller cannot work with.
func (s Settings) Validate() error {
	switch {
	case s.AudioKbps < 32 || s.AudioKbps > 512:
		return fmt.Errorf("audio_kbps %d out of range 32..512", s.AudioKbps)
	case s.MinVideoKbps < 0:
		return fmt.Errorf("min_video_kbps must not be negative")
	case s.Tolerance < 0 || s.Tolerance > 0.5:
		return fmt.Errorf("tolerance %.3f out of range 0..0.5", s.Tolerance)
	case s.RetrySafety <= 0 || s.RetrySafety > 1:
		return fmt.Errorf("retry_safety %.3f out of range (0, 1]", s.RetrySafety)
	case s.PassthroughMargin < 0 || s.PassthroughMargin >= 1:
		return fmt.Errorf("passthrough_margin %.3f out of range [0, 1)", s.PassthroughMargin)
	case s.Container == "":
		return fmt.Errorf("container must not be empty")
	}
	return nil
}

// EncodeOptions converts the settings into shared encoder options.
func (s Settings) EncodeOptions() model.EncodeOptions {
	enc := pipeline.DefaultEncodeOptions()
	enc.Container = s.Container
	enc.AudioBps = int64(s.AudioKbps) * 1000
	enc.MinVideoBps = int64(s.MinVideoKbps) * 1000
	enc.TwoPass = s.TwoPass
	if s.VideoCodec != "" {
		enc.VideoCodec = s.VideoCodec
	}
	if s.Preset != "" {
		enc.Preset = s.Preset
	}
	return enc
}

// Tuning converts the settings into controller constants.
func (s Settings) Tuning() pipeline.Tuning {
	return pipeline.Tuning{
		Tolerance:         s.Tolerance,
		RetrySafety:       s.RetrySafety,
		PassthroughMargin: s.PassthroughMargin,
	}
}
