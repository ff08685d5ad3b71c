package conf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/elbartohub/myWhisper/internal/audio"
	"github.com/elbartohub/myWhisper/internal/translate"
)

// Config is the full service configuration, loadable from a config file,
// environment variables (MYWHISPER_*) or flags bound by the CLI layer.
type Config struct {
	Addr string `mapstructure:"addr" json:"addr"`

	DataDir      string `mapstructure:"data_dir" json:"data_dir"`
	UploadsDir   string `mapstructure:"uploads_dir" json:"uploads_dir"`
	OutputsDir   string `mapstructure:"outputs_dir" json:"outputs_dir"`
	ModelsDir    string `mapstructure:"models_dir" json:"models_dir"`
	GlossaryPath string `mapstructure:"glossary_path" json:"glossary_path"`

	Model  string `mapstructure:"model" json:"model"`
	Format string `mapstructure:"format" json:"format"`

	FFmpegPath string `mapstructure:"ffmpeg_path" json:"ffmpeg_path"`

	Chunk     ChunkConfig     `mapstructure:"chunk" json:"chunk"`
	Speech    SpeechConfig    `mapstructure:"speech" json:"speech"`
	Translate TranslateConfig `mapstructure:"translate" json:"translate"`
}

// ChunkConfig controls silence-based audio splitting.
type ChunkConfig struct {
	MinSilenceMs      int     `mapstructure:"min_silence_ms" json:"min_silence_ms"`
	ThresholdOffsetDB float64 `mapstructure:"threshold_offset_db" json:"threshold_offset_db"`
	KeepSilenceMs     int     `mapstructure:"keep_silence_ms" json:"keep_silence_ms"`
	MaxChunkSeconds   int     `mapstructure:"max_chunk_seconds" json:"max_chunk_seconds"`
}

// TranslateConfig controls the optional translation stage. Translation is
// available only when an API key is configured.
type TranslateConfig struct {
	APIKey     string `mapstructure:"api_key" json:"api_key"`
	BaseURL    string `mapstructure:"base_url" json:"base_url"`
	Model      string `mapstructure:"model" json:"model"`
	TargetLang string `mapstructure:"target_lang" json:"target_lang"`
	BatchSize  int    `mapstructure:"batch_size" json:"batch_size"`
}

// Enabled reports whether the translation stage can be offered.
func (c *TranslateConfig) Enabled() bool {
	return c != nil && c.APIKey != ""
}

// ToConfig converts into the translator client config.
func (c *TranslateConfig) ToConfig() translate.Config {
	cfg := translate.Config{
		APIKey:  c.APIKey,
		BaseURL: c.BaseURL,
		Model:   c.Model,
	}
	if cfg.Model == "" {
		cfg.Model = translate.DefaultModel
	}
	return cfg
}

// ToSplitParams converts into the chunker's splitting parameters, filling
// unset fields with defaults.
func (c *ChunkConfig) ToSplitParams() audio.SplitParams {
	params := audio.DefaultSplitParams()
	if c == nil {
		return params
	}
	if c.MinSilenceMs > 0 {
		params.MinSilence = msToDuration(c.MinSilenceMs)
	}
	if c.ThresholdOffsetDB > 0 {
		params.ThresholdOffsetDB = c.ThresholdOffsetDB
	}
	if c.KeepSilenceMs > 0 {
		params.KeepSilence = msToDuration(c.KeepSilenceMs)
	}
	if c.MaxChunkSeconds > 0 {
		params.MaxChunk = secToDuration(c.MaxChunkSeconds)
	}
	return params
}

// Load reads the configuration. configFile may be empty, in which case the
// default search paths are tried and a missing config file is not an error.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("mywhisper")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".mywhisper"))
	}

	v.SetEnvPrefix("MYWHISPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Normalize()
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("addr", "127.0.0.1:8080")
	v.SetDefault("data_dir", "data")
	v.SetDefault("model", "base")
	v.SetDefault("format", "srt")
	v.SetDefault("ffmpeg_path", "ffmpeg")
	v.SetDefault("chunk.min_silence_ms", 700)
	v.SetDefault("chunk.threshold_offset_db", 16)
	v.SetDefault("chunk.keep_silence_ms", 300)
	v.SetDefault("chunk.max_chunk_seconds", 60)
	v.SetDefault("speech.language", "auto")
	v.SetDefault("translate.target_lang", "zh-TW")
	v.SetDefault("translate.batch_size", 8)
}

// Normalize fills the derived directory paths from DataDir when they were
// not set explicitly.
func (c *Config) Normalize() {
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.UploadsDir == "" {
		c.UploadsDir = filepath.Join(c.DataDir, "uploads")
	}
	if c.OutputsDir == "" {
		c.OutputsDir = filepath.Join(c.DataDir, "outputs")
	}
	if c.ModelsDir == "" {
		c.ModelsDir = filepath.Join(c.DataDir, "models")
	}
	if c.GlossaryPath == "" {
		c.GlossaryPath = filepath.Join(c.DataDir, "glossary.txt")
	}
	if c.FFmpegPath == "" {
		c.FFmpegPath = "ffmpeg"
	}
	if c.Model == "" {
		c.Model = "base"
	}
	if c.Format == "" {
		c.Format = "srt"
	}
}

func msToDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

func secToDuration(sec int) time.Duration {
	return time.Duration(sec) * time.Second
}

// EnsureDirs creates the working directories the service needs.
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.UploadsDir, c.OutputsDir, c.ModelsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}
