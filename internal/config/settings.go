package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AudioConfig holds the recording and silence-detection knobs.
type AudioConfig struct {
	SampleRate              int     `mapstructure:"sample_rate"`
	ChunkSize               int     `mapstructure:"chunk_size"`
	SilenceChunks           int     `mapstructure:"silence_chunks"`
	CalibrationFrames       int     `mapstructure:"calibration_frames"`
	CalibrationBuffer       float64 `mapstructure:"calibration_buffer"`
	DefaultSilenceThreshold float64 `mapstructure:"default_silence_threshold"`
	SaveFile                string  `mapstructure:"save_file"`
}

type STTConfig struct {
	BaseURL              string   `mapstructure:"base_url"`
	MinWords             int      `mapstructure:"min_words"`
	LowConfidencePhrases []string `mapstructure:"low_confidence_phrases"`
}

type LLMConfig struct {
	Provider    string  `mapstructure:"provider"` // "openai" or "ollama"
	BaseURL     string  `mapstructure:"base_url"`
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	TimeoutMins int     `mapstructure:"timeout_mins"`
	OutputFile  string  `mapstructure:"output_file"`
}

func (l LLMConfig) Timeout() time.Duration {
	return time.Duration(l.TimeoutMins) * time.Minute
}

type TTSConfig struct {
	BaseURL        string  `mapstructure:"base_url"`
	APIKey         string  `mapstructure:"api_key"`
	Model          string  `mapstructure:"model"`
	Voice          string  `mapstructure:"voice"`
	Speed          float64 `mapstructure:"speed"`
	ResponseFormat string  `mapstructure:"response_format"`
	OutputFile     string  `mapstructure:"output_file"`
}

type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
}

func (d DBConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		d.Username, d.Password, d.Host, d.Port, d.Name)
}

type ChatConfig struct {
	Store      string   `mapstructure:"store"` // "file" or "mysql"
	HistoryDir string   `mapstructure:"history_dir"`
	DB         DBConfig `mapstructure:"db"`
}

type StatusConfig struct {
	KeepaliveSecs  int    `mapstructure:"keepalive_secs"`
	SessionTTLMins int    `mapstructure:"session_ttl_mins"`
	RedisAddr      string `mapstructure:"redis_addr"` // empty disables the mirror
	RedisTTLMins   int    `mapstructure:"redis_ttl_mins"`
}

func (s StatusConfig) Keepalive() time.Duration {
	return time.Duration(s.KeepaliveSecs) * time.Second
}

func (s StatusConfig) SessionTTL() time.Duration {
	return time.Duration(s.SessionTTLMins) * time.Minute
}

type Settings struct {
	Server ServerConfig `mapstructure:"server"`
	Audio  AudioConfig  `mapstructure:"audio"`
	STT    STTConfig    `mapstructure:"stt"`
	LLM    LLMConfig    `mapstructure:"llm"`
	TTS    TTSConfig    `mapstructure:"tts"`
	Chat   ChatConfig   `mapstructure:"chat"`
	Status StatusConfig `mapstructure:"status"`
	Env    string       `mapstructure:"env"`
	Debug  bool         `mapstructure:"debug"`
}

func setDefaults() {
	viper.SetDefault("server.port", 8040)

	viper.SetDefault("audio.sample_rate", 16000)
	viper.SetDefault("audio.chunk_size", 1024)
	viper.SetDefault("audio.silence_chunks", 50)
	viper.SetDefault("audio.calibration_frames", 30)
	viper.SetDefault("audio.calibration_buffer", 200)
	viper.SetDefault("audio.default_silence_threshold", 500)

	viper.SetDefault("stt.base_url", "http://localhost:9000")
	viper.SetDefault("stt.min_words", 2)
	viper.SetDefault("stt.low_confidence_phrases", []string{
		"thank you", "thanks", "ok", "okay", "yes", "bye", "you", ".",
	})

	viper.SetDefault("llm.provider", "openai")
	viper.SetDefault("llm.base_url", "http://localhost:1234/v1")
	viper.SetDefault("llm.api_key", "not-needed")
	viper.SetDefault("llm.model", "local-model")
	viper.SetDefault("llm.temperature", 0.7)
	viper.SetDefault("llm.max_tokens", 2048)
	viper.SetDefault("llm.timeout_mins", 10)
	viper.SetDefault("llm.output_file", ".cache/llm_responses.txt")

	viper.SetDefault("tts.base_url", "http://localhost:8880/v1")
	viper.SetDefault("tts.api_key", "not-needed")
	viper.SetDefault("tts.model", "kokoro")
	viper.SetDefault("tts.voice", "af")
	viper.SetDefault("tts.speed", 1.0)
	viper.SetDefault("tts.response_format", "mp3")
	viper.SetDefault("tts.output_file", ".cache/tts_output.mp3")

	viper.SetDefault("chat.store", "file")
	viper.SetDefault("chat.history_dir", ".cache/chats")

	viper.SetDefault("status.keepalive_secs", 30)
	viper.SetDefault("status.session_ttl_mins", 30)
	viper.SetDefault("status.redis_ttl_mins", 60)
}

func Load() (*Settings, error) {
	setDefaults()

	viper.SetConfigName("config_" + genEnv())
	viper.AddConfigPath(".")
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// missing file is fine, defaults and env cover every knob
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var settings Settings
	if err := viper.Unmarshal(&settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &settings, nil
}

func genEnv() string {
	env := viper.GetString("ENV")
	if env == "" {
		return "dev"
	}
	return env
}
