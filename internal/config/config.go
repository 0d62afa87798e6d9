package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/satriahrh/voicerelay/domain"
)

// Provider names accepted per stage.
const (
	ProviderMock       = "mock"
	ProviderDeepgram   = "deepgram"
	ProviderGoogle     = "google"
	ProviderGemini     = "gemini"
	ProviderOpenAI     = "openai"
	ProviderElevenLabs = "elevenlabs"
)

// Config represents the complete service configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Logging       LoggingConfig       `yaml:"logging"`
	Audio         AudioConfig         `yaml:"audio"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Generation    GenerationConfig    `yaml:"generation"`
	Synthesis     SynthesisConfig     `yaml:"synthesis"`
}

// ServerConfig contains HTTP and session settings
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	QueueDepth      int           `yaml:"queue_depth"`
	SendBuffer      int           `yaml:"send_buffer"`
	MaxMessageBytes int64         `yaml:"max_message_bytes"`
	HistoryLimit    int           `yaml:"history_limit"`
	MinConfidence   float64       `yaml:"min_confidence"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// AudioConfig contains normalization parameters
type AudioConfig struct {
	Decoder       string        `yaml:"decoder"`
	FFmpegPath    string        `yaml:"ffmpeg_path"`
	SampleRate    int           `yaml:"sample_rate"`
	MinBytes      int           `yaml:"min_bytes"`
	MinDuration   time.Duration `yaml:"min_duration"`
	DecodeTimeout time.Duration `yaml:"decode_timeout"`
	QuietRMS      float64       `yaml:"quiet_rms"`
	BoostRMS      float64       `yaml:"boost_rms"`
	BoostGainDB   float64       `yaml:"boost_gain_db"`
}

// TranscriptionConfig selects and configures the speech-to-text provider
type TranscriptionConfig struct {
	Provider string         `yaml:"provider"`
	Timeout  time.Duration  `yaml:"timeout"`
	Deepgram DeepgramConfig `yaml:"deepgram"`
	Google   GoogleConfig   `yaml:"google"`
}

type DeepgramConfig struct {
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"`
	Model    string `yaml:"model"`
	Language string `yaml:"language"`
}

type GoogleConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
	Language        string `yaml:"language"`
	Model           string `yaml:"model"`
}

// GenerationConfig selects and configures the response generator
type GenerationConfig struct {
	Provider     string        `yaml:"provider"`
	Timeout      time.Duration `yaml:"timeout"`
	SystemPrompt string        `yaml:"system_prompt"`
	Temperature  float32       `yaml:"temperature"`
	TopP         float32       `yaml:"top_p"`
	TopK         float32       `yaml:"top_k"`
	MaxTokens    int           `yaml:"max_tokens"`
	Gemini       GeminiConfig  `yaml:"gemini"`
	OpenAI       OpenAIConfig  `yaml:"openai"`
}

type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// SynthesisConfig selects and configures the text-to-speech provider
type SynthesisConfig struct {
	Provider   string           `yaml:"provider"`
	Timeout    time.Duration    `yaml:"timeout"`
	ElevenLabs ElevenLabsConfig `yaml:"elevenlabs"`
}

type ElevenLabsConfig struct {
	APIKey          string  `yaml:"api_key"`
	BaseURL         string  `yaml:"base_url"`
	VoiceID         string  `yaml:"voice_id"`
	ModelID         string  `yaml:"model_id"`
	OutputFormat    string  `yaml:"output_format"`
	Stability       float64 `yaml:"stability"`
	SimilarityBoost float64 `yaml:"similarity_boost"`
}

// Default returns the configuration used when no file or environment
// override is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8000,
			QueueDepth:      1,
			SendBuffer:      256,
			MaxMessageBytes: 10 << 20,
			HistoryLimit:    10,
			MinConfidence:   0.1,
			IdleTimeout:     10 * time.Minute,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Audio: AudioConfig{
			Decoder:       "auto",
			FFmpegPath:    "ffmpeg",
			SampleRate:    16000,
			MinBytes:      1000,
			MinDuration:   500 * time.Millisecond,
			DecodeTimeout: 30 * time.Second,
			QuietRMS:      500,
			BoostRMS:      1000,
			BoostGainDB:   6,
		},
		Transcription: TranscriptionConfig{
			Provider: ProviderDeepgram,
			Timeout:  30 * time.Second,
			Deepgram: DeepgramConfig{
				BaseURL:  "https://api.deepgram.com/v1",
				Model:    "nova-2",
				Language: "tr",
			},
			Google: GoogleConfig{
				Language: "tr-TR",
			},
		},
		Generation: GenerationConfig{
			Provider:    ProviderGemini,
			Timeout:     30 * time.Second,
			Temperature: 0.7,
			TopP:        0.8,
			TopK:        40,
			MaxTokens:   1000,
			Gemini: GeminiConfig{
				Model: "gemini-1.5-flash",
			},
			OpenAI: OpenAIConfig{
				Model: "gpt-4o-mini",
			},
		},
		Synthesis: SynthesisConfig{
			Provider: ProviderElevenLabs,
			Timeout:  60 * time.Second,
			ElevenLabs: ElevenLabsConfig{
				BaseURL:         "https://api.elevenlabs.io/v1",
				VoiceID:         "21m00Tcm4TlvDq8ikWAM",
				ModelID:         "eleven_multilingual_v2",
				OutputFormat:    "mp3_44100_128",
				Stability:       0.5,
				SimilarityBoost: 0.75,
			},
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path (if
// any), a .env file in the working directory (if any) and the process
// environment, in that order of increasing precedence.
func Load(path string) (*Config, error) {
	config := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if err := config.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// ApplyEnv overrides fields from environment variables looked up with lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	strVars := map[string]*string{
		"HOST":                           &c.Server.Host,
		"LOG_LEVEL":                      &c.Logging.Level,
		"LOG_FORMAT":                     &c.Logging.Format,
		"AUDIO_DECODER":                  &c.Audio.Decoder,
		"FFMPEG_PATH":                    &c.Audio.FFmpegPath,
		"TRANSCRIPTION_PROVIDER":         &c.Transcription.Provider,
		"DEEPGRAM_API_KEY":               &c.Transcription.Deepgram.APIKey,
		"DEEPGRAM_MODEL":                 &c.Transcription.Deepgram.Model,
		"DEEPGRAM_LANGUAGE":              &c.Transcription.Deepgram.Language,
		"GOOGLE_APPLICATION_CREDENTIALS": &c.Transcription.Google.CredentialsFile,
		"GENERATION_PROVIDER":            &c.Generation.Provider,
		"GEMINI_API_KEY":                 &c.Generation.Gemini.APIKey,
		"GEMINI_MODEL":                   &c.Generation.Gemini.Model,
		"OPENAI_API_KEY":                 &c.Generation.OpenAI.APIKey,
		"OPENAI_BASE_URL":                &c.Generation.OpenAI.BaseURL,
		"OPENAI_MODEL":                   &c.Generation.OpenAI.Model,
		"SYNTHESIS_PROVIDER":             &c.Synthesis.Provider,
		"ELEVENLABS_API_KEY":             &c.Synthesis.ElevenLabs.APIKey,
		"ELEVENLABS_VOICE_ID":            &c.Synthesis.ElevenLabs.VoiceID,
		"ELEVENLABS_MODEL":               &c.Synthesis.ElevenLabs.ModelID,
	}
	for name, field := range strVars {
		if v, ok := lookup(name); ok && v != "" {
			*field = v
		}
	}

	if v, ok := lookup("PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		c.Server.Port = port
	}

	return nil
}

// Address returns the listen address of the HTTP server.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.Transcription.Validate(); err != nil {
		return fmt.Errorf("transcription config: %w", err)
	}

	if err := c.Generation.Validate(); err != nil {
		return fmt.Errorf("generation config: %w", err)
	}

	if err := c.Synthesis.Validate(); err != nil {
		return fmt.Errorf("synthesis config: %w", err)
	}

	return nil
}

// Validate validates server configuration
func (s *ServerConfig) Validate() error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", s.Port)
	}
	if s.QueueDepth < 1 {
		return fmt.Errorf("queue_depth must be at least 1, got %d", s.QueueDepth)
	}
	if s.SendBuffer < 1 {
		return fmt.Errorf("send_buffer must be at least 1, got %d", s.SendBuffer)
	}
	if s.MaxMessageBytes < 1024 {
		return fmt.Errorf("max_message_bytes must be at least 1024, got %d", s.MaxMessageBytes)
	}
	if s.HistoryLimit < 1 {
		return fmt.Errorf("history_limit must be at least 1, got %d", s.HistoryLimit)
	}
	if s.MinConfidence < 0 || s.MinConfidence > 1 {
		return fmt.Errorf("min_confidence must be between 0 and 1, got %f", s.MinConfidence)
	}
	if s.IdleTimeout <= 0 {
		return fmt.Errorf("idle_timeout must be positive, got %s", s.IdleTimeout)
	}
	if s.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown_timeout must be positive, got %s", s.ShutdownTimeout)
	}
	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("level must be one of debug, info, warn, error, got %q", l.Level)
	}
	switch l.Format {
	case "json", "console":
	default:
		return fmt.Errorf("format must be json or console, got %q", l.Format)
	}
	return nil
}

// Validate validates audio configuration
func (a *AudioConfig) Validate() error {
	switch a.Decoder {
	case "auto", "ffmpeg", "native", "none":
	default:
		return fmt.Errorf("decoder must be one of auto, ffmpeg, native, none, got %q", a.Decoder)
	}
	// Transcription providers are fed 16 kHz mono only.
	if a.SampleRate != domain.TargetSampleRate {
		return fmt.Errorf("sample_rate must be %d Hz, got %d", domain.TargetSampleRate, a.SampleRate)
	}
	if a.MinBytes < 1 {
		return fmt.Errorf("min_bytes must be positive, got %d", a.MinBytes)
	}
	if a.MinDuration <= 0 {
		return fmt.Errorf("min_duration must be positive, got %s", a.MinDuration)
	}
	if a.DecodeTimeout <= 0 {
		return fmt.Errorf("decode_timeout must be positive, got %s", a.DecodeTimeout)
	}
	if a.QuietRMS < 0 || a.BoostRMS < 0 {
		return fmt.Errorf("loudness thresholds must not be negative")
	}
	return nil
}

// Validate validates transcription configuration
func (t *TranscriptionConfig) Validate() error {
	if t.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", t.Timeout)
	}
	switch t.Provider {
	case ProviderMock, ProviderGoogle:
	case ProviderDeepgram:
		if t.Deepgram.APIKey == "" {
			return fmt.Errorf("deepgram api_key is required (DEEPGRAM_API_KEY)")
		}
	default:
		return fmt.Errorf("unknown provider %q", t.Provider)
	}
	return nil
}

// Validate validates generation configuration
func (g *GenerationConfig) Validate() error {
	if g.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", g.Timeout)
	}
	if g.Temperature < 0 || g.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %f", g.Temperature)
	}
	if g.TopP < 0 || g.TopP > 1 {
		return fmt.Errorf("top_p must be between 0 and 1, got %f", g.TopP)
	}
	if g.MaxTokens < 1 {
		return fmt.Errorf("max_tokens must be positive, got %d", g.MaxTokens)
	}
	switch g.Provider {
	case ProviderMock:
	case ProviderGemini:
		if g.Gemini.APIKey == "" {
			return fmt.Errorf("gemini api_key is required (GEMINI_API_KEY)")
		}
	case ProviderOpenAI:
		if g.OpenAI.APIKey == "" {
			return fmt.Errorf("openai api_key is required (OPENAI_API_KEY)")
		}
	default:
		return fmt.Errorf("unknown provider %q", g.Provider)
	}
	return nil
}

// Validate validates synthesis configuration
func (s *SynthesisConfig) Validate() error {
	if s.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", s.Timeout)
	}
	switch s.Provider {
	case ProviderMock:
	case ProviderElevenLabs:
		if s.ElevenLabs.APIKey == "" {
			return fmt.Errorf("elevenlabs api_key is required (ELEVENLABS_API_KEY)")
		}
		if s.ElevenLabs.Stability < 0 || s.ElevenLabs.Stability > 1 {
			return fmt.Errorf("stability must be between 0 and 1, got %f", s.ElevenLabs.Stability)
		}
		if s.ElevenLabs.SimilarityBoost < 0 || s.ElevenLabs.SimilarityBoost > 1 {
			return fmt.Errorf("similarity_boost must be between 0 and 1, got %f", s.ElevenLabs.SimilarityBoost)
		}
	default:
		return fmt.Errorf("unknown provider %q", s.Provider)
	}
	return nil
}
