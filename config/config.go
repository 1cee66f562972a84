package config

import (
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	apperrors "github.com/nijaru/mediatext/errors"
	"github.com/nijaru/mediatext/media"
)

const (
	EngineWhisper    = "whisper"
	EngineWhisperCPP = "whisper.cpp"
	EngineOpenAI     = "openai"

	DefaultLanguage = "pt"
)

// Config is built once at startup and passed by value; nothing mutates it
// afterwards.
type Config struct {
	OutputDir           string          `yaml:"output_dir"`
	WorkDir             string          `yaml:"work_dir"`
	DefaultTier         media.ModelTier `yaml:"model"`
	Language            string          `yaml:"language"`
	SupportedExtensions []string        `yaml:"supported_extensions"`
	DirectExtensions    []string        `yaml:"direct_extensions"`
	SentenceBreaks      bool            `yaml:"sentence_breaks"`

	Tools         ToolsConfig         `yaml:"tools"`
	Fetch         FetchConfig         `yaml:"fetch"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Server        ServerConfig        `yaml:"server"`
	Log           LogConfig           `yaml:"log"`
	S3            S3Config            `yaml:"s3"`
}

type ToolsConfig struct {
	FFmpeg      string `yaml:"ffmpeg"`
	FFprobe     string `yaml:"ffprobe"`
	YtDlp       string `yaml:"yt_dlp"`
	Whisper     string `yaml:"whisper"`
	WhisperCPP  string `yaml:"whisper_cpp"`
	VerifyAudio bool   `yaml:"verify_audio"`
}

type FetchConfig struct {
	Retries      int           `yaml:"retries"`
	Attempts     int           `yaml:"attempts"`
	Backoff      time.Duration `yaml:"backoff"`
	MaxBackoff   time.Duration `yaml:"max_backoff"`
	RateInterval time.Duration `yaml:"rate_interval"`
	UserAgent    string        `yaml:"user_agent"`
	CookieFile   string        `yaml:"cookie_file"`
}

type TranscriptionConfig struct {
	Engine        string `yaml:"engine"`
	ModelDir      string `yaml:"model_dir"`
	OpenAIKey     string `yaml:"openai_api_key"`
	OpenAIBaseURL string `yaml:"openai_base_url"`
}

type ServerConfig struct {
	Port              string        `yaml:"port"`
	ReadTimeout       time.Duration `yaml:"read_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	IdleTimeout       time.Duration `yaml:"idle_timeout"`
	JobTimeout        time.Duration `yaml:"job_timeout"`
	RateLimit         int           `yaml:"rate_limit"`
	RateLimitInterval time.Duration `yaml:"rate_limit_interval"`
	// MediaRoot is the only directory HTTP clients may name local files in.
	// Empty disables local files over HTTP.
	MediaRoot string `yaml:"media_root"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Dir    string `yaml:"dir"`
}

type S3Config struct {
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

func Default() Config {
	return Config{
		WorkDir:             filepath.Join(os.TempDir(), "mediatext"),
		DefaultTier:         media.DefaultTier,
		Language:            DefaultLanguage,
		SupportedExtensions: append([]string(nil), media.DefaultSupportedExtensions...),
		DirectExtensions:    append([]string(nil), media.DefaultDirectExtensions...),
		Tools: ToolsConfig{
			FFmpeg:      "ffmpeg",
			FFprobe:     "ffprobe",
			YtDlp:       "yt-dlp",
			Whisper:     "whisper",
			WhisperCPP:  "whisper-cli",
			VerifyAudio: true,
		},
		Fetch: FetchConfig{
			Retries:    10,
			Attempts:   3,
			Backoff:    2 * time.Second,
			MaxBackoff: 30 * time.Second,
			CookieFile: "cookies.txt",
		},
		Transcription: TranscriptionConfig{
			Engine: EngineWhisper,
		},
		Server: ServerConfig{
			Port:              "8080",
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      15 * time.Minute,
			IdleTimeout:       60 * time.Second,
			JobTimeout:        10 * time.Minute,
			RateLimit:         5,
			RateLimitInterval: 1 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load layers defaults, the optional YAML file at path, a .env file in the
// working directory and the process environment, then validates the result.
func Load(path string) (Config, error) {
	return load(path, ".env")
}

func load(path, envFile string) (Config, error) {
	const op = "config.Load"

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, apperrors.Configuration(op, err, "cannot read config file")
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, apperrors.Configuration(op, errors.Wrapf(err, "parse %s", path), "invalid config file")
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logrus.WithError(err).WithField("file", envFile).Warn("Failed to load env file")
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.OutputDir = GetEnv("OUTPUT_DIR", cfg.OutputDir)
	cfg.WorkDir = GetEnv("WORK_DIR", cfg.WorkDir)
	cfg.DefaultTier = media.ModelTier(strings.ToLower(GetEnv("WHISPER_MODEL", string(cfg.DefaultTier))))
	cfg.Language = strings.ToLower(GetEnv("TRANSCRIBE_LANGUAGE", cfg.Language))
	cfg.SupportedExtensions = getEnvAsList("SUPPORTED_EXTENSIONS", cfg.SupportedExtensions)
	cfg.DirectExtensions = getEnvAsList("DIRECT_EXTENSIONS", cfg.DirectExtensions)
	cfg.SentenceBreaks = getEnvAsBool("SENTENCE_BREAKS", cfg.SentenceBreaks)

	cfg.Tools.FFmpeg = GetEnv("FFMPEG_PATH", cfg.Tools.FFmpeg)
	cfg.Tools.FFprobe = GetEnv("FFPROBE_PATH", cfg.Tools.FFprobe)
	cfg.Tools.YtDlp = GetEnv("YTDLP_PATH", cfg.Tools.YtDlp)
	cfg.Tools.Whisper = GetEnv("WHISPER_PATH", cfg.Tools.Whisper)
	cfg.Tools.WhisperCPP = GetEnv("WHISPER_CPP_PATH", cfg.Tools.WhisperCPP)
	cfg.Tools.VerifyAudio = getEnvAsBool("VERIFY_AUDIO", cfg.Tools.VerifyAudio)

	cfg.Fetch.Retries = getEnvAsInt("FETCH_RETRIES", cfg.Fetch.Retries)
	cfg.Fetch.Attempts = getEnvAsInt("FETCH_ATTEMPTS", cfg.Fetch.Attempts)
	cfg.Fetch.Backoff = getEnvAsDuration("FETCH_BACKOFF", cfg.Fetch.Backoff)
	cfg.Fetch.MaxBackoff = getEnvAsDuration("FETCH_MAX_BACKOFF", cfg.Fetch.MaxBackoff)
	cfg.Fetch.RateInterval = getEnvAsDuration("FETCH_RATE_INTERVAL", cfg.Fetch.RateInterval)
	cfg.Fetch.UserAgent = GetEnv("FETCH_USER_AGENT", cfg.Fetch.UserAgent)
	cfg.Fetch.CookieFile = GetEnv("COOKIE_FILE", cfg.Fetch.CookieFile)

	cfg.Transcription.Engine = strings.ToLower(GetEnv("TRANSCRIBE_ENGINE", cfg.Transcription.Engine))
	cfg.Transcription.ModelDir = GetEnv("WHISPER_MODEL_DIR", cfg.Transcription.ModelDir)
	cfg.Transcription.OpenAIKey = GetEnv("OPENAI_API_KEY", cfg.Transcription.OpenAIKey)
	cfg.Transcription.OpenAIBaseURL = GetEnv("OPENAI_BASE_URL", cfg.Transcription.OpenAIBaseURL)

	cfg.Server.Port = GetEnv("SERVER_PORT", cfg.Server.Port)
	cfg.Server.ReadTimeout = getEnvAsDuration("READ_TIMEOUT", cfg.Server.ReadTimeout)
	cfg.Server.WriteTimeout = getEnvAsDuration("WRITE_TIMEOUT", cfg.Server.WriteTimeout)
	cfg.Server.IdleTimeout = getEnvAsDuration("IDLE_TIMEOUT", cfg.Server.IdleTimeout)
	cfg.Server.JobTimeout = getEnvAsDuration("JOB_TIMEOUT", cfg.Server.JobTimeout)
	cfg.Server.RateLimit = getEnvAsInt("RATE_LIMIT", cfg.Server.RateLimit)
	cfg.Server.RateLimitInterval = getEnvAsDuration("RATE_LIMIT_INTERVAL", cfg.Server.RateLimitInterval)
	cfg.Server.MediaRoot = GetEnv("MEDIA_ROOT", cfg.Server.MediaRoot)

	cfg.Log.Level = GetEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = GetEnv("LOG_FORMAT", cfg.Log.Format)
	cfg.Log.Dir = GetEnv("LOG_DIR", cfg.Log.Dir)

	cfg.S3.Region = GetEnv("S3_REGION", cfg.S3.Region)
	cfg.S3.Endpoint = GetEnv("S3_ENDPOINT", cfg.S3.Endpoint)
	cfg.S3.AccessKey = GetEnv("S3_ACCESS_KEY", cfg.S3.AccessKey)
	cfg.S3.SecretKey = GetEnv("S3_SECRET_KEY", cfg.S3.SecretKey)
}

func GetEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		logrus.WithFields(logrus.Fields{
			"key":          key,
			"value":        value,
			"defaultValue": defaultValue,
		}).Warn("Invalid duration, using default")
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
		logrus.WithFields(logrus.Fields{
			"key":          key,
			"value":        value,
			"defaultValue": defaultValue,
		}).Warn("Invalid integer, using default")
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
		logrus.WithFields(logrus.Fields{
			"key":          key,
			"value":        value,
			"defaultValue": defaultValue,
		}).Warn("Invalid boolean, using default")
	}
	return defaultValue
}

// getEnvAsList reads a comma separated list such as "mp3,wav".
func getEnvAsList(key string, defaultValue []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	items := lo.FilterMap(strings.Split(value, ","), func(item string, _ int) (string, bool) {
		item = strings.TrimSpace(item)
		return item, item != ""
	})
	if len(items) == 0 {
		logrus.WithField("key", key).Warn("Empty list, using default")
		return defaultValue
	}
	return items
}

// Validate reports the first problem as a ConfigurationError.
func (c Config) Validate() error {
	const op = "config.Validate"

	fail := func(msg string) error {
		return apperrors.Configuration(op, nil, msg)
	}

	if !c.DefaultTier.Valid() {
		return fail("unknown default model tier " + strconv.Quote(string(c.DefaultTier)))
	}
	if c.Language == "" {
		return fail("transcription language is required")
	}
	if c.Language == "auto" {
		return fail("language auto-detection is not supported, set an explicit language")
	}
	if len(c.SupportedExtensions) == 0 {
		return fail("at least one supported extension is required")
	}

	supported := lo.Map(c.SupportedExtensions, func(ext string, _ int) string { return media.NormalizeExtension(ext) })
	for _, ext := range c.DirectExtensions {
		if !lo.Contains(supported, media.NormalizeExtension(ext)) {
			return fail("direct extension " + strconv.Quote(ext) + " is not a supported extension")
		}
	}

	switch c.Transcription.Engine {
	case EngineWhisper:
	case EngineWhisperCPP:
		if c.Transcription.ModelDir == "" {
			return fail("whisper.cpp engine requires a model directory")
		}
	case EngineOpenAI:
		if c.Transcription.OpenAIKey == "" {
			return fail("openai engine requires an API key")
		}
	default:
		return fail("unknown transcription engine " + strconv.Quote(c.Transcription.Engine))
	}

	if c.Fetch.Attempts < 1 {
		return fail("fetch attempts must be at least 1")
	}
	if c.Fetch.Retries < 0 {
		return fail("fetch retries must not be negative")
	}
	if c.Server.Port == "" {
		return fail("server port is required")
	}
	if c.Server.JobTimeout <= 0 {
		return fail("job timeout must be greater than 0")
	}
	if c.Server.ReadTimeout <= 0 {
		return fail("read timeout must be greater than 0")
	}
	if c.Server.WriteTimeout <= 0 {
		return fail("write timeout must be greater than 0")
	}
	if c.Server.IdleTimeout <= 0 {
		return fail("idle timeout must be greater than 0")
	}
	if c.Server.RateLimit <= 0 || c.Server.RateLimitInterval <= 0 {
		return fail("rate limit and interval must be greater than 0")
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fail("log format must be text or json")
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return apperrors.Configuration(op, err, "invalid log level")
	}
	return nil
}

// ResolveOutputDir picks the job's directory, falling back to the
// configured default. It returns "" when neither is set.
func (c Config) ResolveOutputDir(jobDir string) string {
	if dir := strings.TrimSpace(jobDir); dir != "" {
		return dir
	}
	return strings.TrimSpace(c.OutputDir)
}
