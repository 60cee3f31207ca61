package config

import (
	_ "embed"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	HR          HRConfig
	Vision      VisionConfig
	Capture     CaptureConfig
	Database    DatabaseConfig
	Recognition RecognitionConfig
	Session     SessionConfig
	Log         LogConfig
}

type HRConfig struct {
	URL      string // base URL of the HR backend attendance API
	APIKey   string
	Timezone string // IANA zone reported with attendance events
}

type VisionConfig struct {
	URL string // base URL of the detection/embedding sidecar, defaults to http://localhost:8000
}

type CaptureConfig struct {
	URL string // base URL of the camera frame daemon, defaults to http://localhost:8089
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL; empty selects the in-memory gallery
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type RecognitionConfig struct {
	Threshold    float64 `yaml:"threshold"`
	MinMargin    float64 `yaml:"min_margin"`
	EmbeddingDim int     `yaml:"embedding_dim"`
}

type SessionConfig struct {
	WarmupFrames int `yaml:"warmup_frames"`
	AcceptAfter  int `yaml:"accept_after"`  // tracking frames before the accept check
	TimeoutAfter int `yaml:"timeout_after"` // tracking frames before giving up
}

type LogConfig struct {
	Level  string
	Format string
}

// fileDefaults mirrors the embedded defaults.yaml layout.
type fileDefaults struct {
	Recognition RecognitionConfig `yaml:"recognition"`
	Session     SessionConfig     `yaml:"session"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a float.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return defaultVal
}

// envString reads an environment variable with a fallback.
func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func Load() *Config {
	var defaults fileDefaults
	if err := yaml.Unmarshal(defaultsYAML, &defaults); err != nil {
		// Embedded file, cannot fail outside a broken build.
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}

	return &Config{
		HR: HRConfig{
			URL:      os.Getenv("HR_URL"),
			APIKey:   os.Getenv("HR_API_KEY"),
			Timezone: envString("HR_TIMEZONE", "Asia/Ho_Chi_Minh"),
		},
		Vision: VisionConfig{
			URL: envString("VISION_URL", "http://localhost:8000"),
		},
		Capture: CaptureConfig{
			URL: envString("CAPTURE_URL", "http://localhost:8089"),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Recognition: RecognitionConfig{
			Threshold:    envFloat("MATCH_THRESHOLD", defaults.Recognition.Threshold),
			MinMargin:    envFloat("MATCH_MIN_MARGIN", defaults.Recognition.MinMargin),
			EmbeddingDim: envInt("EMBEDDING_DIM", defaults.Recognition.EmbeddingDim),
		},
		Session: SessionConfig{
			WarmupFrames: envInt("SESSION_WARMUP_FRAMES", defaults.Session.WarmupFrames),
			AcceptAfter:  envInt("SESSION_ACCEPT_AFTER", defaults.Session.AcceptAfter),
			TimeoutAfter: envInt("SESSION_TIMEOUT_AFTER", defaults.Session.TimeoutAfter),
		},
		Log: LogConfig{
			Level:  envString("LOG_LEVEL", "info"),
			Format: envString("LOG_FORMAT", "json"),
		},
	}
}
