package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	BaseDir string

	OpenAI   OpenAIConfig
	YouTube  YouTubeConfig
	Media    MediaConfig
	Schedule ScheduleConfig
	History  HistoryConfig
	HTTP     HTTPConfig
	OBS      OBSConfig

	PairToleranceSec float64
	CompMinSec       float64
	CompMaxSec       float64
	PromoLine        string
	Watch            bool
}

type OpenAIConfig struct {
	KeyFile string
}

type YouTubeConfig struct {
	CredentialsFile string
	Privacy         string
	Tags            []string
	Hashtags        string
}

type MediaConfig struct {
	FFmpegBin  string
	FFprobeBin string
}

type ScheduleConfig struct {
	ShortsTime   string
	CompSlot     string
	RotationTime string
	Enabled      bool
}

type HistoryConfig struct {
	SQLitePath string
}

type HTTPConfig struct {
	Addr string
}

type OBSConfig struct {
	Addr     string
	Password string
	Profile  string
}

const (
	defaultPromoLine = "Check out flippi.gg to learn more about this project!"
	defaultHashtags  = "#gaming #supersmashbros #melee"

	defaultShortsTime   = "11:00"
	defaultCompSlot     = "Tuesday 11:45"
	defaultRotationTime = "12:00"

	defaultPairToleranceSec = 16
	defaultCompMinSec       = 50
	defaultCompMaxSec       = 305
)

var defaultTags = []string{
	"Super Smash Bros", "Super Smash Melee", "gaming", "Nintendo",
	"eSports", "viral", "viral shorts", "for you",
}

func Load() Config {
	cfg := Config{}

	cfg.BaseDir = strings.TrimSpace(os.Getenv("FLIPPI_BASE_DIR"))
	if cfg.BaseDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.BaseDir = filepath.Join(home, "project-flippi")
		} else {
			cfg.BaseDir = "."
		}
	}

	cfg.OpenAI.KeyFile = strings.TrimSpace(os.Getenv("FLIPPI_OPENAI_KEY_FILE"))
	if cfg.OpenAI.KeyFile == "" {
		cfg.OpenAI.KeyFile = filepath.Join(cfg.BaseDir, "_keys", "open_AI_key.json")
	}

	cfg.YouTube.CredentialsFile = strings.TrimSpace(os.Getenv("FLIPPI_YT_CREDENTIALS"))
	if cfg.YouTube.CredentialsFile == "" {
		cfg.YouTube.CredentialsFile = filepath.Join(cfg.BaseDir, "_keys", "credentials.json")
	}
	cfg.YouTube.Privacy = strings.TrimSpace(os.Getenv("FLIPPI_YT_PRIVACY"))
	if cfg.YouTube.Privacy == "" {
		cfg.YouTube.Privacy = "public"
	}
	cfg.YouTube.Tags = splitList(os.Getenv("FLIPPI_YT_TAGS"))
	if len(cfg.YouTube.Tags) == 0 {
		cfg.YouTube.Tags = append([]string(nil), defaultTags...)
	}
	cfg.YouTube.Hashtags = readString("FLIPPI_YT_HASHTAGS", defaultHashtags)

	cfg.Media.FFmpegBin = strings.TrimSpace(os.Getenv("FLIPPI_FFMPEG"))
	cfg.Media.FFprobeBin = strings.TrimSpace(os.Getenv("FLIPPI_FFPROBE"))

	cfg.Schedule.ShortsTime = readString("FLIPPI_SHORTS_TIME", defaultShortsTime)
	cfg.Schedule.CompSlot = readString("FLIPPI_COMP_SLOT", defaultCompSlot)
	cfg.Schedule.RotationTime = readString("FLIPPI_ROTATION_TIME", defaultRotationTime)
	cfg.Schedule.Enabled = readBool("FLIPPI_SCHEDULE_ENABLED", true)

	cfg.History.SQLitePath = strings.TrimSpace(os.Getenv("FLIPPI_HISTORY_SQLITE_PATH"))
	if cfg.History.SQLitePath == "" {
		cfg.History.SQLitePath = filepath.Join(cfg.BaseDir, "uploads.db")
	}

	cfg.HTTP.Addr = readString("FLIPPI_HTTP_ADDR", ":8080")

	cfg.OBS.Addr = strings.TrimSpace(os.Getenv("FLIPPI_OBS_ADDR"))
	cfg.OBS.Password = strings.TrimSpace(os.Getenv("FLIPPI_OBS_PASSWORD"))
	cfg.OBS.Profile = strings.TrimSpace(os.Getenv("FLIPPI_OBS_PROFILE"))

	cfg.PairToleranceSec = readFloat("FLIPPI_PAIR_TOLERANCE_SEC", defaultPairToleranceSec)
	cfg.CompMinSec = readFloat("FLIPPI_COMP_MIN_SEC", defaultCompMinSec)
	cfg.CompMaxSec = readFloat("FLIPPI_COMP_MAX_SEC", defaultCompMaxSec)
	cfg.PromoLine = readString("FLIPPI_PROMO_LINE", defaultPromoLine)
	cfg.Watch = readBool("FLIPPI_WATCH", true)

	return cfg
}

func (c Config) PairTolerance() time.Duration {
	sec := c.PairToleranceSec
	if sec <= 0 {
		sec = defaultPairToleranceSec
	}
	return time.Duration(sec * float64(time.Second))
}

func (c Config) OBSEnabled() bool { return c.OBS.Addr != "" }

func splitList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

func readString(name, def string) string {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return def
	}
	return raw
}

func readBool(name string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}

func readFloat(name string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

type Summary struct {
	BaseDir       string  `json:"base_dir"`
	OpenAIKeyFile string  `json:"openai_key_file"`
	YTCredentials string  `json:"yt_credentials"`
	YTPrivacy     string  `json:"yt_privacy"`
	YTTags        int     `json:"yt_tags"`
	HTTPAddr      string  `json:"http_addr,omitempty"`
	HistoryPath   string  `json:"history_path"`
	OBSEnabled    bool    `json:"obs_enabled"`
	Schedule      bool    `json:"schedule"`
	Watch         bool    `json:"watch"`
	PairTolSec    float64 `json:"pair_tolerance_sec"`
	CompMinSec    float64 `json:"comp_min_sec"`
	CompMaxSec    float64 `json:"comp_max_sec"`
}

func (c Config) Summary() Summary {
	return Summary{
		BaseDir:       c.BaseDir,
		OpenAIKeyFile: c.OpenAI.KeyFile,
		YTCredentials: c.YouTube.CredentialsFile,
		YTPrivacy:     c.YouTube.Privacy,
		YTTags:        len(c.YouTube.Tags),
		HTTPAddr:      c.HTTP.Addr,
		HistoryPath:   c.History.SQLitePath,
		OBSEnabled:    c.OBSEnabled(),
		Schedule:      c.Schedule.Enabled,
		Watch:         c.Watch,
		PairTolSec:    c.PairToleranceSec,
		CompMinSec:    c.CompMinSec,
		CompMaxSec:    c.CompMaxSec,
	}
}

func (c Config) SummaryJSON() []byte {
	summary := struct {
		Config Summary `json:"config_summary"`
	}{Config: c.Summary()}
	data, _ := json.Marshal(summary)
	return data
}

// Redacted is the config as exposed on the status endpoint. Paths are kept
// but credentials never leave the file they live in, so only the OBS
// password needs masking.
func (c Config) Redacted() map[string]any {
	return map[string]any{
		"base_dir": c.BaseDir,
		"openai": map[string]any{
			"key_file": c.OpenAI.KeyFile,
		},
		"youtube": map[string]any{
			"credentials_file": c.YouTube.CredentialsFile,
			"privacy":          c.YouTube.Privacy,
			"tags":             append([]string(nil), c.YouTube.Tags...),
		},
		"schedule": map[string]any{
			"enabled":       c.Schedule.Enabled,
			"shorts_time":   c.Schedule.ShortsTime,
			"comp_slot":     c.Schedule.CompSlot,
			"rotation_time": c.Schedule.RotationTime,
		},
		"obs": map[string]any{
			"enabled":  c.OBSEnabled(),
			"addr":     c.OBS.Addr,
			"password": redactString(c.OBS.Password),
			"profile":  c.OBS.Profile,
		},
		"http_addr":          c.HTTP.Addr,
		"history_path":       c.History.SQLitePath,
		"watch":              c.Watch,
		"pair_tolerance_sec": c.PairToleranceSec,
		"comp_min_sec":       c.CompMinSec,
		"comp_max_sec":       c.CompMaxSec,
		"promo_line":         c.PromoLine,
	}
}

func (c Config) RedactedJSON() []byte {
	data, _ := json.MarshalIndent(c.Redacted(), "", "  ")
	return data
}

func redactString(value string) string {
	if strings.TrimSpace(value) == "" {
		return ""
	}
	return "***REDACTED*** (len=" + strconv.Itoa(len(value)) + ")"
}
