package main

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	SlackBotToken string `yaml:"slack_bot_token"`
	SlackAppToken string `yaml:"slack_app_token"`

	LLMProvider     string  `yaml:"llm_provider"`
	LLMModel        string  `yaml:"llm_model"`
	AnthropicAPIKey string  `yaml:"anthropic_api_key"`
	OpenAIAPIKey    string  `yaml:"openai_api_key"`
	LLMRateRPS      float64 `yaml:"llm_rate_rps"`
	LLMRateBurst    int     `yaml:"llm_rate_burst"`

	DraftCacheTTLMinutes int `yaml:"draft_cache_ttl_minutes"`

	DBPath          string `yaml:"db_path"`
	ExportOutputDir string `yaml:"export_output_dir"`
	CodebookPath    string `yaml:"codebook_path"`

	Reviewers          []string `yaml:"reviewers"`
	ReportChannelID    string   `yaml:"report_channel_id"`
	AutoExportSchedule string   `yaml:"auto_export_schedule"`
	ProjectName        string   `yaml:"project_name"`
	Timezone           string   `yaml:"timezone"`
}

func LoadConfig() Config {
	var cfg Config

	// Load from config.yaml if it exists
	configPath := "config.yaml"
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			log.Fatalf("Error parsing %s: %v", configPath, err)
		}
		log.Printf("Loaded config from %s", configPath)
	}

	// Env vars override YAML values
	envOverride(&cfg.SlackBotToken, "SLACK_BOT_TOKEN")
	envOverride(&cfg.SlackAppToken, "SLACK_APP_TOKEN")
	envOverride(&cfg.LLMProvider, "LLM_PROVIDER")
	envOverride(&cfg.LLMModel, "LLM_MODEL")
	envOverride(&cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	envOverride(&cfg.OpenAIAPIKey, "OPENAI_API_KEY")
	envOverrideFloat(&cfg.LLMRateRPS, "LLM_RATE_RPS")
	envOverrideInt(&cfg.LLMRateBurst, "LLM_RATE_BURST")
	envOverrideInt(&cfg.DraftCacheTTLMinutes, "DRAFT_CACHE_TTL_MINUTES")
	envOverride(&cfg.DBPath, "DB_PATH")
	envOverride(&cfg.ExportOutputDir, "EXPORT_OUTPUT_DIR")
	envOverride(&cfg.CodebookPath, "CODEBOOK_PATH")
	envOverride(&cfg.ReportChannelID, "REPORT_CHANNEL_ID")
	envOverride(&cfg.AutoExportSchedule, "AUTO_EXPORT_SCHEDULE")
	envOverride(&cfg.ProjectName, "PROJECT_NAME")
	envOverride(&cfg.Timezone, "TIMEZONE")

	if ids := os.Getenv("REVIEWERS"); ids != "" {
		cfg.Reviewers = nil
		for _, id := range strings.Split(ids, ",") {
			id = strings.TrimSpace(id)
			if id != "" {
				cfg.Reviewers = append(cfg.Reviewers, id)
			}
		}
	}

	// Defaults
	if cfg.LLMProvider == "" {
		cfg.LLMProvider = "anthropic"
	}
	if cfg.LLMRateRPS == 0 {
		cfg.LLMRateRPS = 0.5
	}
	if cfg.LLMRateBurst == 0 {
		cfg.LLMRateBurst = 2
	}
	if cfg.DraftCacheTTLMinutes == 0 {
		cfg.DraftCacheTTLMinutes = 120
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "./codingbot.db"
	}
	if cfg.ExportOutputDir == "" {
		cfg.ExportOutputDir = "./exports"
	}
	if cfg.ProjectName == "" {
		cfg.ProjectName = "coded_data"
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "Local"
	}

	// Validate required fields
	required := map[string]string{
		"slack_bot_token": cfg.SlackBotToken,
		"slack_app_token": cfg.SlackAppToken,
		"codebook_path":   cfg.CodebookPath,
	}
	for name, val := range required {
		if val == "" {
			log.Fatalf("Required config '%s' is not set (via config.yaml or env var)", name)
		}
	}

	switch cfg.LLMProvider {
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			log.Fatalf("anthropic_api_key is required when llm_provider=anthropic")
		}
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			log.Fatalf("openai_api_key is required when llm_provider=openai")
		}
	default:
		log.Fatalf("llm_provider must be 'anthropic' or 'openai', got '%s'", cfg.LLMProvider)
	}

	if cfg.LLMRateRPS <= 0 {
		log.Fatalf("invalid llm_rate_rps '%f': must be > 0", cfg.LLMRateRPS)
	}
	if cfg.LLMRateBurst < 1 {
		log.Fatalf("invalid llm_rate_burst '%d': must be >= 1", cfg.LLMRateBurst)
	}
	if cfg.DraftCacheTTLMinutes < 1 {
		log.Fatalf("invalid draft_cache_ttl_minutes '%d': must be >= 1", cfg.DraftCacheTTLMinutes)
	}

	if strings.EqualFold(cfg.Timezone, "Local") {
		cfg.Timezone = time.Local.String()
	} else {
		loc, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			log.Fatalf("invalid timezone '%s': %v", cfg.Timezone, err)
		}
		time.Local = loc
	}

	return cfg
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideInt(field *int, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			log.Fatalf("invalid %s '%s': %v", envKey, val, err)
		}
		*field = parsed
	}
}

func envOverrideFloat(field *float64, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.ParseFloat(val, 64)
		if err != nil {
			log.Fatalf("invalid %s '%s': %v", envKey, val, err)
		}
		*field = parsed
	}
}

// IsReviewerID reports whether a Slack user may accept or discard records. An
// empty reviewer list means everyone in the workspace may review.
func (c Config) IsReviewerID(userID string) bool {
	if len(c.Reviewers) == 0 {
		return true
	}
	for _, reviewer := range c.Reviewers {
		if reviewer == userID {
			return true
		}
	}
	return false
}
