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
	DBPath string `yaml:"db_path"`

	ArchiveAPIBase   string `yaml:"archive_api_base"`
	CasesFileURL     string `yaml:"cases_file_url"`
	BuildingsFileURL string `yaml:"buildings_file_url"`
	ClustersFileURL  string `yaml:"clusters_file_url"`

	SyncSchedule  string `yaml:"sync_schedule"`
	Timezone      string `yaml:"timezone"`
	SeedStartDate string `yaml:"seed_start_date"`

	// Case numbers known to be absent from particular historical
	// snapshots; write failures for these are swallowed.
	TolerateCaseIDs []int `yaml:"tolerate_case_ids"`

	SlackBotToken   string `yaml:"slack_bot_token"`
	ReportChannelID string `yaml:"report_channel_id"`

	HTTPTimeoutSeconds int `yaml:"http_timeout_seconds"`

	Location  *time.Location `yaml:"-"`
	SeedStart time.Time      `yaml:"-"`
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
	envOverride(&cfg.DBPath, "DB_PATH")
	envOverride(&cfg.ArchiveAPIBase, "ARCHIVE_API_BASE")
	envOverride(&cfg.CasesFileURL, "CASES_FILE_URL")
	envOverride(&cfg.BuildingsFileURL, "BUILDINGS_FILE_URL")
	envOverride(&cfg.ClustersFileURL, "CLUSTERS_FILE_URL")
	envOverride(&cfg.SyncSchedule, "SYNC_SCHEDULE")
	envOverride(&cfg.Timezone, "TIMEZONE")
	envOverride(&cfg.SeedStartDate, "SEED_START_DATE")
	envOverride(&cfg.SlackBotToken, "SLACK_BOT_TOKEN")
	envOverride(&cfg.ReportChannelID, "REPORT_CHANNEL_ID")
	envOverrideInt(&cfg.HTTPTimeoutSeconds, "HTTP_TIMEOUT_SECONDS")

	if ids := os.Getenv("TOLERATE_CASE_IDS"); ids != "" {
		cfg.TolerateCaseIDs = nil
		for _, part := range strings.Split(ids, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.Atoi(part)
			if err != nil {
				log.Fatalf("invalid TOLERATE_CASE_IDS entry '%s': %v", part, err)
			}
			cfg.TolerateCaseIDs = append(cfg.TolerateCaseIDs, id)
		}
	}

	// Defaults
	if cfg.DBPath == "" {
		cfg.DBPath = "./episync.db"
	}
	if cfg.ArchiveAPIBase == "" {
		cfg.ArchiveAPIBase = "https://api.data.gov.hk/v1/historical-archive"
	}
	if cfg.CasesFileURL == "" {
		cfg.CasesFileURL = "http://www.chp.gov.hk/files/misc/enhanced_sur_covid_19_eng.csv"
	}
	if cfg.BuildingsFileURL == "" {
		cfg.BuildingsFileURL = "http://www.chp.gov.hk/files/misc/building_list_eng.csv"
	}
	if cfg.ClustersFileURL == "" {
		cfg.ClustersFileURL = "http://www.chp.gov.hk/files/misc/large_clusters_eng.csv"
	}
	if cfg.SyncSchedule == "" {
		cfg.SyncSchedule = "30 * * * *"
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "Asia/Hong_Kong"
	}
	if cfg.SeedStartDate == "" {
		cfg.SeedStartDate = "2020-03-01"
	}
	if cfg.TolerateCaseIDs == nil {
		// case 1882 exists in the 20200720/20200721 snapshots but not 20200722
		cfg.TolerateCaseIDs = []int{1882}
	}

	// Validate
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Fatalf("invalid timezone '%s': %v", cfg.Timezone, err)
	}
	cfg.Location = loc

	seedStart, err := time.ParseInLocation("2006-01-02", cfg.SeedStartDate, loc)
	if err != nil {
		log.Fatalf("invalid seed_start_date '%s': %v", cfg.SeedStartDate, err)
	}
	cfg.SeedStart = seedStart

	if cfg.HTTPTimeoutSeconds < 0 {
		log.Fatalf("invalid http_timeout_seconds '%d': must be >= 0", cfg.HTTPTimeoutSeconds)
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

// TolerateSet returns the poison-identity allow-list as a lookup set.
func (c Config) TolerateSet() map[int]bool {
	set := make(map[int]bool, len(c.TolerateCaseIDs))
	for _, id := range c.TolerateCaseIDs {
		set[id] = true
	}
	return set
}
