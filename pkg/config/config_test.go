package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Search.MinQueryLength != 2 {
		t.Errorf("MinQueryLength = %d, want 2", cfg.Search.MinQueryLength)
	}
	if cfg.Search.DefaultLanguage != "ja" {
		t.Errorf("DefaultLanguage = %q, want ja", cfg.Search.DefaultLanguage)
	}
	if len(cfg.Search.StopWords["en"]) == 0 || len(cfg.Search.StopWords["ja"]) == 0 {
		t.Errorf("expected default stop words for en and ja, got %v", cfg.Search.StopWords)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
search:
  minQueryLength: 3
  maxResults: 20
  searchTimeout: 250ms
  fuzzyThreshold: 0.8
  defaultLanguage: en
redis:
  enabled: true
  cacheTTL: 30s
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("HS_REDIS_ADDR", "cache:6380")
	t.Setenv("HS_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("HS_SERVER_CORS_ORIGINS", "https://game.example,https://help.example")
	t.Setenv("HS_SERVER_RATE_LIMIT", "120")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Search.MinQueryLength != 3 || cfg.Search.MaxResults != 20 {
		t.Errorf("search limits not loaded: %+v", cfg.Search)
	}
	if cfg.Search.SearchTimeout != 250*time.Millisecond {
		t.Errorf("SearchTimeout = %v", cfg.Search.SearchTimeout)
	}
	if cfg.Search.DefaultLanguage != "en" {
		t.Errorf("DefaultLanguage = %q", cfg.Search.DefaultLanguage)
	}
	if !cfg.Redis.Enabled || cfg.Redis.CacheTTL != 30*time.Second {
		t.Errorf("redis not loaded: %+v", cfg.Redis)
	}
	if cfg.Redis.Addr != "cache:6380" {
		t.Errorf("env override ignored: Addr = %q", cfg.Redis.Addr)
	}
	if len(cfg.Kafka.Brokers) != 2 {
		t.Errorf("Brokers = %v", cfg.Kafka.Brokers)
	}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.RateLimitPerMinute != 120 {
		t.Errorf("server overrides ignored: %+v", cfg.Server)
	}
	// Stop words not present in the file keep their defaults.
	if len(cfg.Search.StopWords["en"]) == 0 {
		t.Error("default stop words lost after file load")
	}
}

func TestSearchConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*SearchConfig)
		wantErr bool
	}{
		{"defaults", func(*SearchConfig) {}, false},
		{"zero min length", func(c *SearchConfig) { c.MinQueryLength = 0 }, true},
		{"zero max results", func(c *SearchConfig) { c.MaxResults = 0 }, true},
		{"threshold above one", func(c *SearchConfig) { c.FuzzyThreshold = 1.2 }, true},
		{"threshold zero", func(c *SearchConfig) { c.FuzzyThreshold = 0 }, true},
		{"no language", func(c *SearchConfig) { c.DefaultLanguage = "" }, true},
		{"default history limit", func(c *SearchConfig) { c.HistoryLimit = 0 }, false},
		{"history limit at cap", func(c *SearchConfig) { c.HistoryLimit = 1000 }, false},
		{"history limit above cap", func(c *SearchConfig) { c.HistoryLimit = 1001 }, true},
		{"negative history limit", func(c *SearchConfig) { c.HistoryLimit = -1 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultSearchConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
