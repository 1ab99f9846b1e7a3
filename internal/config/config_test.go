package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "blogai.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func clearKeyEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"GEMINI_API_KEY", "GOOGLE_GEMINI_API_KEY", "GOOGLE_API_KEY", "UNSPLASH_ACCESS_KEY", "DATABASE_URL", "BLOGAI_DATABASE_DSN", "DATABASE_DRIVER"} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearKeyEnv(t)

	cfg, err := Load(writeConfig(t, "app:\n  data_dir: "+t.TempDir()+"\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Keywords.PrimaryCount != 5 {
		t.Errorf("Expected primary_count 5, got %d", cfg.Keywords.PrimaryCount)
	}
	if cfg.Keywords.SecondaryCount != 10 {
		t.Errorf("Expected secondary_count 10, got %d", cfg.Keywords.SecondaryCount)
	}
	if cfg.Keywords.DedupeThreshold != 0.85 {
		t.Errorf("Expected dedupe_threshold 0.85, got %f", cfg.Keywords.DedupeThreshold)
	}
	if cfg.Generation.MaxRetries != 2 {
		t.Errorf("Expected max_retries 2, got %d", cfg.Generation.MaxRetries)
	}
	if cfg.SEO.MetaMin != 120 || cfg.SEO.MetaMax != 160 {
		t.Errorf("Unexpected meta bounds %d..%d", cfg.SEO.MetaMin, cfg.SEO.MetaMax)
	}
	if cfg.Database.Driver != "sqlite3" {
		t.Errorf("Expected sqlite3 driver, got %s", cfg.Database.Driver)
	}
	if !strings.HasSuffix(cfg.Database.DSN, "blogai.db") {
		t.Errorf("Expected sqlite DSN under data dir, got %s", cfg.Database.DSN)
	}
	if cfg.AI.Gemini.EmbeddingModel != "gemini-embedding-001" {
		t.Errorf("Unexpected embedding model %s", cfg.AI.Gemini.EmbeddingModel)
	}
	if err := cfg.RequireGemini(); err == nil {
		t.Error("Expected RequireGemini to fail without an API key")
	}
}

func TestLoadEnvironmentAliases(t *testing.T) {
	clearKeyEnv(t)
	t.Setenv("GOOGLE_API_KEY", "google-key")
	t.Setenv("UNSPLASH_ACCESS_KEY", "unsplash-key")
	t.Setenv("DATABASE_URL", "postgres://blogai@localhost/blogai?sslmode=disable")

	cfg, err := Load(writeConfig(t, "ai:\n  gemini:\n    api_key: from-file\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.AI.Gemini.APIKey != "google-key" {
		t.Errorf("Expected environment key to win, got %s", cfg.AI.Gemini.APIKey)
	}
	if err := cfg.RequireGemini(); err != nil {
		t.Errorf("RequireGemini failed: %v", err)
	}
	if !cfg.HasImageSearch() {
		t.Error("Expected image search to be configured")
	}
	if cfg.Database.Driver != "postgres" {
		t.Errorf("Expected postgres driver from DSN, got %s", cfg.Database.Driver)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	clearKeyEnv(t)

	testCases := []struct {
		name    string
		content string
		errPart string
	}{
		{"bad duration", "generation:\n  retry_base_delay: soon\n", "generation.retry_base_delay"},
		{"bad driver", "database:\n  driver: mongo\n", "Unknown database driver"},
		{"bad threshold", "keywords:\n  dedupe_threshold: 1.5\n", "dedupe_threshold"},
		{"inverted meta bounds", "seo:\n  meta_min: 200\n  meta_max: 100\n", "meta_min"},
		{"bad provider", "images:\n  provider: flickr\n", "Unknown image provider"},
		{"request timeout below retry budget", "server:\n  request_timeout: 170s\n", "server.request_timeout"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.content))
			if err == nil {
				t.Fatal("Expected error")
			}
			if !strings.Contains(err.Error(), tc.errPart) {
				t.Errorf("Expected error mentioning %q, got %v", tc.errPart, err)
			}
		})
	}
}

func TestPipelineBudget(t *testing.T) {
	clearKeyEnv(t)

	cfg, err := Load(writeConfig(t, "app:\n  data_dir: "+t.TempDir()+"\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// 2 fetch attempts of 30s + 500ms backoff, one 60s embedding round,
	// 3 generation attempts of 60s + 1s + 2s backoff.
	expected := 60*time.Second + 500*time.Millisecond + 60*time.Second + 180*time.Second + 3*time.Second
	if got := cfg.PipelineBudget(); got != expected {
		t.Errorf("Expected budget %s, got %s", expected, got)
	}
	if timeout := Duration(cfg.Server.RequestTimeout, 0); timeout < expected {
		t.Errorf("Default request timeout %s does not cover the budget %s", timeout, expected)
	}

	cfg.Images.Provider = "unsplash"
	cfg.Images.AccessKey = "real-unsplash-key"
	if got := cfg.PipelineBudget(); got != expected+10*time.Second {
		t.Errorf("Expected image search to add 10s, got %s", got)
	}
}

func TestLoadAcceptsShorterTimeoutWithFasterCalls(t *testing.T) {
	clearKeyEnv(t)

	content := "ai:\n  gemini:\n    timeout: 20s\nserver:\n  request_timeout: 170s\n"
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if budget := cfg.PipelineBudget(); budget > 170*time.Second {
		t.Errorf("Expected budget under 170s, got %s", budget)
	}
}

func TestIsValidAPIKey(t *testing.T) {
	testCases := []struct {
		key      string
		expected bool
	}{
		{"", false},
		{"your-api-key", false},
		{"CHANGE_ME", false},
		{"AIzaSyRealLookingKey", true},
	}

	for _, tc := range testCases {
		if got := isValidAPIKey(tc.key); got != tc.expected {
			t.Errorf("isValidAPIKey(%q) = %v, expected %v", tc.key, got, tc.expected)
		}
	}
}

func TestDuration(t *testing.T) {
	if got := Duration("", 5*time.Second); got != 5*time.Second {
		t.Errorf("Expected fallback, got %v", got)
	}
	if got := Duration("250ms", time.Second); got != 250*time.Millisecond {
		t.Errorf("Expected 250ms, got %v", got)
	}
	if got := Duration("nonsense", time.Second); got != time.Second {
		t.Errorf("Expected fallback for invalid input, got %v", got)
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := expandPath("~/blogai"); got != filepath.Join(home, "blogai") {
		t.Errorf("Expected home expansion, got %s", got)
	}
	t.Setenv("BLOGAI_TEST_DIR", "/tmp/blogai")
	if got := expandPath("$BLOGAI_TEST_DIR/data"); got != "/tmp/blogai/data" {
		t.Errorf("Expected env expansion, got %s", got)
	}
}
