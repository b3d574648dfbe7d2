package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Retrieve.K1 != 1.2 {
		t.Errorf("expected K1=1.2, got %f", cfg.Retrieve.K1)
	}
	if cfg.Retrieve.LexicalWeight != 0.6 {
		t.Errorf("expected LexicalWeight=0.6, got %f", cfg.Retrieve.LexicalWeight)
	}
	if cfg.Rerank.PassOneKeep != 20 || cfg.Rerank.PassTwoKeep != 12 {
		t.Errorf("expected 20/12 rerank narrowing, got %d/%d", cfg.Rerank.PassOneKeep, cfg.Rerank.PassTwoKeep)
	}
	if cfg.Answer.Concurrency != 3 {
		t.Errorf("expected Concurrency=3, got %d", cfg.Answer.Concurrency)
	}
	if cfg.Ingest.CacheSize != 100 || cfg.Ingest.CacheTTL.Std() != time.Hour {
		t.Errorf("expected cache 100/1h, got %d/%s", cfg.Ingest.CacheSize, cfg.Ingest.CacheTTL.Std())
	}
	if cfg.Guardrail.AllowVehicleTerms {
		t.Error("vehicle terms must be filtered by default")
	}
}

func TestLoad_NonExistent(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	if err != nil {
		t.Errorf("expected no error for non-existent file, got %v", err)
	}
	if cfg == nil {
		t.Error("expected default config, got nil")
	}
}

func TestLoad_ValidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "policyqa.yaml")

	content := `
retrieve:
  lexical_weight: 0.5
  search_k: 30
answer:
  concurrency: 5
  question_deadline: 2m
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Retrieve.LexicalWeight != 0.5 {
		t.Errorf("expected LexicalWeight=0.5, got %f", cfg.Retrieve.LexicalWeight)
	}
	if cfg.Retrieve.SearchK != 30 {
		t.Errorf("expected SearchK=30, got %d", cfg.Retrieve.SearchK)
	}
	if cfg.Answer.Concurrency != 5 {
		t.Errorf("expected Concurrency=5, got %d", cfg.Answer.Concurrency)
	}
	if cfg.Answer.QuestionDeadline.Std() != 2*time.Minute {
		t.Errorf("expected QuestionDeadline=2m, got %s", cfg.Answer.QuestionDeadline.Std())
	}
	// Unspecified fields keep their defaults.
	if cfg.Rerank.PassOneKeep != 20 {
		t.Errorf("expected default PassOneKeep=20, got %d", cfg.Rerank.PassOneKeep)
	}
}

func TestLoadFromDir(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "policyqa.yaml")
	if err := os.WriteFile(configPath, []byte("logging:\n  level: debug\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromDir(tmpDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected level=debug, got %s", cfg.Logging.Level)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "policyqa.yaml")

	cfg := DefaultConfig()
	cfg.Answer.Concurrency = 7
	if err := cfg.Save(configPath); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, err := Load(configPath)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.Answer.Concurrency != 7 {
		t.Errorf("expected Concurrency=7 after round trip, got %d", loaded.Answer.Concurrency)
	}
}
