package models

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfig_MissingDefaultFile(t *testing.T) {
	dir := t.TempDir()
	wd, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(wd)

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.AI.Model != "gemini-2.5-flash" {
		t.Errorf("AI.Model = %q, want default", cfg.AI.Model)
	}
	if cfg.AI.MaxRetries != 3 {
		t.Errorf("AI.MaxRetries = %d, want 3", cfg.AI.MaxRetries)
	}
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("LoadConfig() expected error for missing explicit file")
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secondlook.yaml")
	data := `
bank:
  account_id: acct-1
  timeout: 3s
ai:
  model: gemini-pro
  max_retries: 5
detection:
  checkout_url_keywords: [basket]
watch:
  debounce: 100ms
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	tests := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{"bank account", cfg.Bank.AccountID, "acct-1"},
		{"bank timeout", cfg.Bank.Timeout, 3 * time.Second},
		{"bank base url default", cfg.Bank.BaseURL, "http://api.nessieisreal.com"},
		{"ai model", cfg.AI.Model, "gemini-pro"},
		{"ai retries", cfg.AI.MaxRetries, 5},
		{"watch debounce", cfg.Watch.Debounce, 100 * time.Millisecond},
		{"server addr default", cfg.Server.Addr, ":8787"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}

	if len(cfg.Detection.CheckoutURLKeywords) != 1 || cfg.Detection.CheckoutURLKeywords[0] != "basket" {
		t.Errorf("Detection.CheckoutURLKeywords = %v", cfg.Detection.CheckoutURLKeywords)
	}
}

func TestLoadConfig_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("bank: [unterminated"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("LoadConfig() expected parse error")
	}
}
