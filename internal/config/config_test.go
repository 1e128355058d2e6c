package config

import (
	"os"
	"path/filepath"
	"testing"

	"storebridge/internal/models"
)

func TestLoadConfig(t *testing.T) {
	// Create a temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
upstream:
  base_url: "https://shop.example.com/admin/api"
sink:
  customers_url: "https://backend.example.com/customers"
database:
  path: "test.db"
tenants:
  - id: "shop-1"
    name: "Shop One"
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Upstream.BaseURL != "https://shop.example.com/admin/api" {
		t.Errorf("unexpected upstream base_url: %s", cfg.Upstream.BaseURL)
	}

	if len(cfg.Tenants) != 1 || cfg.Tenants[0].ID != "shop-1" {
		t.Errorf("expected 1 tenant with ID shop-1")
	}

	// Defaults
	if cfg.Sync.PageSize != models.DefaultPageSize {
		t.Errorf("expected default page_size %d, got %d", models.DefaultPageSize, cfg.Sync.PageSize)
	}
	if cfg.Abandon.ThresholdMinutes != models.DefaultThresholdMinutes {
		t.Errorf("expected default threshold_minutes %d, got %d", models.DefaultThresholdMinutes, cfg.Abandon.ThresholdMinutes)
	}
	if cfg.Sink.AbandonmentsURL != cfg.Sink.CustomersURL {
		t.Errorf("expected abandonments_url to default to customers_url")
	}
}

func TestLoadConfigEnvExpansion(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	t.Setenv("TEST_SINK_URL", "https://backend.example.com/hook")

	yamlContent := `
upstream:
  base_url: "https://shop.example.com"
sink:
  customers_url: "${TEST_SINK_URL}"
database:
  path: "test.db"
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Sink.CustomersURL != "https://backend.example.com/hook" {
		t.Errorf("env expansion failed, got %s", cfg.Sink.CustomersURL)
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "valid config",
			cfg: Config{
				Upstream: UpstreamConfig{BaseURL: "https://shop.example.com"},
				Sink:     SinkConfig{CustomersURL: "https://backend.example.com"},
				Database: DatabaseConfig{Path: "path"},
			},
			wantErr: false,
		},
		{
			name: "missing upstream",
			cfg: Config{
				Sink:     SinkConfig{CustomersURL: "https://backend.example.com"},
				Database: DatabaseConfig{Path: "path"},
			},
			wantErr: true,
		},
		{
			name: "missing sink",
			cfg: Config{
				Upstream: UpstreamConfig{BaseURL: "https://shop.example.com"},
				Database: DatabaseConfig{Path: "path"},
			},
			wantErr: true,
		},
		{
			name: "missing database path",
			cfg: Config{
				Upstream: UpstreamConfig{BaseURL: "https://shop.example.com"},
				Sink:     SinkConfig{CustomersURL: "https://backend.example.com"},
			},
			wantErr: true,
		},
		{
			name: "duplicate tenant ids",
			cfg: Config{
				Upstream: UpstreamConfig{BaseURL: "https://shop.example.com"},
				Sink:     SinkConfig{CustomersURL: "https://backend.example.com"},
				Database: DatabaseConfig{Path: "path"},
				Tenants: []models.Tenant{
					{ID: "shop-1", Name: "One"},
					{ID: "shop-1", Name: "Two"},
				},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
