package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
logging:
  development: false
discovery:
  feed_url: https://feed.example/u/acct
  link_pattern: 'https://feed\.example/p/([A-Za-z0-9_-]+)'
  target_count: 30
  max_rounds: 40
  stale_threshold: 2
  headless: false
primary:
  endpoint: https://text.example/render
  timeout_seconds: 20
  qps: 1.0
secondary:
  endpoint: http://localhost:3000/render
  timeout_seconds: 90
  wait_selector: main
  no_cache: true
scheduler:
  primary_batch_size: 5
  secondary_batch_size: 15
  workers: 8
  fallback_timeout_seconds: 12
parser:
  min_count: 1
  max_count: 50000000
storage:
  gcs_bucket: bucket
  prefix: runs
  retain_snapshots: true
db:
  dsn: postgres://localhost/feedlens
  table: reports
pubsub:
  project_id: proj
  topic_name: feedlens-runs
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Discovery.TargetCount != 30 || cfg.Discovery.Headless {
		t.Fatalf("expected discovery overrides to apply: %+v", cfg.Discovery)
	}
	if cfg.Primary.Endpoint != "https://text.example/render" || cfg.Primary.QPS != 1.0 {
		t.Fatalf("expected primary overrides to apply: %+v", cfg.Primary)
	}
	if !cfg.Secondary.NoCache || cfg.Secondary.WaitSelector != "main" {
		t.Fatalf("expected secondary overrides to apply: %+v", cfg.Secondary)
	}
	if cfg.Scheduler.PrimaryBatchSize != 5 || cfg.Scheduler.SecondaryBatchSize != 15 {
		t.Fatalf("expected scheduler overrides to apply: %+v", cfg.Scheduler)
	}
	if cfg.Parser.MaxCount != 50_000_000 {
		t.Fatalf("expected parser bounds override, got %+v", cfg.Parser)
	}
	if !cfg.Storage.RetainSnapshots || cfg.Storage.GCSBucket != "bucket" {
		t.Fatalf("expected storage overrides to apply: %+v", cfg.Storage)
	}
	if got := cfg.FallbackTimeout(); got != 12*time.Second {
		t.Fatalf("expected fallback timeout 12s, got %v", got)
	}
	if got := cfg.SecondaryTimeout(); got != 90*time.Second {
		t.Fatalf("expected secondary timeout 90s, got %v", got)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Scheduler.PrimaryBatchSize != 10 || cfg.Scheduler.SecondaryBatchSize != 20 {
		t.Fatalf("expected default batch sizes, got %+v", cfg.Scheduler)
	}
	if cfg.Parser.MinCount != 1 || cfg.Parser.MaxCount != 100_000_000 {
		t.Fatalf("expected default parser bounds, got %+v", cfg.Parser)
	}
	if cfg.DB.Table != "extraction_reports" {
		t.Fatalf("expected default table, got %q", cfg.DB.Table)
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Server:    ServerConfig{Port: 8080},
		Discovery: DiscoveryConfig{TargetCount: 10},
		Secondary: SecondaryConfig{TimeoutSeconds: 60},
		Scheduler: SchedulerConfig{
			PrimaryBatchSize:       10,
			SecondaryBatchSize:     20,
			Workers:                4,
			FallbackTimeoutSeconds: 10,
		},
		Parser: ParserConfig{MinCount: 1, MaxCount: 100_000_000},
	}

	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "invalid port",
			cfg: func() Config {
				c := base
				c.Server.Port = 0
				return c
			}(),
			want: "server.port",
		},
		{
			name: "invalid target count",
			cfg: func() Config {
				c := base
				c.Discovery.TargetCount = 0
				return c
			}(),
			want: "discovery.target_count",
		},
		{
			name: "invalid batch size",
			cfg: func() Config {
				c := base
				c.Scheduler.SecondaryBatchSize = 0
				return c
			}(),
			want: "batch sizes",
		},
		{
			name: "invalid workers",
			cfg: func() Config {
				c := base
				c.Scheduler.Workers = 0
				return c
			}(),
			want: "scheduler.workers",
		},
		{
			name: "fallback not shorter than secondary",
			cfg: func() Config {
				c := base
				c.Scheduler.FallbackTimeoutSeconds = 60
				return c
			}(),
			want: "shorter than secondary",
		},
		{
			name: "invalid min count",
			cfg: func() Config {
				c := base
				c.Parser.MinCount = 0
				return c
			}(),
			want: "parser.min_count",
		},
		{
			name: "inverted bounds",
			cfg: func() Config {
				c := base
				c.Parser.MaxCount = 1
				return c
			}(),
			want: "parser.max_count",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
