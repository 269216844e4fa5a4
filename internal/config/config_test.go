package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const fullYAML = `
database:
  driver: postgres
  host: db.lab.internal
  user: labyard
  password: s3cret
  name: lims

server:
  port: 9090
  jwt_secret: change-me
  token_ttl: 8h

log:
  level: debug
  format: console

codegen:
  driver: redis

redis:
  addr: cache:6379
  db: 2

notify:
  channels: [log, smtp, slack]
  async: true
  smtp:
    host: mail.lab.internal
    from: lims@lab.internal
  slack:
    bot_token: xoxb-1
    channel_id: C123

sweep:
  enabled: true
  cron: "30 7 * * 1-5"
  lookahead_days: 14

attachments:
  driver: minio
  bucket: lims-docs
  endpoint: minio:9000

seed:
  analysis_types:
    - name: pH
      method: potentiometric
      estimated_hours: 2
  plants:
    - code: PL-01
      name: North plant
`

const minimalYAML = `
database:
  user: labyard
`

func TestParse_FullConfig(t *testing.T) {
	cfg, err := Parse([]byte(fullYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Database.Driver != "postgres" {
		t.Errorf("Database.Driver = %q, want %q", cfg.Database.Driver, "postgres")
	}
	if cfg.Database.Port != 5432 {
		t.Errorf("Database.Port = %d, want 5432 (postgres default)", cfg.Database.Port)
	}
	if cfg.Database.Name != "lims" {
		t.Errorf("Database.Name = %q, want %q", cfg.Database.Name, "lims")
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.TokenTTL != 8*time.Hour {
		t.Errorf("Server.TokenTTL = %v, want 8h", cfg.Server.TokenTTL)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "console" {
		t.Errorf("Log = %+v", cfg.Log)
	}
	if cfg.Codegen.Driver != "redis" || cfg.Redis.Addr != "cache:6379" || cfg.Redis.DB != 2 {
		t.Errorf("Codegen/Redis = %+v / %+v", cfg.Codegen, cfg.Redis)
	}
	if len(cfg.Notify.Channels) != 3 || !cfg.Notify.Async {
		t.Errorf("Notify = %+v", cfg.Notify)
	}
	if cfg.Notify.SMTP.Port != 587 {
		t.Errorf("Notify.SMTP.Port = %d, want 587 (default)", cfg.Notify.SMTP.Port)
	}
	if !cfg.SweepEnabled() {
		t.Error("SweepEnabled() = false, want true")
	}
	if cfg.Sweep.Cron != "30 7 * * 1-5" || cfg.Lookahead() != 14*24*time.Hour {
		t.Errorf("Sweep = %+v", cfg.Sweep)
	}
	if cfg.Attachments.Driver != "minio" || cfg.Attachments.Bucket != "lims-docs" {
		t.Errorf("Attachments = %+v", cfg.Attachments)
	}
	if len(cfg.Seed.AnalysisTypes) != 1 || cfg.Seed.AnalysisTypes[0].EstimatedHours != 2 {
		t.Errorf("Seed.AnalysisTypes = %+v", cfg.Seed.AnalysisTypes)
	}
	if len(cfg.Seed.Plants) != 1 || cfg.Seed.Plants[0].Code != "PL-01" {
		t.Errorf("Seed.Plants = %+v", cfg.Seed.Plants)
	}
}

func TestParse_MinimalConfig_AppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	checks := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{"Database.Driver", cfg.Database.Driver, "mysql"},
		{"Database.Host", cfg.Database.Host, "127.0.0.1"},
		{"Database.Port", cfg.Database.Port, 3306},
		{"Database.Name", cfg.Database.Name, "labyard"},
		{"Server.Port", cfg.Server.Port, 8080},
		{"Server.TokenTTL", cfg.Server.TokenTTL, 24 * time.Hour},
		{"Log.Level", cfg.Log.Level, "info"},
		{"Log.Format", cfg.Log.Format, "json"},
		{"Codegen.Driver", cfg.Codegen.Driver, "table"},
		{"Notify.Timeout", cfg.Notify.Timeout, 30 * time.Second},
		{"Sweep.Cron", cfg.Sweep.Cron, "0 8 * * *"},
		{"Sweep.LookaheadDays", cfg.Sweep.LookaheadDays, 7},
		{"Attachments.Driver", cfg.Attachments.Driver, "memory"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v (default)", c.name, c.got, c.want)
		}
	}
	if len(cfg.Notify.Channels) != 1 || cfg.Notify.Channels[0] != "log" {
		t.Errorf("Notify.Channels = %v, want [log]", cfg.Notify.Channels)
	}
}

func TestParse_SweepOnByDefault(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want bool
	}{
		{"omitted", "database:\n  driver: sqlite\n  path: lab.db\n", true},
		{"explicit true", "database:\n  driver: sqlite\nsweep:\n  enabled: true\n", true},
		{"explicit false", "database:\n  driver: sqlite\nsweep:\n  enabled: false\n", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse([]byte(tt.yaml))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := cfg.SweepEnabled(); got != tt.want {
				t.Errorf("SweepEnabled() = %v, want %v", got, tt.want)
			}
			if cfg.Sweep.Enabled == nil {
				t.Error("Sweep.Enabled left nil after defaults")
			}
		})
	}
}

func TestParse_SQLiteNeedsNoUser(t *testing.T) {
	cfg, err := Parse([]byte("database:\n  driver: sqlite\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Database.Path != "labyard.db" {
		t.Errorf("Database.Path = %q, want labyard.db", cfg.Database.Path)
	}
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"missing user", "database:\n  driver: mysql\n", "database.user is required"},
		{"bad driver", "database:\n  driver: oracle\n  user: u\n", "database.driver must be one of"},
		{"bad codegen", "database:\n  user: u\ncodegen:\n  driver: uuid\n", "codegen.driver must be one of"},
		{"bad channel", "database:\n  user: u\nnotify:\n  channels: [pager]\n", "notify.channels[0] must be one of"},
		{"slack without token", "database:\n  user: u\nnotify:\n  channels: [slack]\n", "notify.slack.bot_token"},
		{"smtp without host", "database:\n  user: u\nnotify:\n  channels: [smtp]\n", "notify.smtp.host"},
		{"bad cron", "database:\n  user: u\nsweep:\n  cron: every day\n", "sweep.cron"},
		{"s3 without bucket", "database:\n  user: u\nattachments:\n  driver: s3\n", "attachments.bucket is required"},
		{"minio without endpoint", "database:\n  user: u\nattachments:\n  driver: minio\n  bucket: b\n", "attachments.endpoint is required"},
		{"seed type without name", "database:\n  user: u\nseed:\n  analysis_types:\n    - method: x\n", "seed.analysis_types[0].name is required"},
		{"bad log format", "database:\n  user: u\nlog:\n  format: xml\n", "log.format must be one of"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to contain %q", err, tt.wantErr)
			}
			if !strings.HasPrefix(err.Error(), "config: validation failed: ") {
				t.Errorf("error = %q, want validation prefix", err)
			}
		})
	}
}

func TestParse_MultipleErrorsJoined(t *testing.T) {
	_, err := Parse([]byte("database:\n  driver: oracle\ncodegen:\n  driver: uuid\n"))
	if err == nil {
		t.Fatal("expected error")
	}
	if got := strings.Count(err.Error(), ";"); got < 2 {
		t.Errorf("error = %q, want several problems joined with ';'", err)
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("database: [unclosed"))
	if err == nil || !strings.HasPrefix(err.Error(), "config: parse:") {
		t.Errorf("error = %v, want config: parse: prefix", err)
	}
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "labyard.yaml")
	if err := os.WriteFile(path, []byte(minimalYAML), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.User != "labyard" {
		t.Errorf("Database.User = %q, want labyard", cfg.Database.User)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil || !strings.Contains(err.Error(), "config: read") {
		t.Errorf("error = %v, want config: read", err)
	}
}
