package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("SIGEVENT_ENV", "test")
	t.Setenv("SIGEVENT_LOG_GROUP", "test-cw-group")
	t.Setenv("SIGEVENT_NOTIFICATION_TABLE_NAME", "sigevent-notifications")
	t.Setenv("SIGEVENT_DB_DSN", "postgres://localhost/sigevent")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Env != "test" {
		t.Errorf("Env = %q, want test", cfg.Env)
	}
	if cfg.LogGroup != "test-cw-group" {
		t.Errorf("LogGroup = %q", cfg.LogGroup)
	}
	if cfg.MutedMode {
		t.Error("MutedMode should default to false")
	}
	if cfg.MaxDailyWarns != 5 {
		t.Errorf("MaxDailyWarns = %d, want 5", cfg.MaxDailyWarns)
	}
	if cfg.Email.Provider != "ses" {
		t.Errorf("Email.Provider = %q, want ses", cfg.Email.Provider)
	}
	if cfg.API.BasePath != "/api/v0" {
		t.Errorf("API.BasePath = %q", cfg.API.BasePath)
	}
	if len(cfg.NotificationEmails) != 0 {
		t.Errorf("NotificationEmails = %v, want empty", cfg.NotificationEmails)
	}
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("SIGEVENT_MUTED_MODE", "true")
	t.Setenv("SIGEVENT_MAX_DAILY_WARNS", "3")
	t.Setenv("SIGEVENT_STAGE", "uat")
	t.Setenv("SIGEVENT_NOTIFICATION_EMAILS", `["a@example.com", "b@example.com"]`)
	t.Setenv("SIGEVENT_TELEGRAM_CHAT_IDS", "100, -200")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if !cfg.MutedMode {
		t.Error("MutedMode = false, want true")
	}
	if cfg.MaxDailyWarns != 3 {
		t.Errorf("MaxDailyWarns = %d, want 3", cfg.MaxDailyWarns)
	}
	if want := []string{"a@example.com", "b@example.com"}; !reflect.DeepEqual(cfg.NotificationEmails, want) {
		t.Errorf("NotificationEmails = %v, want %v", cfg.NotificationEmails, want)
	}
	if want := []int64{100, -200}; !reflect.DeepEqual(cfg.Telegram.ChatIDs, want) {
		t.Errorf("Telegram.ChatIDs = %v, want %v", cfg.Telegram.ChatIDs, want)
	}
	if cfg.FromHeader() != "uat Sigevent <noreply@nasa.gov>" {
		t.Errorf("FromHeader() = %q", cfg.FromHeader())
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	setRequired(t)
	path := filepath.Join(t.TempDir(), "sigevent.yaml")
	content := "notification_emails:\n  - ops@example.com\nmax_daily_warns: 7\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SIGEVENT_CONFIG", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !reflect.DeepEqual(cfg.NotificationEmails, []string{"ops@example.com"}) {
		t.Errorf("NotificationEmails = %v", cfg.NotificationEmails)
	}
	if cfg.MaxDailyWarns != 7 {
		t.Errorf("MaxDailyWarns = %d, want 7", cfg.MaxDailyWarns)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("SIGEVENT_ENV", "test")
	t.Setenv("SIGEVENT_LOG_GROUP", "")
	t.Setenv("SIGEVENT_NOTIFICATION_TABLE_NAME", "")
	t.Setenv("SIGEVENT_DB_DSN", "")

	_, err := Load()
	if err == nil {
		t.Fatal("Load() error = nil, want missing configuration error")
	}
	for _, key := range []string{"log_group", "notification_table_name", "db_dsn"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error %q does not mention %s", err, key)
		}
	}
}

func TestValidate(t *testing.T) {
	base := Config{LogGroup: "g", NotificationTableName: "t"}
	base.DB.DSN = "dsn"
	base.Email.Provider = "ses"

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "negative warns", mutate: func(c *Config) { c.MaxDailyWarns = -1 }, wantErr: true},
		{name: "bad digest hour", mutate: func(c *Config) { c.Digest.Hour = 24 }, wantErr: true},
		{name: "unknown provider", mutate: func(c *Config) { c.Email.Provider = "pigeon" }, wantErr: true},
		{name: "resend provider", mutate: func(c *Config) { c.Email.Provider = "resend" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestStringList(t *testing.T) {
	tests := []struct {
		name string
		in   interface{}
		want []string
	}{
		{name: "nil", in: nil, want: nil},
		{name: "empty", in: "", want: nil},
		{name: "json", in: `["x@y.z"]`, want: []string{"x@y.z"}},
		{name: "comma", in: "a, b,,c", want: []string{"a", "b", "c"}},
		{name: "yaml list", in: []interface{}{"a", 1}, want: []string{"a", "1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := stringList(tt.in)
			if err != nil {
				t.Fatalf("stringList() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("stringList() = %#v, want %#v", got, tt.want)
			}
		})
	}
}
