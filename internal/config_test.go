package internal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	pkgconfig "github.com/starford/mediafold/pkg/config"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestDefaultConfigValid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Media.Labels.Image != "图片" {
		t.Errorf("default image label = %q", cfg.Media.Labels.Image)
	}
}

func TestBlobsConfig(t *testing.T) {
	cases := []struct {
		name    string
		cfg     BlobsConfig
		wantErr bool
	}{
		{"memory", BlobsConfig{Backend: "memory"}, false},
		{"sqlite needs path", BlobsConfig{Backend: "sqlite"}, true},
		{"fs with path", BlobsConfig{Backend: "fs", Path: "/tmp/blobs"}, false},
		{"postgres needs dsn", BlobsConfig{Backend: "postgres"}, true},
		{"postgres with dsn", BlobsConfig{Backend: "postgres", DSN: "postgres://x"}, false},
		{"unknown backend", BlobsConfig{Backend: "s3"}, true},
		{"negative quota", BlobsConfig{Backend: "memory", QuotaBytes: -1}, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := c.cfg.Validate()
			if (err != nil) != c.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, c.wantErr)
			}
		})
	}
}

func TestAutosaveConfig(t *testing.T) {
	if err := (&AutosaveConfig{Enabled: true}).Validate(); err == nil {
		t.Error("enabled autosave without delay should fail")
	}
	if err := (&AutosaveConfig{Enabled: false}).Validate(); err != nil {
		t.Errorf("disabled autosave: %v", err)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	t.Setenv("MEDIAFOLD_TEST_TOKEN", "s3cret")
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `app:
  log_level: debug
  http:
    port: 9090
blobs:
  backend: fs
  path: /var/lib/mediafold/blobs
  quota_bytes: 1048576
media:
  labels:
    image: picture
autosave:
  delay: 250ms
gc:
  grace: 2h
auth:
  mode: token
  token: ${MEDIAFOLD_TEST_TOKEN}
cors:
  allowed_origins: ["http://localhost:5173"]
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(path, cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.HTTP.Port != 9090 || cfg.App.LogLevel.String() != "DEBUG" {
		t.Errorf("app = %+v", cfg.App)
	}
	if cfg.Blobs.Backend != "fs" || cfg.Blobs.QuotaBytes != 1<<20 {
		t.Errorf("blobs = %+v", cfg.Blobs)
	}
	if cfg.Autosave.Delay != 250*time.Millisecond || !cfg.Autosave.Enabled {
		t.Errorf("autosave = %+v", cfg.Autosave)
	}
	if cfg.GC.Grace != 2*time.Hour {
		t.Errorf("grace = %v", cfg.GC.Grace)
	}
	if cfg.Auth.Token != "s3cret" || !cfg.Auth.AuthEnabled() {
		t.Errorf("auth = %+v", cfg.Auth)
	}
	if cfg.Media.Labels.Image != "picture" || cfg.Media.Labels.Drawing != "绘图" {
		t.Errorf("labels = %+v", cfg.Media.Labels)
	}
	if cfg.Media.CollapseThreshold != 100 {
		t.Errorf("threshold = %d", cfg.Media.CollapseThreshold)
	}
	if len(cfg.CORS.AllowedOrigins) != 1 {
		t.Errorf("cors = %v", cfg.CORS.AllowedOrigins)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("blobz:\n  backend: fs\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := pkgconfig.Load(path, NewDefaultConfig()); err == nil {
		t.Fatal("unknown section should fail")
	}
}
