package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

const sampleYAML = `
server:
  address: 127.0.0.1
  port: 9090
  db_path: /var/lib/introchat
  tls:
    cert_file: /etc/ssl/ic.crt
    key_file: /etc/ssl/ic.key
security:
  cors:
    allowed_origins: ["https://app.example.com"]
  rate_limit:
    rps: 25
    burst: 50
  api_keys:
    backend: ["bk-1", "bk-2"]
    frontend: ["fk-1"]
logging:
  level: debug
realtime:
  broker: redis
  redis:
    addr: localhost:6379
    db: 2
limits:
  max_payload_bytes: 64KB
expiry:
  enabled: true
  cron: "*/5 * * * *"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadParsesFullConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Addr() != "127.0.0.1:9090" {
		t.Fatalf("addr = %s", cfg.Addr())
	}
	if cfg.Server.DBPath != "/var/lib/introchat" {
		t.Fatalf("db path = %s", cfg.Server.DBPath)
	}
	if got := cfg.Limits.MaxPayloadBytes.Int64(); got != 64000 {
		t.Fatalf("max payload = %d", got)
	}
	if len(cfg.Security.APIKeys.Backend) != 2 || cfg.Security.APIKeys.Backend[0] != "bk-1" {
		t.Fatalf("backend keys = %v", cfg.Security.APIKeys.Backend)
	}
	if cfg.Realtime.Broker != "redis" || cfg.Realtime.Redis.DB != 2 {
		t.Fatalf("realtime = %+v", cfg.Realtime)
	}
	if !cfg.Expiry.Enabled || cfg.Expiry.Cron != "*/5 * * * *" {
		t.Fatalf("expiry = %+v", cfg.Expiry)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("log level = %s", cfg.Logging.Level)
	}
}

func TestAddrDefaults(t *testing.T) {
	var cfg Config
	if cfg.Addr() != "0.0.0.0:8080" {
		t.Fatalf("default addr = %s", cfg.Addr())
	}
}

func TestSizeBytesForms(t *testing.T) {
	var doc struct {
		A SizeBytes `yaml:"a"`
		B SizeBytes `yaml:"b"`
	}
	if err := yaml.Unmarshal([]byte("a: 4MB\nb: 1048576\n"), &doc); err != nil {
		t.Fatal(err)
	}
	if doc.A.Int64() != 4000000 {
		t.Fatalf("a = %d", doc.A.Int64())
	}
	if doc.B.Int64() != 1048576 {
		t.Fatalf("b = %d", doc.B.Int64())
	}
	if err := yaml.Unmarshal([]byte("a: banana\n"), &doc); err == nil {
		t.Fatal("expected error for junk size")
	}
}

func TestDurationForms(t *testing.T) {
	var doc struct {
		A Duration `yaml:"a"`
		B Duration `yaml:"b"`
	}
	if err := yaml.Unmarshal([]byte("a: 1500ms\nb: 2\n"), &doc); err != nil {
		t.Fatal(err)
	}
	if doc.A.Duration() != 1500*time.Millisecond {
		t.Fatalf("a = %s", doc.A.Duration())
	}
	if doc.B.Duration() != 2*time.Second {
		t.Fatalf("b = %s", doc.B.Duration())
	}
}

func TestParseConfigEnvs(t *testing.T) {
	t.Setenv("INTROCHAT_ADDR", "10.0.0.5:9000")
	t.Setenv("INTROCHAT_DB_PATH", "/data/ic")
	t.Setenv("INTROCHAT_API_BACKEND_KEYS", "k1, k2 ,")
	t.Setenv("INTROCHAT_REALTIME_BROKER", "Redis")
	t.Setenv("INTROCHAT_REDIS_ADDR", "redis:6379")
	t.Setenv("INTROCHAT_EXPIRY_CRON", "0 * * * *")

	cfg, res := ParseConfigEnvs()
	if !res.EnvUsed {
		t.Fatal("env not detected")
	}
	if cfg.Addr() != "10.0.0.5:9000" {
		t.Fatalf("addr = %s", cfg.Addr())
	}
	if cfg.Server.DBPath != "/data/ic" {
		t.Fatalf("db = %s", cfg.Server.DBPath)
	}
	if len(res.BackendKeys) != 2 {
		t.Fatalf("backend keys = %v", res.BackendKeys)
	}
	if _, ok := res.SigningKeys["k1"]; !ok {
		t.Fatal("signing keys should mirror backend keys")
	}
	if cfg.Realtime.Broker != "redis" || cfg.Realtime.Redis.Addr != "redis:6379" {
		t.Fatalf("realtime = %+v", cfg.Realtime)
	}
	if !cfg.Expiry.Enabled || cfg.Expiry.Cron != "0 * * * *" {
		t.Fatalf("expiry = %+v", cfg.Expiry)
	}
}

func TestEffectiveConfigPrecedence(t *testing.T) {
	fileCfg := &Config{}
	fileCfg.Server.Address = "127.0.0.1"
	fileCfg.Server.Port = 7070
	fileCfg.Server.DBPath = "/from/file"

	envCfg := &Config{}
	envCfg.Server.Address = "0.0.0.0"
	envCfg.Server.Port = 6060
	envCfg.Server.DBPath = "/from/env"

	// explicit --config requires the file and uses it exclusively
	flags := Flags{Config: "missing.yaml", Set: map[string]bool{"config": true}}
	if _, err := LoadEffectiveConfig(flags, &Config{}, false, envCfg, EnvResult{}); err == nil {
		t.Fatal("explicit missing config file should fail")
	}
	flags = Flags{Config: "c.yaml", Set: map[string]bool{"config": true}}
	eff, err := LoadEffectiveConfig(flags, fileCfg, true, envCfg, EnvResult{})
	if err != nil {
		t.Fatal(err)
	}
	if eff.Source != "config" || eff.Addr != "127.0.0.1:7070" || eff.DBPath != "/from/file" {
		t.Fatalf("eff = %+v", eff)
	}

	// explicit addr/db flags beat everything else
	flags = Flags{Addr: ":5555", DB: "/from/flag", Set: map[string]bool{"addr": true, "db": true}}
	eff, err = LoadEffectiveConfig(flags, fileCfg, true, envCfg, EnvResult{})
	if err != nil {
		t.Fatal(err)
	}
	if eff.Source != "flags" || eff.Addr != ":5555" || eff.DBPath != "/from/flag" {
		t.Fatalf("eff = %+v", eff)
	}

	// present config file beats env
	eff, err = LoadEffectiveConfig(Flags{Set: map[string]bool{}}, fileCfg, true, envCfg, EnvResult{EnvUsed: true})
	if err != nil {
		t.Fatal(err)
	}
	if eff.Source != "config" || eff.DBPath != "/from/file" {
		t.Fatalf("eff = %+v", eff)
	}

	// env is the last resort
	eff, err = LoadEffectiveConfig(Flags{Set: map[string]bool{}}, &Config{}, false, envCfg, EnvResult{EnvUsed: true})
	if err != nil {
		t.Fatal(err)
	}
	if eff.Source != "env" || eff.Addr != "0.0.0.0:6060" || eff.DBPath != "/from/env" {
		t.Fatalf("eff = %+v", eff)
	}
}

func TestResolveConfigPath(t *testing.T) {
	if got := ResolveConfigPath("flagged.yaml", true); got != "flagged.yaml" {
		t.Fatalf("got %s", got)
	}
	t.Setenv("INTROCHAT_CONFIG", "/etc/introchat.yaml")
	if got := ResolveConfigPath("default.yaml", false); got != "/etc/introchat.yaml" {
		t.Fatalf("got %s", got)
	}
}
