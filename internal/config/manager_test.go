package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"jobmill/pkg/logx"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

const yamlConfig = `
logging:
  level: debug
store:
  driver: sqlite
  path: ./jobmill.db
  busy_timeout: 500ms
engine:
  workers: 4
  timezone: Asia/Jakarta
seed: ./seed.yaml
`

const jsonConfig = `{
  "logging": {"level": "debug"},
  "store": {"driver": "sqlite", "path": "./jobmill.db", "busy_timeout": "500ms"},
  "engine": {"workers": 4, "timezone": "Asia/Jakarta"},
  "seed": "./seed.yaml"
}`

func TestYAMLAndJSONParseEqually(t *testing.T) {
	t.Parallel()
	fromYAML, err := NewManager(writeFile(t, "config.yaml", yamlConfig), logx.Nop()).Parse()
	if err != nil {
		t.Fatalf("parse yaml: %v", err)
	}
	fromJSON, err := NewManager(writeFile(t, "config.json", jsonConfig), logx.Nop()).Parse()
	if err != nil {
		t.Fatalf("parse json: %v", err)
	}
	if !reflect.DeepEqual(fromYAML, fromJSON) {
		t.Fatalf("yaml and json disagree:\n%+v\n%+v", fromYAML, fromJSON)
	}
	if fromYAML.Engine.Workers != 4 || fromYAML.Store.Driver != "sqlite" {
		t.Fatalf("unexpected config: %+v", fromYAML)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "config.yaml", "logging:\n  level: info\nunknown_field: 1\n")
	if _, err := NewManager(path, logx.Nop()).Parse(); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestConsoleEnabledDefault(t *testing.T) {
	t.Parallel()
	var lc LoggingConfig
	if !lc.ConsoleEnabled() {
		t.Fatal("console should default to enabled")
	}
	off := false
	lc.Console = &off
	if lc.ConsoleEnabled() {
		t.Fatal("explicit false should disable console")
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()
	d, err := ParseDurationField("engine.default_timeout", "10s")
	if err != nil || d.Seconds() != 10 {
		t.Fatalf("ParseDurationField = %v, %v", d, err)
	}
	if _, err := ParseDurationField("x", "-1s"); err == nil {
		t.Fatal("negative durations must be rejected")
	}
	if d, err := ParseDurationField("x", ""); err != nil || d != 0 {
		t.Fatalf("empty duration should be zero, got %v, %v", d, err)
	}
}
