package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestInitializeAppliesDefaultsWithNoConfigFile(t *testing.T) {
	dir := t.TempDir()
	restore := chdir(t, dir)
	defer restore()

	if err := Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if got := GetString("tier.l3.model"); got != "claude-sonnet-4-5-20250929" {
		t.Fatalf("unexpected default L3 model: %q", got)
	}
	if got := GetInt("recorder.queue-capacity"); got != 10_000 {
		t.Fatalf("unexpected default queue capacity: %d", got)
	}
	if got := GetDuration("tier.l4.timeout"); got.Seconds() != 60 {
		t.Fatalf("unexpected default L4 timeout: %v", got)
	}
}

func TestEnvVarOverridesDefault(t *testing.T) {
	dir := t.TempDir()
	restore := chdir(t, dir)
	defer restore()

	t.Setenv("AIDE_TIER_L3_MODEL", "claude-override")
	if err := Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if got := GetString("tier.l3.model"); got != "claude-override" {
		t.Fatalf("expected env override, got %q", got)
	}
	if src := GetValueSource("tier.l3.model"); src != SourceEnvVar {
		t.Fatalf("expected SourceEnvVar, got %q", src)
	}
}

func TestProjectConfigFileIsDiscoveredByWalkingUp(t *testing.T) {
	root := t.TempDir()
	aideDir := filepath.Join(root, ".aide")
	if err := os.MkdirAll(aideDir, 0o755); err != nil {
		t.Fatal(err)
	}
	configYAML := "recorder:\n  batch-size: 42\n"
	if err := os.WriteFile(filepath.Join(aideDir, "config.yaml"), []byte(configYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	sub := filepath.Join(root, "nested", "deeper")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	restore := chdir(t, sub)
	defer restore()

	if err := Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if got := GetInt("recorder.batch-size"); got != 42 {
		t.Fatalf("expected config file value 42, got %d", got)
	}
	if src := GetValueSource("recorder.batch-size"); src != SourceConfigFile {
		t.Fatalf("expected SourceConfigFile, got %q", src)
	}
}

func chdir(t *testing.T, dir string) func() {
	t.Helper()
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	return func() { _ = os.Chdir(cwd) }
}
