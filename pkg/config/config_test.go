package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type sample struct {
	Name string `yaml:"name"`
	Port int    `yaml:"port"`
}

func (s *sample) Validate() error {
	if s.Port <= 0 {
		return errors.New("port must be positive")
	}
	return nil
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_ExpandsEnvAndKeepsDefaults(t *testing.T) {
	t.Setenv("CONFIG_TEST_NAME", "vitae")
	cfg := sample{Port: 8080}
	if err := Load(writeFile(t, "name: ${CONFIG_TEST_NAME}\n"), &cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Name != "vitae" || cfg.Port != 8080 {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"unknown key", "nmae: x\nport: 1\n", "failed to parse"},
		{"validation", "port: 0\n", "validation failed"},
		{"syntax", "port: [\n", "failed to parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := sample{}
			err := Load(writeFile(t, tt.content), &cfg)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestLoad_EmptyFileValidatesDefaults(t *testing.T) {
	cfg := sample{Port: 1}
	if err := Load(writeFile(t, ""), &cfg); err != nil {
		t.Errorf("empty file: %v", err)
	}
}

func TestLoadOptional_MissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent.yaml")

	cfg := sample{Port: 9}
	if err := LoadOptional(missing, &cfg); err != nil {
		t.Errorf("missing file with valid defaults: %v", err)
	}

	bad := sample{}
	if err := LoadOptional(missing, &bad); err == nil {
		t.Error("missing file should still validate")
	}
}

func TestLoadWithDefaults_Fallback(t *testing.T) {
	def := writeFile(t, "port: 7\n")
	cfg := sample{}
	if err := LoadWithDefaults(filepath.Join(t.TempDir(), "absent.yaml"), def, &cfg); err != nil {
		t.Fatalf("LoadWithDefaults: %v", err)
	}
	if cfg.Port != 7 {
		t.Errorf("port = %d", cfg.Port)
	}
}
