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

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoad_ExpandsEnvAndKeepsDefaults(t *testing.T) {
	t.Setenv("XFLKIT_TEST_NAME", "stage")
	p := writeConfig(t, "name: ${XFLKIT_TEST_NAME}\n")

	s := sample{Port: 8080}
	if err := Load(p, &s); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Name != "stage" || s.Port != 8080 {
		t.Errorf("got %+v", s)
	}
}

func TestLoad_Validates(t *testing.T) {
	p := writeConfig(t, "port: -1\n")
	err := Load(p, &sample{})
	if err == nil || !strings.Contains(err.Error(), "validation") {
		t.Errorf("err = %v, want validation failure", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if err := Load(filepath.Join(t.TempDir(), "nope.yaml"), &sample{Port: 1}); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadOptional(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")

	s := sample{Port: 1}
	if err := LoadOptional(missing, &s); err != nil {
		t.Fatalf("LoadOptional: %v", err)
	}
	if err := LoadOptional(missing, &sample{}); err == nil {
		t.Error("defaults should still be validated")
	}

	p := writeConfig(t, "port: 9000\n")
	if err := LoadOptional(p, &s); err != nil || s.Port != 9000 {
		t.Errorf("LoadOptional(existing) = %v, %+v", err, s)
	}
}
