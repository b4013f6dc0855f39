package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/matzehuels/mtxlayout/pkg/errors"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
	if cfg.IdealLength2() != 1 {
		t.Errorf("IdealLength2() = %v, want 1", cfg.IdealLength2())
	}
	if got := cfg.Threshold(0.5); got != 0.025 {
		t.Errorf("Threshold(0.5) = %v, want 0.025", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Simulation)
		wantErr bool
	}{
		{"defaults", func(*Simulation) {}, false},
		{"zero max steps disables bound", func(s *Simulation) { s.MaxSteps = 0 }, false},
		{"zero ideal length", func(s *Simulation) { s.IdealLength = 0 }, true},
		{"negative dt", func(s *Simulation) { s.TimeStep = -1 }, true},
		{"zero quantum", func(s *Simulation) { s.Quantum = 0 }, true},
		{"mass cap below one", func(s *Simulation) { s.MassCap = 0.5 }, true},
		{"unknown arrangement", func(s *Simulation) { s.Arrangement = "spiral" }, true},
		{"min interval above interval", func(s *Simulation) { s.MinCheckInterval = 60 }, true},
		{"floor above dt", func(s *Simulation) { s.TimeStep = 0.005 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, errors.ErrCodeInvalidConfig) {
				t.Errorf("Validate() code = %v, want %v", errors.GetCode(err), errors.ErrCodeInvalidConfig)
			}
		})
	}
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "sim.toml", `
ideal_length = 2.0
time_step = 0.5
quantum = 1000
simplify = false
arrangement = "sphere"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.IdealLength != 2 || cfg.TimeStep != 0.5 || cfg.Quantum != 1000 {
		t.Errorf("loaded = %+v", cfg)
	}
	if cfg.Simplify {
		t.Error("Simplify = true, want false")
	}
	if cfg.Arrangement != "sphere" {
		t.Errorf("Arrangement = %q, want sphere", cfg.Arrangement)
	}
	if cfg.ForceScale != DefaultForceScale {
		t.Errorf("unset ForceScale = %v, want default %v", cfg.ForceScale, DefaultForceScale)
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "sim.yaml", "force_scale: 4\nmax_steps: 10\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ForceScale != 4 || cfg.MaxSteps != 10 {
		t.Errorf("loaded = %+v", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		content  string
		wantCode errors.Code
	}{
		{"unknown toml key", "a.toml", "ideal_lenght = 2\n", errors.ErrCodeInvalidConfig},
		{"bad toml", "b.toml", "ideal_length = \n", errors.ErrCodeInvalidConfig},
		{"bad yaml", "c.yaml", "ideal_length: [\n", errors.ErrCodeInvalidConfig},
		{"invalid value", "d.yml", "time_step: -1\n", errors.ErrCodeInvalidConfig},
		{"unsupported extension", "e.json", "{}", errors.ErrCodeUnsupported},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.file, tt.content))
			if !errors.Is(err, tt.wantCode) {
				t.Errorf("Load error = %v, want code %v", err, tt.wantCode)
			}
		})
	}

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "none.toml"))
		if !errors.Is(err, errors.ErrCodeFileNotFound) {
			t.Errorf("Load error = %v, want code %v", err, errors.ErrCodeFileNotFound)
		}
	})
}
