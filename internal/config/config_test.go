package config

import (
	"errors"
	"testing"

	"github.com/kailas-cloud/hintd/internal/domain"
)

func validConfig() Config {
	cfg := Config{HTTP: HTTPConfig{Port: 8080}}
	cfg.ApplyDefaults()
	return cfg
}

func TestValidate_Defaults(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.HTTP.Port = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_InvalidStrategy(t *testing.T) {
	cfg := validConfig()
	cfg.Hints.DefaultStrategy = "random"

	err := cfg.Validate()
	if !errors.Is(err, domain.ErrInvalidStrategy) {
		t.Fatalf("expected ErrInvalidStrategy, got %v", err)
	}
}

func TestValidate_InvalidAlphabet(t *testing.T) {
	cfg := validConfig()
	cfg.Hints.Alphabet = "aaa"

	err := cfg.Validate()
	if !errors.Is(err, domain.ErrInvalidAlphabet) {
		t.Fatalf("expected ErrInvalidAlphabet, got %v", err)
	}
}

func TestValidate_Limits(t *testing.T) {
	cfg := validConfig()
	cfg.Hints.MaxSessions = -1
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for negative max_sessions")
	}

	cfg = validConfig()
	cfg.Hints.ViewportHeight = -10
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for negative viewport")
	}
}

func TestValidate_Reports(t *testing.T) {
	tests := []struct {
		name    string
		reports ReportsConfig
		wantErr bool
	}{
		{"none", ReportsConfig{Driver: ReportsNone}, false},
		{"redis", ReportsConfig{Driver: ReportsRedis, Addrs: []string{"localhost:6379"}}, false},
		{"redis without addrs", ReportsConfig{Driver: ReportsRedis}, true},
		{"unknown driver", ReportsConfig{Driver: "kafka"}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Reports = tc.reports

			err := cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("expected ReadTimeoutSec=10, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.WriteTimeoutSec != 10 {
		t.Errorf("expected WriteTimeoutSec=10, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.HTTP.ShutdownSec != 10 {
		t.Errorf("expected ShutdownSec=10, got %d", cfg.HTTP.ShutdownSec)
	}
	if cfg.Hints.DefaultStrategy != "sequential" {
		t.Errorf("expected DefaultStrategy=sequential, got %q", cfg.Hints.DefaultStrategy)
	}
	if cfg.Hints.Alphabet != "auie,ctsrn" {
		t.Errorf("expected default alphabet, got %q", cfg.Hints.Alphabet)
	}
	if cfg.Hints.SettleTimeoutMs != 5000 {
		t.Errorf("expected SettleTimeoutMs=5000, got %d", cfg.Hints.SettleTimeoutMs)
	}
	if cfg.Reports.Driver != ReportsNone {
		t.Errorf("expected Driver=none, got %q", cfg.Reports.Driver)
	}
	if cfg.Reports.ReadinessTimeout != 10 {
		t.Errorf("expected ReadinessTimeout=10, got %d", cfg.Reports.ReadinessTimeout)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		HTTP:    HTTPConfig{ReadTimeoutSec: 30, WriteTimeoutSec: 60, ShutdownSec: 5},
		Hints:   HintsConfig{DefaultStrategy: "prefix", Alphabet: "asdf", SettleTimeoutMs: 100},
		Reports: ReportsConfig{Driver: ReportsRedis, ReadinessTimeout: 15},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 30 {
		t.Errorf("expected ReadTimeoutSec=30, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.WriteTimeoutSec != 60 {
		t.Errorf("expected WriteTimeoutSec=60, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.Hints.DefaultStrategy != "prefix" || cfg.Hints.Alphabet != "asdf" {
		t.Errorf("hint settings overridden: %+v", cfg.Hints)
	}
	if cfg.Reports.ReadinessTimeout != 15 {
		t.Errorf("expected ReadinessTimeout=15, got %d", cfg.Reports.ReadinessTimeout)
	}
}

func TestParse_ExpandsEnv(t *testing.T) {
	t.Setenv("HINTD_PORT", "9090")
	t.Setenv("HINTD_ALPHABET", "")

	cfg, err := Parse([]byte(`
http:
  port: ${HINTD_PORT}
hints:
  alphabet: ${HINTD_ALPHABET:-jkl}
  max_sessions: 3
reports:
  driver: ${HINTD_REPORTS:-none}
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.HTTP.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.HTTP.Port)
	}
	if cfg.Hints.Alphabet != "jkl" {
		t.Errorf("expected alphabet from default, got %q", cfg.Hints.Alphabet)
	}
	if cfg.Hints.MaxSessions != 3 || cfg.Reports.Driver != ReportsNone {
		t.Errorf("unexpected config %+v", cfg)
	}
}

func TestParse_Invalid(t *testing.T) {
	if _, err := Parse([]byte("http: [")); err == nil {
		t.Error("expected a YAML error")
	}
	if _, err := Parse([]byte("http:\n  port: 0\n")); err == nil {
		t.Error("expected a validation error")
	}
}

func TestMustLoad(t *testing.T) {
	t.Setenv("HINTD_PORT", "9090")
	t.Setenv("HINTD_REPORTS_DRIVER", "none")

	cfg := MustLoad("local")
	if cfg.HTTP.Port != 9090 {
		t.Errorf("expected port from env, got %d", cfg.HTTP.Port)
	}
	if cfg.Hints.Alphabet != "auie,ctsrn" {
		t.Errorf("unexpected alphabet %q", cfg.Hints.Alphabet)
	}
}

func TestMustLoad_PanicsOnMissingFile(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for unknown environment")
		}
	}()
	MustLoad("no-such-env")
}
