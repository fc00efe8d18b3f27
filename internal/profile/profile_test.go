package profile

import (
	"os"
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	clearEnvVars()

	profile := &Profile{}
	profile.FromEnv()

	if profile.Timezone != "Local" {
		t.Errorf("Timezone: expected %q, got %q", "Local", profile.Timezone)
	}
	if profile.SessionTTL != 2*time.Hour {
		t.Errorf("SessionTTL: expected %v, got %v", 2*time.Hour, profile.SessionTTL)
	}
	if profile.QueueLimit != 20 {
		t.Errorf("QueueLimit: expected %d, got %d", 20, profile.QueueLimit)
	}
	if profile.RateLimitPerMinute != 120 {
		t.Errorf("RateLimitPerMinute: expected %d, got %d", 120, profile.RateLimitPerMinute)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	tests := []struct {
		name     string
		envVar   string
		envValue string
		check    func(*Profile) bool
	}{
		{
			name:     "VOCADRILL_TIMEZONE",
			envVar:   "VOCADRILL_TIMEZONE",
			envValue: "Asia/Shanghai",
			check:    func(p *Profile) bool { return p.Timezone == "Asia/Shanghai" },
		},
		{
			name:     "VOCADRILL_SESSION_TTL",
			envVar:   "VOCADRILL_SESSION_TTL",
			envValue: "45m",
			check:    func(p *Profile) bool { return p.SessionTTL == 45*time.Minute },
		},
		{
			name:     "VOCADRILL_SESSION_TTL invalid falls back",
			envVar:   "VOCADRILL_SESSION_TTL",
			envValue: "soon",
			check:    func(p *Profile) bool { return p.SessionTTL == 2*time.Hour },
		},
		{
			name:     "VOCADRILL_QUEUE_LIMIT",
			envVar:   "VOCADRILL_QUEUE_LIMIT",
			envValue: "50",
			check:    func(p *Profile) bool { return p.QueueLimit == 50 },
		},
		{
			name:     "VOCADRILL_QUEUE_LIMIT negative falls back",
			envVar:   "VOCADRILL_QUEUE_LIMIT",
			envValue: "-3",
			check:    func(p *Profile) bool { return p.QueueLimit == 20 },
		},
		{
			name:     "VOCADRILL_RATE_LIMIT_PER_MINUTE zero disables",
			envVar:   "VOCADRILL_RATE_LIMIT_PER_MINUTE",
			envValue: "0",
			check:    func(p *Profile) bool { return p.RateLimitPerMinute == 0 },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnvVars()
			os.Setenv(tt.envVar, tt.envValue)
			defer clearEnvVars()

			profile := &Profile{}
			profile.FromEnv()

			if !tt.check(profile) {
				t.Errorf("%s: unexpected profile after FromEnv: %+v", tt.name, profile)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	dataDir := t.TempDir()

	t.Run("unknown mode falls back to demo", func(t *testing.T) {
		profile := &Profile{Mode: "staging", Data: dataDir, Driver: "sqlite"}
		if err := profile.Validate(); err != nil {
			t.Fatalf("Validate() error = %v", err)
		}
		if profile.Mode != "demo" {
			t.Errorf("Mode = %q, want %q", profile.Mode, "demo")
		}
	})

	t.Run("sqlite DSN defaults into data dir", func(t *testing.T) {
		profile := &Profile{Mode: "dev", Data: dataDir, Driver: "sqlite"}
		if err := profile.Validate(); err != nil {
			t.Fatalf("Validate() error = %v", err)
		}
		if profile.DSN == "" {
			t.Error("DSN should be populated for sqlite")
		}
	})

	t.Run("explicit DSN is kept", func(t *testing.T) {
		profile := &Profile{Mode: "dev", Data: dataDir, Driver: "sqlite", DSN: "/tmp/custom.db"}
		if err := profile.Validate(); err != nil {
			t.Fatalf("Validate() error = %v", err)
		}
		if profile.DSN != "/tmp/custom.db" {
			t.Errorf("DSN = %q, want %q", profile.DSN, "/tmp/custom.db")
		}
	})

	t.Run("missing data dir fails", func(t *testing.T) {
		profile := &Profile{Mode: "dev", Data: "/nonexistent/vocadrill-data", Driver: "sqlite"}
		if err := profile.Validate(); err == nil {
			t.Error("Validate() should fail for missing data dir")
		}
	})

	t.Run("empty timezone becomes Local", func(t *testing.T) {
		profile := &Profile{Mode: "dev", Data: dataDir, Driver: "sqlite"}
		if err := profile.Validate(); err != nil {
			t.Fatalf("Validate() error = %v", err)
		}
		if profile.Timezone != "Local" {
			t.Errorf("Timezone = %q, want %q", profile.Timezone, "Local")
		}
	})

	t.Run("bogus timezone fails", func(t *testing.T) {
		profile := &Profile{Mode: "dev", Data: dataDir, Driver: "sqlite", Timezone: "Mars/Olympus"}
		if err := profile.Validate(); err == nil {
			t.Error("Validate() should fail for unknown timezone")
		}
	})
}

func clearEnvVars() {
	envVars := []string{
		"VOCADRILL_TIMEZONE",
		"VOCADRILL_SESSION_TTL",
		"VOCADRILL_QUEUE_LIMIT",
		"VOCADRILL_RATE_LIMIT_PER_MINUTE",
	}
	for _, envVar := range envVars {
		os.Unsetenv(envVar)
	}
}
