package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/op/go-logging"
)

var keys = []string{
	"VOICESYNTH_SAMPLE_RATE", "VOICESYNTH_FREQUENCY", "VOICESYNTH_TENSENESS",
	"VOICESYNTH_SECONDS", "VOICESYNTH_PRESET", "VOICESYNTH_EFFECTS",
	"VOICESYNTH_BUFFER", "VOICESYNTH_LOG_LEVEL",
}

// clearEnv unsets every variable Load reads and restores them afterwards.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SampleRate != 44100 || cfg.Frequency != 140 || cfg.Tenseness != 0.6 {
		t.Errorf("voice defaults = %+v", cfg)
	}
	if cfg.Preset != "vowels" || cfg.Buffer != 50*time.Millisecond || cfg.Level() != logging.INFO {
		t.Errorf("other defaults = %+v", cfg)
	}
}

func TestLoadEnvFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "voice.env")
	data := "VOICESYNTH_SAMPLE_RATE=48000\nVOICESYNTH_FREQUENCY=220\nVOICESYNTH_EFFECTS=\"reverb 0.4; limiter -1\"\nVOICESYNTH_LOG_LEVEL=debug\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	// the process environment wins over the file
	t.Setenv("VOICESYNTH_FREQUENCY", "180")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SampleRate != 48000 {
		t.Errorf("SampleRate = %d, want 48000", cfg.SampleRate)
	}
	if cfg.Frequency != 180 {
		t.Errorf("Frequency = %f, want the environment value 180", cfg.Frequency)
	}
	if cfg.Effects != "reverb 0.4; limiter -1" {
		t.Errorf("Effects = %q", cfg.Effects)
	}
	if cfg.Level() != logging.DEBUG {
		t.Errorf("Level = %v, want DEBUG", cfg.Level())
	}
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	cases := map[string]string{
		"VOICESYNTH_SAMPLE_RATE": "fast",
		"VOICESYNTH_TENSENESS":   "very",
		"VOICESYNTH_BUFFER":      "50",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, value)
			if _, err := Load(filepath.Join(t.TempDir(), "none.env")); err == nil {
				t.Errorf("%s=%q accepted", key, value)
			}
		})
	}
	t.Run("negative sample rate", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("VOICESYNTH_SAMPLE_RATE", "-1")
		if _, err := Load(filepath.Join(t.TempDir(), "none.env")); err == nil {
			t.Error("negative sample rate accepted")
		}
	})
}
