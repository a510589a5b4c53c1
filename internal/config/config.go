// Package config reads defaults for the voicesynth command from the
// environment and an optional .env file. Command-line flags override them.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/op/go-logging"
)

var log = logging.MustGetLogger("config")

type Config struct {
	SampleRate int
	Frequency  float64 // Hz
	Tenseness  float64 // 0..1
	Seconds    float64 // offline render length
	Preset     string
	Effects    string // effects chain description, see effects.ParseChain
	Buffer     time.Duration
	LogLevel   string
}

// Load reads the named .env files (".env" when none are given) into the
// process environment without overriding variables already set, then builds
// a Config. A missing file is not an error; a malformed value is.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				log.Debugf("no %s file, using environment only", f)
				continue
			}
			return nil, fmt.Errorf("config: load %s: %w", f, err)
		}
	}

	cfg := &Config{
		Preset:   getEnv("VOICESYNTH_PRESET", "vowels"),
		Effects:  getEnv("VOICESYNTH_EFFECTS", ""),
		LogLevel: getEnv("VOICESYNTH_LOG_LEVEL", "INFO"),
	}
	var err error
	if cfg.SampleRate, err = getInt("VOICESYNTH_SAMPLE_RATE", 44100); err != nil {
		return nil, err
	}
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("config: VOICESYNTH_SAMPLE_RATE must be positive, got %d", cfg.SampleRate)
	}
	if cfg.Frequency, err = getFloat("VOICESYNTH_FREQUENCY", 140); err != nil {
		return nil, err
	}
	if cfg.Tenseness, err = getFloat("VOICESYNTH_TENSENESS", 0.6); err != nil {
		return nil, err
	}
	if cfg.Seconds, err = getFloat("VOICESYNTH_SECONDS", 3); err != nil {
		return nil, err
	}
	if cfg.Buffer, err = getDuration("VOICESYNTH_BUFFER", 50*time.Millisecond); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Level maps LogLevel onto go-logging, falling back to INFO.
func (c *Config) Level() logging.Level {
	lvl, err := logging.LogLevel(c.LogLevel)
	if err != nil {
		return logging.INFO
	}
	return lvl
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

func getFloat(key string, fallback float64) (float64, error) {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return f, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}
