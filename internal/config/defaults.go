package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadDefaults holds default settings for the load generator.
type LoadDefaults struct {
	RatePerSec        int    `yaml:"ratePerSec"`
	DurationSec       int    `yaml:"durationSec"`
	RequestTimeoutSec int    `yaml:"requestTimeoutSec"`
	MaxInFlight       int    `yaml:"maxInFlight,omitempty"`
	LogPath           string `yaml:"logPath"`
	TruncateLog       bool   `yaml:"truncateLog"`
}

// KnockDefaults holds default settings for the port knocker.
type KnockDefaults struct {
	StartPort         int `yaml:"startPort"`
	EndPort           int `yaml:"endPort"`
	DelayMs           int `yaml:"delayMs"`
	ConnectTimeoutSec int `yaml:"connectTimeoutSec"`
}

// Defaults holds the settings read from the optional config.yaml file.
// Command-line flags override these; these override the built-in values.
type Defaults struct {
	Load  LoadDefaults  `yaml:"load"`
	Knock KnockDefaults `yaml:"knock"`
}

// BuiltinDefaults returns the hard-coded default settings.
func BuiltinDefaults() Defaults {
	return Defaults{
		Load: LoadDefaults{
			RatePerSec:        20,
			DurationSec:       60,
			RequestTimeoutSec: 10,
			LogPath:           "response-times.log",
			TruncateLog:       false,
		},
		Knock: KnockDefaults{
			StartPort:         1,
			EndPort:           65535,
			DelayMs:           100,
			ConnectTimeoutSec: 1,
		},
	}
}

// ReadDefaults loads defaults from the given YAML file, falling back to
// the built-in values for any field the file leaves unset. A missing
// file is not an error; it simply returns the built-ins.
func ReadDefaults(path string) (Defaults, error) {
	defaults := BuiltinDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaults, nil
		}
		return defaults, fmt.Errorf("failed to read defaults file: %w", err)
	}

	// Unmarshal on top of the built-ins so fields absent from the file
	// keep their default values.
	if err := yaml.Unmarshal(data, &defaults); err != nil {
		return BuiltinDefaults(), fmt.Errorf("failed to parse defaults file %s: %w", path, err)
	}

	return defaults, nil
}
