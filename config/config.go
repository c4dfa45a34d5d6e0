package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/knadh/koanf/parsers/hcl"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const EnvPrefix = "CASSETTE_"

type InputConf struct {
	Channel int `koanf:"channel"`
}

type DemodConf struct {
	AmplitudeThreshold int     `koanf:"amplitude_threshold"`
	CycleThreshold     int     `koanf:"cycle_threshold"`
	AutoThreshold      bool    `koanf:"auto_threshold"`
	LowPassCutoff      float64 `koanf:"lowpass_cutoff"`
	LowPassTransition  float64 `koanf:"lowpass_transition"`
}

type DatalinkConf struct {
	LeaderMinBits int `koanf:"leader_min_bits"`
}

type DecodeConf struct {
	Workers      int    `koanf:"workers"`
	WritePayload bool   `koanf:"write_payload"`
	OutputDir    string `koanf:"output_dir"`
}

type Conf struct {
	Input    InputConf    `koanf:"input"`
	Demod    DemodConf    `koanf:"demod"`
	Datalink DatalinkConf `koanf:"datalink"`
	Decode   DecodeConf   `koanf:"decode"`
}

// Defaults match a Microtan FAST recording digitized at 44.1kHz.
var Defaults = map[string]any{
	"input.channel":             0,
	"demod.amplitude_threshold": 0,
	"demod.cycle_threshold":     14,
	"demod.auto_threshold":      false,
	"demod.lowpass_cutoff":      0.0,
	"demod.lowpass_transition":  500.0,
	"datalink.leader_min_bits":  16,
	"decode.workers":            0,
	"decode.write_payload":      false,
	"decode.output_dir":         "",
}

var searchPaths = []string{"/etc/cassette/config.hcl", "~/.config/cassette/config.hcl", "./config.hcl"}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

// FindConfigPath returns the first config file on the search path, or "" if
// there is none.
func FindConfigPath() string {
	for _, path := range searchPaths {
		path = expandHome(path)
		if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
			log.Infof("Found config file: %s", path)
			return path
		}
	}
	log.Debug("Config file not found, using defaults")
	return ""
}

// Load layers the defaults, the HCL file at path (if any) and CASSETTE_*
// environment variables, in that order.
func Load(path string) (*koanf.Koanf, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(Defaults, "."), nil); err != nil {
		return nil, fmt.Errorf("could not load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(expandHome(path)), hcl.Parser(true)); err != nil {
			return nil, fmt.Errorf("could not read config file %s: %w", path, err)
		}
	}

	err := k.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(k, v string) (string, any) {
			key := strings.ToLower(strings.TrimPrefix(k, EnvPrefix))
			k = strings.Replace(key, "_", ".", 1)
			log.Debugf("Found config env var: %s=%v", k, v)
			return k, v
		},
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("could not read environment: %w", err)
	}

	return k, nil
}

// Parse unmarshals a loaded koanf instance into Conf and checks the values
// the decoder cannot work with.
func Parse(k *koanf.Koanf) (Conf, error) {
	var c Conf
	if err := k.Unmarshal("", &c); err != nil {
		return c, fmt.Errorf("could not unmarshal config: %w", err)
	}
	if c.Input.Channel < 0 {
		return c, fmt.Errorf("input.channel must be >= 0, got %d", c.Input.Channel)
	}
	if c.Demod.CycleThreshold < 1 {
		return c, fmt.Errorf("demod.cycle_threshold must be positive, got %d", c.Demod.CycleThreshold)
	}
	if c.Datalink.LeaderMinBits < 0 {
		return c, fmt.Errorf("datalink.leader_min_bits must be >= 0, got %d", c.Datalink.LeaderMinBits)
	}
	if c.Demod.LowPassCutoff < 0 {
		return c, fmt.Errorf("demod.lowpass_cutoff must be >= 0, got %f", c.Demod.LowPassCutoff)
	}
	return c, nil
}

// Default returns the configuration with no file or environment applied. It
// panics if Defaults does not parse.
func Default() Conf {
	k := koanf.New(".")
	if err := k.Load(confmap.Provider(Defaults, "."), nil); err != nil {
		panic(fmt.Sprintf("config: loading defaults: %v", err))
	}
	c, err := Parse(k)
	if err != nil {
		panic(fmt.Sprintf("config: bad defaults: %v", err))
	}
	return c
}
