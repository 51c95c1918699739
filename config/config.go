package config

import (
	"fmt"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

const (
	DefaultSampleRate      = 16000
	DefaultChannels        = 1
	DefaultFramesPerBuffer = 1024
	DefaultPlayChunk       = 1024
)

// Config holds the recorder settings. Every field has a working default, so a
// config file only needs to name what it changes.
type Config struct {
	Audio AudioConfig `yaml:"audio"`
	Model string      `yaml:"model"`
}

// AudioConfig contains the fixed PCM parameters used for capture and playback
type AudioConfig struct {
	SampleRate      int `yaml:"sample_rate"`
	Channels        int `yaml:"channels"`
	FramesPerBuffer int `yaml:"frames_per_buffer"`
	PlayChunk       int `yaml:"play_chunk"` // frames per playback write
}

func Default() *Config {
	return &Config{
		Audio: AudioConfig{
			SampleRate:      DefaultSampleRate,
			Channels:        DefaultChannels,
			FramesPerBuffer: DefaultFramesPerBuffer,
			PlayChunk:       DefaultPlayChunk,
		},
	}
}

// Load reads a YAML config file on top of the defaults
func Load(fileSys afero.Fs, path string) (*Config, error) {
	data, err := afero.ReadFile(fileSys, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) Validate() error {
	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	return nil
}

func (a *AudioConfig) Validate() error {
	if a.SampleRate <= 0 {
		return fmt.Errorf("invalid sample_rate: %d", a.SampleRate)
	}

	if a.Channels < 1 || a.Channels > 2 {
		return fmt.Errorf("invalid channels: %d (must be 1 or 2)", a.Channels)
	}

	if a.FramesPerBuffer <= 0 {
		return fmt.Errorf("invalid frames_per_buffer: %d", a.FramesPerBuffer)
	}

	if a.PlayChunk <= 0 {
		return fmt.Errorf("invalid play_chunk: %d", a.PlayChunk)
	}

	return nil
}
