package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// config is the demo's startup settings. Values are seeded from the
// environment, overlaid by the optional yaml file, and finally by
// explicit flags.
type config struct {
	File    string `yaml:"file"`
	DB      string `yaml:"db"`
	DocID   string `yaml:"doc_id"`
	Connect string `yaml:"connect"`

	ChunkTarget             int  `yaml:"chunk_target"`
	IdleMillis              int  `yaml:"idle_millis"`
	SaveMillis              int  `yaml:"save_millis"`
	AllowRemoteWhileFocused bool `yaml:"allow_remote_while_focused"`
}

func defaultConfig() config {
	return config{
		File:    getenv("STANZA_FILE", ""),
		DB:      getenv("STANZA_DB", ""),
		DocID:   getenv("STANZA_DOC", "scratch"),
		Connect: getenv("STANZA_CONNECT", ""),
	}
}

// loadFile overlays settings from a yaml file; keys absent from the file
// keep their current values.
func (c *config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}
