// Copyright 2026 The Askrelay Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for the bridge bot.
//
// Configuration is loaded from a single YAML file passed via the
// --config flag. There is no automatic discovery and no fallback
// chain: deterministic, auditable configuration with no hidden
// overrides. The four core connection parameters (homeserver URL,
// account user ID, password file, downstream URL) may also be set
// directly by flags, which take precedence over the file.
package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the bot configuration.
type Config struct {
	// HomeserverURL is the base URL of the Matrix homeserver
	// (e.g., "http://localhost:8008").
	HomeserverURL string `yaml:"homeserver_url"`

	// UserID is the fully-qualified Matrix account the bot logs in as
	// (e.g., "@helper:example.org").
	UserID string `yaml:"user_id"`

	// PasswordFile is the path to a file holding the account password,
	// or "-" to read it from stdin.
	PasswordFile string `yaml:"password_file"`

	// Downstream configures the question-answering service.
	Downstream DownstreamConfig `yaml:"downstream"`

	// Limits configures resource bounds.
	Limits LimitsConfig `yaml:"limits"`
}

// DownstreamConfig configures the QA/ingestion service endpoints.
type DownstreamConfig struct {
	// AskURL is the prediction endpoint questions are POSTed to.
	AskURL string `yaml:"ask_url"`

	// IngestURL is the document-ingestion endpoint. When empty it is
	// derived from AskURL by substituting the vector-upsert path for
	// the prediction path.
	IngestURL string `yaml:"ingest_url"`

	// AskTimeout bounds a plain question round trip. Default 120s.
	AskTimeout Duration `yaml:"ask_timeout"`

	// UploadTimeout bounds attachment-bearing and ingestion round
	// trips. Default 300s.
	UploadTimeout Duration `yaml:"upload_timeout"`
}

// LimitsConfig configures resource bounds.
type LimitsConfig struct {
	// MaxAttachmentBytes caps downloaded attachment size. Default 100 MB.
	MaxAttachmentBytes int64 `yaml:"max_attachment_bytes"`

	// AnswerLimit caps reply length in characters. Default 4000.
	AnswerLimit int `yaml:"answer_limit"`

	// AttachmentTTL is how long a pending attachment survives without
	// a follow-up question before eviction. Default 30m.
	AttachmentTTL Duration `yaml:"attachment_ttl"`
}

// Duration wraps time.Duration with YAML marshaling in the standard
// "30s" / "5m" string form.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Default returns a Config with all tunables at their defaults and the
// connection parameters empty (they must come from the file or flags).
func Default() *Config {
	return &Config{
		Downstream: DownstreamConfig{
			AskTimeout:    Duration(120 * time.Second),
			UploadTimeout: Duration(300 * time.Second),
		},
		Limits: LimitsConfig{
			MaxAttachmentBytes: 100 << 20,
			AnswerLimit:        4000,
			AttachmentTTL:      Duration(30 * time.Minute),
		},
	}
}

// Load reads and parses the config file at path, applied on top of
// Default. Unknown fields are rejected.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks that the required connection parameters are present.
func (c *Config) Validate() error {
	if c.HomeserverURL == "" {
		return fmt.Errorf("homeserver_url is required")
	}
	if c.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	if c.PasswordFile == "" {
		return fmt.Errorf("password_file is required")
	}
	if c.Downstream.AskURL == "" {
		return fmt.Errorf("downstream.ask_url is required")
	}
	if c.Limits.MaxAttachmentBytes <= 0 {
		return fmt.Errorf("limits.max_attachment_bytes must be positive")
	}
	if c.Limits.AnswerLimit <= 0 {
		return fmt.Errorf("limits.answer_limit must be positive")
	}
	return nil
}
