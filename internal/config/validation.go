package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Sentinel errors for application configuration validation.
var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidExpansionModel indicates the expansion model name is invalid.
	ErrInvalidExpansionModel = errors.New("invalid expansion model")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidRerankEndpoint indicates the rerank endpoint URL is malformed.
	ErrInvalidRerankEndpoint = errors.New("invalid rerank endpoint")
)

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	// 1. Model configuration
	if c.ExpansionModel == "" {
		return fmt.Errorf("%w: expansion_model cannot be empty", ErrInvalidExpansionModel)
	}
	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder_model cannot be empty", ErrInvalidEmbedderModel)
	}

	// 2. PostgreSQL configuration
	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgresDBName)
	}

	// 3. Rerank service (optional; empty disables the service strategy)
	if c.RerankEndpoint != "" {
		if _, err := url.ParseRequestURI(c.RerankEndpoint); err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidRerankEndpoint, c.RerankEndpoint)
		}
	}

	// 4. Injection pipeline invariants
	if err := c.Injection.Validate(); err != nil {
		return err
	}

	return nil
}
