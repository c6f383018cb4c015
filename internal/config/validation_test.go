package config

import (
	"errors"
	"testing"
)

func validConfig() *Config {
	return &Config{
		ExpansionModel: DefaultExpansionModel,
		EmbedderModel:  DefaultEmbedderModel,
		PostgresHost:   "localhost",
		PostgresPort:   5432,
		PostgresDBName: "joeupup",
		Injection:      DefaultContextInjection(),
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{
			name:    "empty expansion model",
			mutate:  func(c *Config) { c.ExpansionModel = "" },
			wantErr: ErrInvalidExpansionModel,
		},
		{
			name:    "empty embedder model",
			mutate:  func(c *Config) { c.EmbedderModel = "" },
			wantErr: ErrInvalidEmbedderModel,
		},
		{
			name:    "empty postgres host",
			mutate:  func(c *Config) { c.PostgresHost = "" },
			wantErr: ErrInvalidPostgresHost,
		},
		{
			name:    "port zero",
			mutate:  func(c *Config) { c.PostgresPort = 0 },
			wantErr: ErrInvalidPostgresPort,
		},
		{
			name:    "port above range",
			mutate:  func(c *Config) { c.PostgresPort = 70000 },
			wantErr: ErrInvalidPostgresPort,
		},
		{
			name:    "empty database name",
			mutate:  func(c *Config) { c.PostgresDBName = "" },
			wantErr: ErrInvalidPostgresDBName,
		},
		{
			name:    "malformed rerank endpoint",
			mutate:  func(c *Config) { c.RerankEndpoint = "not a url" },
			wantErr: ErrInvalidRerankEndpoint,
		},
		{
			name:   "valid rerank endpoint",
			mutate: func(c *Config) { c.RerankEndpoint = "https://rerank.example.com" },
		},
		{
			name:    "injection invariant violation surfaces",
			mutate:  func(c *Config) { c.Injection.RerankTopN = c.Injection.TotalMaxChunks + 1 },
			wantErr: ErrRerankTopNExceedsTotal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfigValidateNil(t *testing.T) {
	t.Parallel()

	var cfg *Config
	if err := cfg.Validate(); !errors.Is(err, ErrConfigNil) {
		t.Errorf("nil config error = %v, want ErrConfigNil", err)
	}
}
