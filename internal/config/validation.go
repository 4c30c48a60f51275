package config

import (
	"fmt"
	"slices"
	"strings"
)

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	if c.ServerAddr == "" || !strings.Contains(c.ServerAddr, ":") {
		return fmt.Errorf("%w: %q must be host:port", ErrInvalidServerAddr, c.ServerAddr)
	}

	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgresHost)
	}

	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidPostgresPort, c.PostgresPort)
	}

	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgresDBName)
	}

	// Modern SSL modes only - exclude deprecated allow/prefer (MITM vulnerable).
	validSSLModes := []string{"disable", "require", "verify-ca", "verify-full"}
	if !slices.Contains(validSSLModes, c.PostgresSSLMode) {
		return fmt.Errorf("%w: %q is not valid, must be one of: %v",
			ErrInvalidPostgresSSLMode, c.PostgresSSLMode, validSSLModes)
	}

	if c.AuthURL == "" {
		return fmt.Errorf("%w: auth_url must be set (e.g. https://project.supabase.co)", ErrMissingAuthURL)
	}

	return nil
}
