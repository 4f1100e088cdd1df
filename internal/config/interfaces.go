package config

import "context"

// SecretProvider resolves secret values by parameter path. SSMProvider is
// the production implementation; tests inject fakes.
type SecretProvider interface {
	// GetParametersBatch retrieves multiple secret values. The keys slice
	// contains the SSM parameter paths to resolve. Returns a map of
	// key -> plaintext value for all successfully resolved parameters.
	GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error)
}
