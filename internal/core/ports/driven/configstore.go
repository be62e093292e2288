package driven

// ConfigStore provides engine-level settings (data directory, listen
// address, poll intervals, connector manifest URL).
type ConfigStore interface {
	// GetString retrieves a string setting, "" when unset.
	GetString(key string) string

	// GetInt retrieves an integer setting, 0 when unset.
	GetInt(key string) int

	// Set stores a setting value.
	Set(key string, value any) error
}
