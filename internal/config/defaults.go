// Package config provides configuration parsing and management for obastore.
package config

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			DataDir:          "/var/lib/obastore",
			Backend:          BackendFile,
			SyncOnWrite:      false,
			Compress:         true,
			CompressionLevel: 3,
			CompactThreshold: 10000,
			NgramSize:        3,
		},
		Indexes: DefaultIndexes(),
		Logging: LogConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// DefaultIndexes returns the attribute indexes every directory needs.
func DefaultIndexes() []IndexConfig {
	return []IndexConfig{
		{Attribute: "objectClass", Type: "equality"},
		{Attribute: "uid", Type: "equality"},
		{Attribute: "cn", Type: "equality"},
		{Attribute: "cn", Type: "substring"},
		{Attribute: "mail", Type: "equality"},
		{Attribute: "member", Type: "equality"},
	}
}
