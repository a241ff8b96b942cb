// Package config provides configuration parsing and management for obastore.
package config

// Config holds the complete store configuration.
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	Indexes []IndexConfig `yaml:"indexes"`
	Logging LogConfig     `yaml:"logging"`
}

// Storage backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
)

// StorageConfig holds storage engine configuration.
type StorageConfig struct {
	DataDir          string `yaml:"dataDir"`
	Backend          string `yaml:"backend"`
	SyncOnWrite      bool   `yaml:"syncOnWrite"`
	Compress         bool   `yaml:"compress"`
	CompressionLevel int    `yaml:"compressionLevel"`
	CompactThreshold int    `yaml:"compactThreshold"`
	NgramSize        int    `yaml:"ngramSize"`
}

// IndexConfig declares one attribute index.
type IndexConfig struct {
	Attribute    string `yaml:"attribute"`
	Type         string `yaml:"type"`
	SingleValued bool   `yaml:"singleValued"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}
