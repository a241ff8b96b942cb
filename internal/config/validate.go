// Package config provides configuration parsing and management for obastore.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/KilimcininKorOglu/obastore/internal/storage/index"
)

// ReservedAttribute is indexed by every partition and cannot be configured.
const ReservedAttribute = "entryUUID"

// descr or numericoid, as attribute names are written in LDAP.
var attributeNamePattern = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9-]*|[0-9]+(\.[0-9]+)+)$`)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateConfig validates the configuration and returns a list of validation errors.
// An empty slice indicates the configuration is valid.
func ValidateConfig(config *Config) []error {
	var errs []error

	errs = append(errs, validateStorageConfig(&config.Storage)...)
	errs = append(errs, validateIndexConfigs(config.Indexes)...)
	errs = append(errs, validateLogConfig(&config.Logging)...)

	return errs
}

// validateStorageConfig validates storage configuration.
func validateStorageConfig(config *StorageConfig) []error {
	var errs []error

	switch config.Backend {
	case BackendMemory:
	case BackendFile:
		if config.DataDir == "" {
			errs = append(errs, ValidationError{
				Field:   "storage.dataDir",
				Message: "data directory is required for the file backend",
			})
		} else if !filepath.IsAbs(config.DataDir) {
			errs = append(errs, ValidationError{
				Field:   "storage.dataDir",
				Message: "must be an absolute path",
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "storage.backend",
			Message: "must be memory or file",
		})
	}

	if config.CompressionLevel < 0 || config.CompressionLevel > 22 {
		errs = append(errs, ValidationError{
			Field:   "storage.compressionLevel",
			Message: "must be between 0 and 22",
		})
	}

	if config.CompactThreshold < 0 {
		errs = append(errs, ValidationError{
			Field:   "storage.compactThreshold",
			Message: "must be non-negative",
		})
	}

	if config.NgramSize != 0 && (config.NgramSize < 2 || config.NgramSize > 8) {
		errs = append(errs, ValidationError{
			Field:   "storage.ngramSize",
			Message: "must be between 2 and 8",
		})
	}

	return errs
}

// validateIndexConfigs validates the attribute index list.
func validateIndexConfigs(configs []IndexConfig) []error {
	var errs []error
	seen := make(map[string]bool, len(configs))

	for i, ic := range configs {
		field := fmt.Sprintf("indexes[%d]", i)

		if !attributeNamePattern.MatchString(ic.Attribute) {
			errs = append(errs, ValidationError{
				Field:   field + ".attribute",
				Message: fmt.Sprintf("invalid attribute name %q", ic.Attribute),
			})
			continue
		}
		if strings.EqualFold(ic.Attribute, ReservedAttribute) {
			errs = append(errs, ValidationError{
				Field:   field + ".attribute",
				Message: ReservedAttribute + " is always indexed",
			})
			continue
		}

		typ, err := index.ParseIndexType(ic.Type)
		if err != nil {
			errs = append(errs, ValidationError{
				Field:   field + ".type",
				Message: "must be equality, presence, or substring",
			})
			continue
		}

		if ic.SingleValued && typ != index.IndexEquality {
			errs = append(errs, ValidationError{
				Field:   field + ".singleValued",
				Message: "only equality indexes can be single-valued",
			})
		}

		key := strings.ToLower(ic.Attribute) + "/" + typ.String()
		if seen[key] {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("duplicate %s index on %s", typ, ic.Attribute),
			})
		}
		seen[key] = true
	}

	return errs
}

// validateLogConfig validates logging configuration.
func validateLogConfig(config *LogConfig) []error {
	var errs []error

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if config.Level != "" && !validLevels[strings.ToLower(config.Level)] {
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: "must be debug, info, warn, or error",
		})
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if config.Format != "" && !validFormats[strings.ToLower(config.Format)] {
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: "must be text or json",
		})
	}

	if config.Output != "" && config.Output != "stdout" && config.Output != "stderr" {
		dir := filepath.Dir(config.Output)
		if !filepath.IsAbs(config.Output) {
			errs = append(errs, ValidationError{
				Field:   "logging.output",
				Message: "must be stdout, stderr, or an absolute file path",
			})
		} else if _, err := os.Stat(dir); os.IsNotExist(err) {
			errs = append(errs, ValidationError{
				Field:   "logging.output",
				Message: fmt.Sprintf("directory %s does not exist", dir),
			})
		}
	}

	return errs
}
