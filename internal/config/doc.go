// Package config provides configuration parsing and management for obastore.
//
// # Overview
//
// The config package loads, parses and validates the configuration of a
// partition from YAML files and environment variables.
//
// # Configuration Structure
//
//	type Config struct {
//	    Storage StorageConfig // backend, data directory, journal tuning
//	    Indexes []IndexConfig // attribute indexes
//	    Logging LogConfig     // logging settings
//	}
//
// # Loading Configuration
//
//	cfg, err := config.LoadConfig("/etc/obastore/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if errs := config.ValidateConfig(cfg); len(errs) > 0 {
//	    log.Fatal(errs[0])
//	}
//
// # Environment Variables
//
// Values may reference the environment with ${VAR} or ${VAR:-default}:
//
//	storage:
//	  dataDir: ${OBASTORE_DATA:-/var/lib/obastore}
//
// # Example Configuration
//
//	storage:
//	  backend: file
//	  dataDir: /var/lib/obastore
//	  syncOnWrite: false
//	  compress: true
//	  compactThreshold: 10000
//
//	indexes:
//	  - attribute: uid
//	    type: equality
//	  - attribute: cn
//	    type: substring
//
//	logging:
//	  level: info
//	  format: json
//	  output: stdout
package config
