// Package config handles loading and parsing of configuration from YAML files
// and environment variables. It defines the server, logging, database, cache,
// health check and metrics settings of the service.
package config
