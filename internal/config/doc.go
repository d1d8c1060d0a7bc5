// Package config loads the engine configuration from JSON or YAML files,
// fills defaults, and resolves secrets referenced through environment
// variables.
package config
