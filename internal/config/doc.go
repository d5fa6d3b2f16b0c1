// Package config loads and validates the taskgate YAML configuration.
//
// Values of the form ${VAR_NAME} are expanded from the environment before
// parsing, so secrets like the JWT signing key and the completion provider
// API key stay out of the file. Duration fields accept Go duration strings
// ("45s", "5m"). Load fails fast on any missing required field.
package config
