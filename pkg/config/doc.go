// Package config loads application configuration from PIPEWATCH_*
// environment variables and validates it. Every field has a working
// default so the service starts with an empty environment.
package config
