// Package config loads reportflow configuration.
//
// Load reads a YAML file with Viper, loads an optional .env file with
// godotenv, and applies REPORTFLOW_ prefixed environment variables on top,
// an underscore standing for either nesting or a literal underscore
// (REPORTFLOW_EXECUTOR_MAX_IN_FLIGHT sets executor.max_in_flight).
// LoadConfig then applies defaults and validates every section with struct
// tags.
//
//	cfg, err := config.LoadConfig("crash-uploader")
package config
