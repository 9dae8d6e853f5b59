// Package config handles configuration loading, parsing, and validation
// from environment variables (prefixed OMNIMEDIA_), an optional .env file and
// an optional config.yaml. Optional integrations (PostgreSQL, S3, InfluxDB,
// JWT auth) are disabled when their settings are left empty.
package config
