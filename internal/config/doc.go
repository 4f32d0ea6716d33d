// Package config loads runtime configuration for the opsbook client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-s string   base URL of the remote runbook server
//	-d string   path to the local sqlite store
//	-u string   user display name
//	-i int      operation drain interval (seconds)
//
// # JSON schema
//
// The JSON loader uses timex.Duration for intervals, so values can be either
// strings like "15s" or integer nanoseconds:
//
//	{
//	  "server_url": "https://api.opsbook.dev",
//	  "database_path": "/var/lib/opsbook/opsbook.db",
//	  "user": "alice",
//	  "drain_interval": "15s"
//	}
//
// This package does not read environment variables; use the JSON file or
// flags to configure values.
package config
