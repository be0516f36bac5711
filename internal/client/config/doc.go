// Package config loads runtime configuration for the GophVault CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file passed to LoadConfig (the CLI's --config flag).
//  3. Persistent command-line flags (--server, --timeout), applied by the CLI.
//
// # JSON schema
//
// The JSON loader uses timex.Duration for timeouts, so values can be either
// strings like "30s" or integer nanoseconds:
//
//	{
//	  "server_url": "http://127.0.0.1:8080",
//	  "request_timeout": "30s",
//	  "session_file": "/home/me/.config/gophvault/session.json"
//	}
package config
