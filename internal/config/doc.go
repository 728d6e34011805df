// Package config handles configuration loading for the storyteller server.
//
// # Overview
//
// Configuration is loaded from YAML or TOML files (chosen by the .toml
// extension) with environment variable expansion. Every field has a default,
// so a missing file yields a runnable local configuration.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from STORYTELLER_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/storyteller/config.yaml
//  3. ~/.config/storyteller/config.yaml
//
// STORYTELLER_DB_PATH overrides database.path after the file is read.
//
// # Environment Variable Expansion
//
//	auth:
//	  jwt_secret: "${STORYTELLER_JWT_SECRET}"
//	generation:
//	  api_key: "${OPENAI_API_KEY}"
//
// Unset variables expand to the empty string.
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	auth:
//	  token_ttl: "24h"
//	  session_ttl: "168h"
//	app:
//	  view_dedupe_window: "30m"
//	  session_sweep_interval: "10m"
//
// # Configuration Sections
//
//	server:      http_addr, read_timeout, write_timeout, shutdown_timeout
//	database:    path
//	auth:        jwt_secret, token_ttl, session_ttl, min_password_length, bcrypt_cost, secure_cookies
//	logging:     level (debug|info|warn|error), format (text|json)
//	metrics:     enabled, path
//	ratelimit:   enabled, requests_per_minute, burst
//	media:       dir, max_upload_bytes
//	generation:  provider (stub|openai), api_key, base_url, chat_model, image_model,
//	             speech_model, max_tokens, temperature, timeout, fallback_on_error
//	app:         name, max_story_length, max_room_participants, default_language,
//	             view_dedupe_window, session_sweep_interval
//	catalog:     regions, languages, categories, durations, story_types, lengths, styles
//
// When auth.jwt_secret is empty the API token endpoint is disabled.
package config
