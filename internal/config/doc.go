// Package config loads and validates the settings of the task patterns CLI.
//
// Values are resolved, from highest to lowest precedence, from TASKPATTERNS_*
// environment variables, an optional YAML/JSON/TOML file, and built-in
// defaults matching the reference timings of every pattern. Nested keys map
// to environment variables by upper-casing and replacing dots with
// underscores, so "remote_call.failure_rate" is TASKPATTERNS_REMOTE_CALL_FAILURE_RATE.
package config
