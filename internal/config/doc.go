// Package config loads and merges agriguard configuration from multiple sources.
//
// Precedence (highest to lowest):
//  1. CLI flags
//  2. Environment variables (AGRIGUARD_PROVIDER, AGRIGUARD_FALLBACK_POLICY,
//     AGRIGUARD_SERVER_ADDR, etc.; see [EnvVar])
//  3. Config file ($XDG_CONFIG_HOME/agriguard/config.json)
//  4. Built-in defaults
//
// Use [Load] to obtain a merged [Config], [Save] to write a config file,
// and [SetField] to update a single key.
package config
