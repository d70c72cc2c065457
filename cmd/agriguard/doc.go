// Command agriguard serves and looks up pest treatment advisories.
//
// Usage:
//
//	agriguard serve [--nats] [--addr :8080]
//	agriguard lookup <label>... [--format text|json] [--export cache.json]
//	agriguard report [batch.json]
//	agriguard catalog list|search <term>
//	agriguard config init|set|show
//	agriguard providers list|doctor
//	agriguard version
//
// Variables from .env, agriguard.env and ~/.config/agriguard.env are loaded
// before configuration is read. Environment variables already set win.
//
// Exit codes:
//
//	0  success
//	2  usage or configuration error
//	3  provider authentication error or missing API key
//	4  runtime error
package main
