// Package cli wires together the Cobra command tree for the agriguard binary.
//
// It defines the root command and all subcommands (serve, lookup, report,
// catalog, config, providers, version), binds flags, reads configuration,
// builds the advisory service and returns deterministic exit codes.
package cli
