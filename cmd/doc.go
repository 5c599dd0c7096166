// Package cmd provides the blockedit command-line interface.
//
// # Available Commands
//
//   - normalize: normalize an HTML fragment and report the corrections
//   - validate: fail when files would need corrections (CI checks)
//   - watch: re-normalize HTML files as they change
//   - serve: serve the editor page and websocket editing sessions
//   - plugins: list host plugins, extensions and their states
//   - schema: list the registered blocks
//   - config: show or validate the effective configuration
//   - version: print build information
//
// # Configuration
//
// Configuration is read from several sources, highest priority first:
//
//  1. Command-line flags (--config, --log-level, --port, ...)
//  2. BLOCKEDIT_CONFIG_FILE: path to a configuration file
//  3. Environment variables such as BLOCKEDIT_SERVER_PORT, also loaded
//     from a .env file in the working directory
//  4. The .blockedit.yml configuration file
//
// # Command Examples
//
//	// Normalize stdin and print JSON
//	cat page.html | blockedit normalize -f json
//
//	// Check a content tree in CI
//	blockedit validate content/*.html
//
//	// Serve on another port with Lua extensions
//	BLOCKEDIT_PLUGINS_SCRIPTS=ext/menu.lua blockedit serve -p 8080
package cmd
