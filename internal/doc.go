// Package internal contains the implementation packages for blockedit.
//
// # Package Organization
//
// The internal packages are organized by functional domain:
//
//   - dom: the html.Node document model and its mutation channel
//   - schema: block rules, the schema registry and schema file loading
//   - fallback: conversions for tags the schema does not know
//   - placeholder: empty-block placeholders and the markup sanitizer
//   - enforcer: the observer that keeps the document inside the schema
//   - plugins: plugin and extension contracts and the engine
//   - plugins/builtin: the schema, slash menu, toolbar, shortcut and asset hosts
//   - plugins/lua: extensions written in Lua
//   - overlay: the stack of floating editor components
//   - assets: bundle scheduling and injection
//   - editor: wires everything above into one editor
//   - server, middleware: websocket editing sessions over HTTP
//   - config, logging, errors, watcher, version: ambient services
//
// # Inter-Package Communication
//
// Packages communicate through the document and the plugin engine:
//
//   - Every change to the document goes through dom.Document and is
//     delivered to observers on Commit
//   - The enforcer observes the document and repairs it in place
//   - Host plugins collect contributions from extensions at build time
//   - The editor owns one document, one engine and one overlay stack
package internal
