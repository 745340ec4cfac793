// Package auditkit provides the command-line interface for auditkit. It wires
// configuration, the built-in plugins and the engine into the run, analyze,
// plugins and config subcommands.
//
// Typical usage from a main package:
//
//	package main
//	import "github.com/varalys/auditkit/cmd/auditkit"
//	func main() { auditkit.Execute() }
package auditkit
