// Package main is the entry point for the Stratbox MCP server.
//
// The Stratbox server executes untrusted, user-authored strategy code in
// per-run sandboxes: a capability policy bounds what the code may reference,
// a resource governor bounds how long and how hard it may run, and bounded
// capture buffers bound how much it may print. The server supports both
// stdio and HTTP transports.
//
// The application uses Uber's fx framework for dependency injection and
// lifecycle management, with zap for structured logging and viper for
// configuration.
package main
