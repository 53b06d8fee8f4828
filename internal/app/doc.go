// Package app holds the TOML configuration and wires the application
// dependencies for the CLI.
//
// It builds the log backend, the bbolt-backed stores and the high-level
// services from Config, exposing them via the App struct for commands to
// use.
package app
