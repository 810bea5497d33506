// Package main is the entry point for the onionharvest CLI tool.
// onionharvest fetches dark-web pages over Tor (with optional I2P
// fallback) and ingests their content into a local SQLite database.
package main

func main() {
	Execute()
}
