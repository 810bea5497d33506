// Package config defines configuration options, defaults, and validation
// for the harvester. Configuration is assembled from defaults, the optional
// .onionharvest YAML file, and CLI flags, in that order of precedence,
// then validated once before any fetching begins.
package config
