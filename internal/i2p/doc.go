// Package i2p provides fallback transport connectivity through a local
// I2P HTTP proxy. Targets that keep failing over Tor are escalated here;
// some services are reachable on both networks and an I2P path can
// succeed when the Tor side is blocked or overloaded.
package i2p
