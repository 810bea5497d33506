// Package tor provides Tor network connectivity for the primary transport.
//
// This package covers three concerns: SOCKS5 client connectivity to a Tor
// daemon (Client), v3 onion address validation with full checksum
// verification (ValidateTargetURL and friends), and circuit rotation via
// the control port (ControlClient). An embedded daemon managed through
// tornago (EmbeddedTor) is available for deployments without an external
// Tor installation.
//
// The package is designed to be used with dependency injection - create a
// Client and pass it to components that need Tor connectivity rather than
// using global state.
package tor
