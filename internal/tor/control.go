package tor

import (
	"bufio"
	"context"
	"encoding/hex"
	"fmt"
	"net"
	"os"
	"strings"
	"time"
)

// controlTimeout bounds the entire control port conversation. Rotating a
// circuit is a side channel of the fetch loop and must never stall it.
const controlTimeout = 5 * time.Second

// ControlAuth describes how to authenticate to the Tor control port.
// Exactly one of CookiePath or Password may be set; if both are empty,
// null authentication is attempted (works when Tor runs with no auth).
type ControlAuth struct {
	// CookiePath is the path to Tor's control_auth_cookie file.
	CookiePath string

	// Password is the control port password, if HashedControlPassword is set.
	Password string
}

// ControlAuthFromCookie creates auth settings using a cookie file.
// For an embedded daemon the file lives in its data directory as
// "control_auth_cookie".
func ControlAuthFromCookie(cookiePath string) ControlAuth {
	return ControlAuth{CookiePath: cookiePath}
}

// ControlAuthFromPassword creates auth settings using a password.
func ControlAuthFromPassword(password string) ControlAuth {
	return ControlAuth{Password: password}
}

// ControlClient sends signals to a Tor daemon over its control port.
// Its primary use is requesting a fresh circuit (NEWNYM) so that
// subsequent requests exit through a different path.
//
// Design decision: Each signal opens a short-lived connection rather than
// keeping a persistent control session. Rotation happens at most every few
// requests, so connection reuse buys nothing, and a stateless client
// survives Tor daemon restarts without reconnect logic.
type ControlClient struct {
	// address is the control port address in "host:port" format.
	address string

	// auth holds the authentication settings.
	auth ControlAuth
}

// NewControlClient creates a control port client for the given address.
// The constructor does not contact the daemon; authentication happens
// per signal.
func NewControlClient(address string, auth ControlAuth) (*ControlClient, error) {
	if !isValidProxyAddress(address) {
		return nil, ErrInvalidProxyAddress
	}

	return &ControlClient{
		address: address,
		auth:    auth,
	}, nil
}

// SignalNewCircuit asks the Tor daemon to switch to clean circuits.
// After this signal, new connections will not share circuits with old
// ones. Tor rate limits NEWNYM internally (roughly one per 10 seconds);
// a rejected signal returns ErrControlSignalRejected.
func (c *ControlClient) SignalNewCircuit(ctx context.Context) error {
	deadline := time.Now().Add(controlTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", c.address)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrControlUnavailable, c.address)
	}
	defer conn.Close()

	if err := conn.SetDeadline(deadline); err != nil {
		return fmt.Errorf("%w: %v", ErrControlUnavailable, err)
	}

	reader := bufio.NewReader(conn)

	if err := c.authenticate(conn, reader); err != nil {
		return err
	}

	if err := sendCommand(conn, reader, "SIGNAL NEWNYM"); err != nil {
		return fmt.Errorf("%w: %v", ErrControlSignalRejected, err)
	}

	// QUIT is a courtesy; the daemon closes the connection either way.
	fmt.Fprintf(conn, "QUIT\r\n")

	return nil
}

// authenticate performs the AUTHENTICATE exchange using the configured
// auth method.
func (c *ControlClient) authenticate(conn net.Conn, reader *bufio.Reader) error {
	var command string

	switch {
	case c.auth.CookiePath != "":
		cookie, err := os.ReadFile(c.auth.CookiePath)
		if err != nil {
			return fmt.Errorf("%w: failed to read cookie file: %v", ErrControlAuthFailed, err)
		}
		command = "AUTHENTICATE " + hex.EncodeToString(cookie)
	case c.auth.Password != "":
		command = fmt.Sprintf("AUTHENTICATE %q", c.auth.Password)
	default:
		command = "AUTHENTICATE"
	}

	if err := sendCommand(conn, reader, command); err != nil {
		return fmt.Errorf("%w: %v", ErrControlAuthFailed, err)
	}

	return nil
}

// sendCommand writes a control protocol command and verifies the reply
// starts with the 250 success code. Multi-line replies (250-... or
// 250+...) are drained until the final "250 " line.
func sendCommand(conn net.Conn, reader *bufio.Reader, command string) error {
	if _, err := fmt.Fprintf(conn, "%s\r\n", command); err != nil {
		return err
	}

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return err
		}

		line = strings.TrimRight(line, "\r\n")
		if len(line) < 4 {
			return fmt.Errorf("malformed control reply: %q", line)
		}

		code, sep := line[:3], line[3]
		if code != "250" {
			return fmt.Errorf("control reply %s", line)
		}

		// A space after the code marks the final line of the reply.
		if sep == ' ' {
			return nil
		}
	}
}

// Address returns the configured control port address.
func (c *ControlClient) Address() string {
	return c.address
}
