package fingerprint

import (
	"crypto/tls"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/language"
)

// userAgents are current browser user agent strings. Tor Browser ships
// Firefox ESR, so Firefox ESR strings dominate the list; a uniform
// harvester signature would stand out more than any single value.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; rv:128.0) Gecko/20100101 Firefox/128.0",
	"Mozilla/5.0 (Windows NT 10.0; rv:115.0) Gecko/20100101 Firefox/115.0",
	"Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:128.0) Gecko/20100101 Firefox/128.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36",
}

// languageSets are the locale preference lists used to build
// Accept-Language values. Tags are validated at init via MustParse so a
// typo fails loudly instead of producing a malformed header.
var languageSets = [][]language.Tag{
	{language.MustParse("en-US"), language.MustParse("en")},
	{language.MustParse("en-GB"), language.MustParse("en")},
	{language.MustParse("de-DE"), language.MustParse("de"), language.MustParse("en")},
	{language.MustParse("fr-FR"), language.MustParse("fr"), language.MustParse("en")},
	{language.MustParse("es-ES"), language.MustParse("es"), language.MustParse("en")},
	{language.MustParse("ru-RU"), language.MustParse("ru"), language.MustParse("en")},
}

// TLSPreset selects one of the prebuilt TLS client configurations.
type TLSPreset int

const (
	// TLSPresetModern restricts the handshake to TLS 1.3.
	TLSPresetModern TLSPreset = iota

	// TLSPresetBalanced allows TLS 1.2 with a current cipher selection.
	// This is the most common browser posture.
	TLSPresetBalanced

	// TLSPresetCompatible allows TLS 1.2 with a wider cipher list, as
	// presented by older clients.
	TLSPresetCompatible

	numTLSPresets
)

// String returns the preset name for logging.
func (p TLSPreset) String() string {
	switch p {
	case TLSPresetModern:
		return "modern"
	case TLSPresetBalanced:
		return "balanced"
	case TLSPresetCompatible:
		return "compatible"
	default:
		return "unknown"
	}
}

// Config returns a fresh tls.Config for the preset.
// Certificate verification is disabled in all presets because hidden
// services use self-signed certificates; the onion address itself
// authenticates the endpoint.
func (p TLSPreset) Config() *tls.Config {
	cfg := &tls.Config{
		InsecureSkipVerify: true, //nolint:gosec // Required for .onion services
	}

	switch p {
	case TLSPresetModern:
		cfg.MinVersion = tls.VersionTLS13
	case TLSPresetBalanced:
		cfg.MinVersion = tls.VersionTLS12
		cfg.CipherSuites = []uint16{
			tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256,
			tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256,
		}
	case TLSPresetCompatible:
		cfg.MinVersion = tls.VersionTLS12
		cfg.CipherSuites = []uint16{
			tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_AES_128_CBC_SHA,
			tls.TLS_ECDHE_RSA_WITH_AES_256_CBC_SHA,
			tls.TLS_RSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_RSA_WITH_AES_256_GCM_SHA384,
		}
	}

	return cfg
}

// Identity is one randomized client signature, used for a single fetch
// attempt.
type Identity struct {
	// UserAgent is the User-Agent header value.
	UserAgent string

	// AcceptLanguage is the Accept-Language header value with q-weights.
	AcceptLanguage string

	// TLSPreset selects the TLS configuration for the attempt.
	TLSPreset TLSPreset

	// Jitter is a delay to wait before sending the request. Varying the
	// delay breaks timing regularity between consecutive attempts.
	Jitter time.Duration
}

// Apply sets the identity's headers on the request. The remaining
// headers are fixed browser-typical values; a stable set with varying
// contents is less conspicuous than headers that come and go.
func (id Identity) Apply(req *http.Request) {
	req.Header.Set("User-Agent", id.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", id.AcceptLanguage)
	req.Header.Set("Upgrade-Insecure-Requests", "1")
}

// TLSConfig returns the tls.Config for this identity's preset.
func (id Identity) TLSConfig() *tls.Config {
	return id.TLSPreset.Config()
}

// DefaultIdentity is the fixed identity used when randomization is
// disabled or a generator is unavailable.
var DefaultIdentity = Identity{
	UserAgent:      userAgents[0],
	AcceptLanguage: "en-US,en;q=0.5",
	TLSPreset:      TLSPresetBalanced,
	Jitter:         0,
}

// Jitter bounds for generated identities. The lower bound keeps some
// delay on every attempt; the upper bound keeps the fetch loop moving.
const (
	minJitter = 100 * time.Millisecond
	maxJitter = 1500 * time.Millisecond
)

// Generator produces randomized identities.
// It is safe for concurrent use by multiple fetch workers.
type Generator struct {
	// mu guards rnd; math/rand.Rand is not safe for concurrent use.
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewGenerator creates a generator seeded from the current time.
//
// Design decision: math/rand is sufficient here. Identity selection
// needs variety, not unpredictability; nothing security-relevant is
// derived from the sequence.
func NewGenerator() *Generator {
	return &Generator{
		rnd: rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec // non-cryptographic variety
	}
}

// newGeneratorWithSource creates a deterministic generator for tests.
func newGeneratorWithSource(src rand.Source) *Generator {
	return &Generator{rnd: rand.New(src)} //nolint:gosec // non-cryptographic variety
}

// Next returns a fresh randomized identity.
func (g *Generator) Next() Identity {
	g.mu.Lock()
	defer g.mu.Unlock()

	tags := languageSets[g.rnd.Intn(len(languageSets))]
	jitterRange := int64(maxJitter - minJitter)

	return Identity{
		UserAgent:      userAgents[g.rnd.Intn(len(userAgents))],
		AcceptLanguage: formatAcceptLanguage(tags),
		TLSPreset:      TLSPreset(g.rnd.Intn(int(numTLSPresets))),
		Jitter:         minJitter + time.Duration(g.rnd.Int63n(jitterRange)),
	}
}

// formatAcceptLanguage renders a preference list with descending
// q-weights, e.g. "de-DE,de;q=0.8,en;q=0.5".
func formatAcceptLanguage(tags []language.Tag) string {
	var b strings.Builder
	weights := []string{"", ";q=0.8", ";q=0.5", ";q=0.3"}

	for i, tag := range tags {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(tag.String())
		if i < len(weights) {
			b.WriteString(weights[i])
		} else {
			b.WriteString(";q=0.1")
		}
	}

	return b.String()
}
