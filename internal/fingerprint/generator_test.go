package fingerprint

import (
	"crypto/tls"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"testing"
)

// TestGeneratorNext tests identity generation.
func TestGeneratorNext(t *testing.T) {
	t.Parallel()

	t.Run("fields are populated from known pools", func(t *testing.T) {
		t.Parallel()

		g := NewGenerator()
		id := g.Next()

		found := false
		for _, ua := range userAgents {
			if id.UserAgent == ua {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("UserAgent %q not in the known pool", id.UserAgent)
		}

		if id.AcceptLanguage == "" {
			t.Error("expected non-empty AcceptLanguage")
		}
		if id.TLSPreset < 0 || id.TLSPreset >= numTLSPresets {
			t.Errorf("TLSPreset %d out of range", id.TLSPreset)
		}
		if id.Jitter < minJitter || id.Jitter > maxJitter {
			t.Errorf("Jitter %v outside [%v, %v]", id.Jitter, minJitter, maxJitter)
		}
	})

	t.Run("identities vary across calls", func(t *testing.T) {
		t.Parallel()

		g := newGeneratorWithSource(rand.NewSource(1))

		seen := make(map[string]bool)
		for range 50 {
			id := g.Next()
			seen[id.UserAgent+"|"+id.AcceptLanguage] = true
		}
		if len(seen) < 2 {
			t.Error("expected identity variety across 50 draws")
		}
	})

	t.Run("deterministic with fixed seed", func(t *testing.T) {
		t.Parallel()

		g1 := newGeneratorWithSource(rand.NewSource(42))
		g2 := newGeneratorWithSource(rand.NewSource(42))

		for range 10 {
			a, b := g1.Next(), g2.Next()
			if a != b {
				t.Fatalf("same seed produced different identities: %+v vs %+v", a, b)
			}
		}
	})

	t.Run("safe for concurrent use", func(t *testing.T) {
		t.Parallel()

		g := NewGenerator()
		var wg sync.WaitGroup
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for range 100 {
					_ = g.Next()
				}
			}()
		}
		wg.Wait()
	})
}

// TestIdentityApply tests header application.
func TestIdentityApply(t *testing.T) {
	t.Parallel()

	req, err := http.NewRequest(http.MethodGet, "http://example.onion/", nil) //nolint:noctx // test code
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}

	id := Identity{
		UserAgent:      "test-agent",
		AcceptLanguage: "en-US,en;q=0.5",
		TLSPreset:      TLSPresetModern,
	}
	id.Apply(req)

	if got := req.Header.Get("User-Agent"); got != "test-agent" {
		t.Errorf("User-Agent = %q, expected %q", got, "test-agent")
	}
	if got := req.Header.Get("Accept-Language"); got != "en-US,en;q=0.5" {
		t.Errorf("Accept-Language = %q, expected %q", got, "en-US,en;q=0.5")
	}
	if got := req.Header.Get("Accept"); !strings.Contains(got, "text/html") {
		t.Errorf("Accept = %q, expected an HTML preference", got)
	}
	if got := req.Header.Get("Upgrade-Insecure-Requests"); got != "1" {
		t.Errorf("Upgrade-Insecure-Requests = %q, expected %q", got, "1")
	}
}

// TestTLSPresetConfig tests TLS preset configurations.
func TestTLSPresetConfig(t *testing.T) {
	t.Parallel()

	t.Run("all presets skip verification", func(t *testing.T) {
		t.Parallel()

		for p := TLSPreset(0); p < numTLSPresets; p++ {
			cfg := p.Config()
			if !cfg.InsecureSkipVerify {
				t.Errorf("preset %v: expected InsecureSkipVerify", p)
			}
		}
	})

	t.Run("modern preset requires TLS 1.3", func(t *testing.T) {
		t.Parallel()

		cfg := TLSPresetModern.Config()
		if cfg.MinVersion != tls.VersionTLS13 {
			t.Errorf("MinVersion = %d, expected TLS 1.3", cfg.MinVersion)
		}
	})

	t.Run("balanced and compatible differ in cipher lists", func(t *testing.T) {
		t.Parallel()

		balanced := TLSPresetBalanced.Config()
		compatible := TLSPresetCompatible.Config()
		if len(balanced.CipherSuites) == 0 || len(compatible.CipherSuites) == 0 {
			t.Fatal("expected explicit cipher suites")
		}
		if len(balanced.CipherSuites) == len(compatible.CipherSuites) {
			t.Error("expected the presets to present different cipher lists")
		}
	})

	t.Run("each call returns a fresh config", func(t *testing.T) {
		t.Parallel()

		if TLSPresetBalanced.Config() == TLSPresetBalanced.Config() {
			t.Error("expected distinct configs per call")
		}
	})

	t.Run("String names each preset", func(t *testing.T) {
		t.Parallel()

		names := map[TLSPreset]string{
			TLSPresetModern:     "modern",
			TLSPresetBalanced:   "balanced",
			TLSPresetCompatible: "compatible",
			TLSPreset(99):       "unknown",
		}
		for p, want := range names {
			if p.String() != want {
				t.Errorf("TLSPreset(%d).String() = %q, expected %q", p, p.String(), want)
			}
		}
	})
}

// TestFormatAcceptLanguage tests q-weight rendering.
func TestFormatAcceptLanguage(t *testing.T) {
	t.Parallel()

	got := formatAcceptLanguage(languageSets[2])
	if got != "de-DE,de;q=0.8,en;q=0.5" {
		t.Errorf("formatAcceptLanguage() = %q, expected %q", got, "de-DE,de;q=0.8,en;q=0.5")
	}
}

// TestDefaultIdentity tests the fallback identity.
func TestDefaultIdentity(t *testing.T) {
	t.Parallel()

	if DefaultIdentity.UserAgent == "" {
		t.Error("expected non-empty default user agent")
	}
	if DefaultIdentity.Jitter != 0 {
		t.Error("expected zero jitter in default identity")
	}
	if DefaultIdentity.TLSConfig() == nil {
		t.Error("expected non-nil TLS config")
	}
}
