package safeurl

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateURL_Schemes(t *testing.T) {
	// WHAT: Non-HTTP(S) schemes are rejected.
	// WHY: Monitored sources must never trigger file://, gopher://, etc. requests.
	for _, raw := range []string{"ftp://example.com/x", "file:///etc/passwd", "gopher://example.com"} {
		if err := ValidateURL(raw); !errors.Is(err, ErrUnsafeScheme) {
			t.Errorf("%q: expected ErrUnsafeScheme, got %v", raw, err)
		}
	}
}

func TestValidateURL_PrivateTargets(t *testing.T) {
	// WHAT: URLs pointing at loopback/private IPs are rejected.
	// WHY: A misconfigured source URL must not become an SSRF vector.
	for _, raw := range []string{
		"http://127.0.0.1/admin",
		"http://10.1.2.3/",
		"http://192.168.1.1/router",
		"http://169.254.169.254/latest/meta-data",
	} {
		if err := ValidateURL(raw); !errors.Is(err, ErrSSRF) {
			t.Errorf("%q: expected ErrSSRF, got %v", raw, err)
		}
	}
}

func TestValidateURL_NoHost(t *testing.T) {
	if err := ValidateURL("https:///path-only"); err == nil {
		t.Error("expected error for URL without host")
	}
}

func TestLimitedReadAll(t *testing.T) {
	// WHAT: Reads under the cap succeed, reads over it fail.
	// WHY: Response bodies are bounded so one huge page cannot exhaust memory.
	data, err := LimitedReadAll(strings.NewReader("hello"), 10)
	if err != nil {
		t.Fatalf("under cap: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("got %q", data)
	}

	if _, err := LimitedReadAll(strings.NewReader("0123456789abcdef"), 10); err == nil {
		t.Error("expected error above cap")
	}
}
