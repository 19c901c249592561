package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSanitizeHost(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://harvard.edu/admissions", "harvard.edu"},
		{"standard https", "https://Stanford.edu/admission", "stanford.edu"},
		{"no scheme", "mit.edu/admissions", "mit.edu"},
		{"just host", "yale.edu", "yale.edu"},
		{"host with port", "localhost:8080", "localhost"},
		{"ip address", "192.168.1.1", "192.168.1.1"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeHost(tc.input); got != tc.expected {
				t.Errorf("SanitizeHost(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestInit(t *testing.T) {
	// Reset collectors for testing purposes.
	pagesFetchedTotal = nil
	fieldExtractionsTotal = nil
	enrichmentsTotal = nil
	httpRequestsTotal = nil
	httpRequestDurationSeconds = nil

	// Call Init multiple times to test idempotency.
	Init()
	Init()

	if pagesFetchedTotal == nil || fieldExtractionsTotal == nil ||
		enrichmentsTotal == nil || httpRequestsTotal == nil ||
		httpRequestDurationSeconds == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}

	// A simple check to see if a metric can be used.
	pagesFetchedTotal.WithLabelValues("harvard.edu", "static").Inc()
	if val := testutil.ToFloat64(pagesFetchedTotal); val != 1 {
		t.Errorf("Expected pagesFetchedTotal to be 1, got %f", val)
	}
}

// Fuzz test for SanitizeHost.
func FuzzSanitizeHost(f *testing.F) {
	testcases := []string{"http://harvard.edu", "https://stanford.edu", "ftp://mit.edu"}
	for _, tc := range testcases {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		sanitized := SanitizeHost(orig)
		if sanitized == "" {
			t.Errorf("SanitizeHost(%q) returned an empty string", orig)
		}
	})
}
