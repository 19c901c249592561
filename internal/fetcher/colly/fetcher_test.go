package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/campusdata/admissions-crawler/internal/admissions"
)

func TestFetchSuccess(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "<html><body><h1>Admissions</h1></body></html>")
	}))
	defer srv.Close()

	f := New(Config{UserAgent: "test-agent", Timeout: 2 * time.Second})
	page, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", page.StatusCode)
	}
	if page.Strategy != admissions.FetchStatic {
		t.Fatalf("expected static strategy, got %q", page.Strategy)
	}
	if len(page.Body) == 0 {
		t.Fatal("expected non-empty body")
	}
	if page.URL != srv.URL {
		t.Fatalf("expected requested URL to be preserved, got %q", page.URL)
	}
}

func TestFetchNonSuccessStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	f := New(Config{Timeout: 2 * time.Second})
	_, err := f.Fetch(context.Background(), srv.URL)
	var fetchErr *admissions.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if fetchErr.Kind != admissions.FetchNonSuccessStatus {
		t.Fatalf("expected non_success_status, got %q", fetchErr.Kind)
	}
	if fetchErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", fetchErr.StatusCode)
	}
}

func TestFetchRedirectCap(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/loop", http.StatusFound)
	}))
	defer srv.Close()

	f := New(Config{Timeout: 2 * time.Second, MaxRedirects: 3})
	_, err := f.Fetch(context.Background(), srv.URL)
	var fetchErr *admissions.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if fetchErr.Kind != admissions.FetchTooManyRedirects {
		t.Fatalf("expected too_many_redirects, got %q", fetchErr.Kind)
	}
}

func TestFetchTimeout(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(500 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	f := New(Config{Timeout: 50 * time.Millisecond})
	_, err := f.Fetch(context.Background(), srv.URL)
	var fetchErr *admissions.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if fetchErr.Kind != admissions.FetchTimeout {
		t.Fatalf("expected timeout, got %q", fetchErr.Kind)
	}
}

func TestFetchConnectionRefused(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	url := srv.URL
	srv.Close()

	f := New(Config{Timeout: 2 * time.Second})
	_, err := f.Fetch(context.Background(), url)
	var fetchErr *admissions.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if fetchErr.Kind != admissions.FetchConnectionRefused {
		t.Fatalf("expected connection_refused, got %q", fetchErr.Kind)
	}
}

func TestFetchFollowsRedirectsBelowCap(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/final", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/final", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "<html><body>landed</body></html>")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := New(Config{Timeout: 2 * time.Second, MaxRedirects: 5})
	page, err := f.Fetch(context.Background(), srv.URL+"/start")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.FinalURL != srv.URL+"/final" {
		t.Fatalf("expected final URL to reflect redirect, got %q", page.FinalURL)
	}
	if page.URL != srv.URL+"/start" {
		t.Fatalf("expected original URL to be preserved, got %q", page.URL)
	}
}
