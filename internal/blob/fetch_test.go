package blob

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestFetcher_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/cv.pdf":
			_, _ = w.Write([]byte("%PDF-1.7"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewFetcher(5 * time.Second)

	body, err := f.Fetch(context.Background(), srv.URL+"/cv.pdf")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(body) != "%PDF-1.7" {
		t.Fatalf("body = %q", body)
	}

	if _, err := f.Fetch(context.Background(), srv.URL+"/missing.pdf"); err == nil {
		t.Fatalf("expected error for 404")
	}
}

func TestFetcher_CancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewFetcher(time.Second).Fetch(ctx, srv.URL); err == nil {
		t.Fatalf("expected error for cancelled context")
	}
}
