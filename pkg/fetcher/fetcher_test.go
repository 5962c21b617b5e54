package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestFetch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/cart", http.StatusFound)
	})
	mux.HandleFunc("/cart", func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.UserAgent(), "Mozilla") {
			t.Errorf("User-Agent = %q", r.UserAgent())
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><body>cart</body></html>"))
	})
	mux.HandleFunc("/gone", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := NewFetcher()

	res, err := f.Fetch(context.Background(), srv.URL+"/old")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if res.FinalURL != srv.URL+"/cart" {
		t.Errorf("FinalURL = %q, want redirect target", res.FinalURL)
	}
	if !strings.Contains(string(res.Body), "cart") {
		t.Errorf("Body = %q", res.Body)
	}

	if _, err := f.Fetch(context.Background(), srv.URL+"/gone"); err == nil {
		t.Error("Fetch() expected error for 404")
	}
}
