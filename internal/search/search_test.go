package search

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const resultPage = `<html><body>
<div class="result">
  <a class="result__a" href="https://go.dev">The Go Programming Language</a>
  <a class="result__snippet">Build simple, secure, scalable systems with Go.</a>
</div>
<div class="result">
  <a class="result__a" href="https://pkg.go.dev">Go Packages</a>
  <a class="result__snippet">Package discovery site.</a>
</div>
<div class="result">
  <a class="result__a" href="">Missing link gets skipped</a>
</div>
</body></html>`

func TestSearchParsesResults(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/html/", r.URL.Path)
		assert.Equal(t, "golang", r.URL.Query().Get("q"))
		assert.Contains(t, r.Header.Get("User-Agent"), "Googlebot")
		fmt.Fprint(w, resultPage)
	}))
	defer ts.Close()

	client := NewClient(ts.URL, 5*time.Second, zap.NewNop())
	results := client.Search(context.Background(), "golang")

	require.Len(t, results, 2)
	assert.Equal(t, Result{
		Title:   "The Go Programming Language",
		Link:    "https://go.dev",
		Snippet: "Build simple, secure, scalable systems with Go.",
	}, results[0])
	assert.Equal(t, "Go Packages", results[1].Title)
}

func TestSearchCapsAtFiveResults(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body>")
		for i := 0; i < 8; i++ {
			fmt.Fprintf(w, `<div class="result"><a class="result__a" href="https://example.com/%d">r%d</a><a class="result__snippet">s%d</a></div>`, i, i, i)
		}
		fmt.Fprint(w, "</body></html>")
	}))
	defer ts.Close()

	client := NewClient(ts.URL, 5*time.Second, zap.NewNop())
	results := client.Search(context.Background(), "many")
	assert.Len(t, results, 5)
}

func TestSearchNoResultsIsNotAnError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body>nothing here</body></html>")
	}))
	defer ts.Close()

	client := NewClient(ts.URL, 5*time.Second, zap.NewNop())
	assert.Empty(t, client.Search(context.Background(), "asdkjasdkj123"))
}

func TestSearchTimeoutSoftFails(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer ts.Close()

	client := NewClient(ts.URL, 50*time.Millisecond, zap.NewNop())
	assert.Empty(t, client.Search(context.Background(), "slow"))
}

func TestSearchBlockedSoftFails(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "blocked", http.StatusForbidden)
	}))
	defer ts.Close()

	client := NewClient(ts.URL, 5*time.Second, zap.NewNop())
	assert.Empty(t, client.Search(context.Background(), "blocked"))
}
