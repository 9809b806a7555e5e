package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"jobfeed/src/infrastructure/registry"
)

// threeItemFeed has three items, one lacking a link: the linkless item is
// dropped during extraction and never counts as fetched.
const threeItemFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Example Jobs</title>
    <item>
      <title>First Job</title>
      <link>https://example.com/jobs/1</link>
      <description>First description</description>
    </item>
    <item>
      <title>No Link Job</title>
      <description>Missing its link</description>
    </item>
    <item>
      <title>Second Job</title>
      <link>https://example.com/jobs/2</link>
      <description>Second description</description>
    </item>
  </channel>
</rss>`

func testEndpoint(url string) registry.Endpoint {
	return registry.Endpoint{
		Name:   "test-feed",
		URL:    url,
		Source: registry.SourceJobicy,
	}
}

func newTestFetcher(t *testing.T) *Fetcher {
	t.Helper()
	f, err := NewFetcher(0)
	if err != nil {
		t.Fatalf("NewFetcher() error: %v", err)
	}
	return f
}

func TestFetchNormalizesItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(threeItemFeed))
	}))
	defer srv.Close()

	result, err := newTestFetcher(t).Fetch(context.Background(), testEndpoint(srv.URL))
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}

	if len(result.Jobs) != 2 {
		t.Fatalf("got %d jobs, want 2", len(result.Jobs))
	}
	if result.Dropped != 1 {
		t.Errorf("Dropped = %d, want 1", result.Dropped)
	}
	if result.ChannelTitle != "Example Jobs" {
		t.Errorf("ChannelTitle = %q", result.ChannelTitle)
	}
	if result.Jobs[0].InternalID == result.Jobs[1].InternalID {
		t.Error("internal ids must be unique per fetch")
	}
}

func TestFetchSendsBrowserHeaders(t *testing.T) {
	var gotUA, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		w.Write([]byte(threeItemFeed))
	}))
	defer srv.Close()

	if _, err := newTestFetcher(t).Fetch(context.Background(), testEndpoint(srv.URL)); err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}

	if gotUA == "" || gotUA == "Go-http-client/1.1" {
		t.Errorf("User-Agent = %q, want a browser-like value", gotUA)
	}
	if gotAccept == "" {
		t.Error("Accept header not sent")
	}
}

func TestFetchServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestFetcher(t).Fetch(context.Background(), testEndpoint(srv.URL))

	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("Fetch() error = %v, want *FetchError", err)
	}
	if fe.Status != http.StatusInternalServerError {
		t.Errorf("Status = %d, want 500", fe.Status)
	}
	if !Retryable(err) {
		t.Error("fetch errors must be retryable")
	}
}

func TestFetchEmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	_, err := newTestFetcher(t).Fetch(context.Background(), testEndpoint(srv.URL))

	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("Fetch() error = %v, want *FetchError", err)
	}
}

func TestFetchNonXMLBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<!DOCTYPE html><html><body>maintenance page</body></html>"))
	}))
	defer srv.Close()

	_, err := newTestFetcher(t).Fetch(context.Background(), testEndpoint(srv.URL))

	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("Fetch() error = %v, want *FetchError", err)
	}
}

func TestFetchBrokenXML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<?xml version="1.0"?><rss><channel><item>`))
	}))
	defer srv.Close()

	_, err := newTestFetcher(t).Fetch(context.Background(), testEndpoint(srv.URL))

	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("Fetch() error = %v, want *ParseError", err)
	}
	if !Retryable(err) {
		t.Error("parse errors must be retryable")
	}
}

func TestFetchMissingChannel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<?xml version="1.0"?><rss version="2.0"></rss>`))
	}))
	defer srv.Close()

	_, err := newTestFetcher(t).Fetch(context.Background(), testEndpoint(srv.URL))

	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("Fetch() error = %v, want *ParseError", err)
	}
}
