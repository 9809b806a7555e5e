package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"

	"jobfeed/src/infrastructure/registry"
	"jobfeed/src/log"
)

// DefaultTimeout is the per-attempt HTTP timeout. Feed providers can be
// slow, so it is deliberately generous.
const DefaultTimeout = 30 * time.Second

// Result holds the normalized records of one fetch plus the count of items
// dropped during item-level extraction.
type Result struct {
	ChannelTitle string
	Jobs         []Job
	Dropped      int
}

// Fetcher retrieves a feed endpoint over HTTP and normalizes its items.
type Fetcher struct {
	client    *http.Client
	snowflake *snowflake.Node
}

func NewFetcher(timeout time.Duration) (*Fetcher, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	node, err := snowflake.NewNode(3) // Node number 3 for fetched items
	if err != nil {
		return nil, fmt.Errorf("failed to create snowflake node: %v", err)
	}

	return &Fetcher{
		client:    &http.Client{Timeout: timeout},
		snowflake: node,
	}, nil
}

// Fetch performs the HTTP GET and returns the normalized records. Errors
// are classified as *FetchError or *ParseError; a single item's
// normalization failure never aborts the rest of the fetch.
func (f *Fetcher) Fetch(ctx context.Context, endpoint registry.Endpoint) (*Result, error) {
	body, err := f.get(ctx, endpoint.URL)
	if err != nil {
		return nil, err
	}

	ch, err := parseDocument(body)
	if err != nil {
		return nil, &ParseError{URL: endpoint.URL, Err: err}
	}

	result := &Result{ChannelTitle: ch.Title}
	for _, it := range ch.Items {
		job, ok := normalizeItem(it, endpoint, f.snowflake.Generate().Int64())
		if !ok {
			result.Dropped++
			log.Info("skipping feed item missing title or link",
				"endpoint", endpoint.Name)
			continue
		}
		result.Jobs = append(result.Jobs, job)
	}

	log.Info("fetched feed",
		"endpoint", endpoint.Name,
		"items", len(ch.Items),
		"jobs", len(result.Jobs),
		"dropped", result.Dropped,
	)

	return result, nil
}

func (f *Fetcher) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}

	// Some providers reject bare clients, so pretend to be a browser.
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36")
	req.Header.Set("Accept", "application/xml, text/xml, application/rss+xml, */*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: url, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}

	if len(body) == 0 {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("empty response body")}
	}

	text := string(body)
	if !strings.Contains(text, "<rss") && !strings.Contains(text, "<?xml") {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("response is not XML")}
	}

	return body, nil
}
