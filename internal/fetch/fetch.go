// Package fetch retrieves product pages and classifies the result of each
// attempt into exactly one outcome the reconciliation loop can branch on.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/valeevte/PriceTrackerBot/internal/extract"
	"github.com/valeevte/PriceTrackerBot/internal/tracker"
)

// DefaultHeaders is a browser-like header set chosen to reduce anti-bot
// blocking. Sites change their detection heuristics, so the set is
// configurable and these are only the fallback values.
var DefaultHeaders = map[string]string{
	"User-Agent":      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
	"Accept-Language": "en-GB,en;q=0.9",
	"Sec-Fetch-Dest":  "document",
	"Sec-Fetch-Mode":  "navigate",
	"Sec-Fetch-Site":  "none",
	"Sec-Fetch-User":  "?1",
}

// Client issues page fetches with the configured header set.
type Client struct {
	http    *http.Client
	headers map[string]string
}

// NewClient builds a client. Nil or empty headers fall back to
// DefaultHeaders; a zero timeout falls back to 30s.
func NewClient(headers map[string]string, timeout time.Duration) *Client {
	if len(headers) == 0 {
		headers = DefaultHeaders
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		http:    &http.Client{Timeout: timeout},
		headers: headers,
	}
}

// Get fetches url and returns the status code and body.
func (c *Client) Get(ctx context.Context, url string) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, "", fmt.Errorf("build request: %w", err)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("get %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, "", fmt.Errorf("read body of %s: %w", url, err)
	}
	return resp.StatusCode, string(body), nil
}

// Kind is the classification of one fetch attempt.
type Kind int

const (
	// Success means a variant matching the tracked size was extracted and a
	// replacement item was built.
	Success Kind = iota
	// ItemRemoved means the product no longer exists at the URL: the page
	// was not found, or it carries no variant data at all.
	ItemRemoved
	// SizeRemoved means the product exists but the tracked size does not.
	SizeRemoved
	// TransientFailure covers network errors, unexpected statuses and
	// malformed pages that do not imply the product or size is gone.
	TransientFailure
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case ItemRemoved:
		return "item removed"
	case SizeRemoved:
		return "size removed"
	case TransientFailure:
		return "transient failure"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Outcome is the total classification of one fetch attempt: every attempt
// resolves to exactly one Outcome, nothing falls through as a raw error.
type Outcome struct {
	Kind  Kind
	Item  tracker.TrackedItem // set when Kind == Success
	Cause error               // set when Kind == TransientFailure
}

// FetchItem fetches the item's page and classifies the result. On success
// the returned snapshot keeps the item's identity (uuid, name, url, size)
// and carries a single-entry price history stamped with now; the failure
// counters start over from zero.
func (c *Client) FetchItem(ctx context.Context, item tracker.TrackedItem, now time.Time) Outcome {
	status, body, err := c.Get(ctx, item.URL)
	if err != nil {
		return Outcome{Kind: TransientFailure, Cause: err}
	}
	return Classify(item, status, body, now)
}

// Classify turns one (status, body) pair plus the tracked size into an
// Outcome. Split from FetchItem so the classification matrix is testable
// without a network.
func Classify(item tracker.TrackedItem, status int, body string, now time.Time) Outcome {
	if status == http.StatusNotFound || status == http.StatusGone {
		return Outcome{Kind: ItemRemoved}
	}
	if status < 200 || status >= 300 {
		return Outcome{Kind: TransientFailure, Cause: fmt.Errorf("unexpected status %d for %s", status, item.URL)}
	}

	variants := extract.Variants(body)
	if len(variants) == 0 {
		return Outcome{Kind: ItemRemoved}
	}

	variant, ok := extract.Find(variants, item.Size)
	if !ok {
		return Outcome{Kind: SizeRemoved}
	}

	price, err := extract.ActivePrice(variant.Offer)
	if err != nil {
		return Outcome{Kind: TransientFailure, Cause: fmt.Errorf("item %q: %w", item.Name, err)}
	}

	snapshot := tracker.TrackedItem{
		UUID:      item.UUID,
		Name:      item.Name,
		URL:       item.URL,
		Size:      item.Size,
		Price:     price,
		Quantity:  variant.Offer.Stock.Quantity,
		Available: variant.Offer.IsMeaningfulOffer,
		HasCoupon: extract.HasCoupon(item.URL, body),
		PriceHistory: []tracker.PriceHistoryEntry{
			{Price: price, Date: tracker.DateStamp(now)},
		},
	}
	return Outcome{Kind: Success, Item: snapshot}
}
