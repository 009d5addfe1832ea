package perception

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/dyatlov/go-opengraph/opengraph"
)

// EvidenceConfig bounds how aggressively the evidence fetcher hits the
// network when resolving a citation for the receipts/high-intensity
// gates or gathering websearch-assisted background for a proposal.
type EvidenceConfig struct {
	FetchTimeout    time.Duration
	MaxContentChars int
	MaxPageBytes    int64
	CacheTTL        time.Duration
}

func DefaultEvidenceConfig() EvidenceConfig {
	return EvidenceConfig{
		FetchTimeout:    10 * time.Second,
		MaxContentChars: 500,
		MaxPageBytes:    5 * 1024 * 1024,
		CacheTTL:        30 * time.Minute,
	}
}

// Evidence is a resolved citation: its canonical host plus a short
// summary usable as generator context.
type Evidence struct {
	URL         string
	CanonicalURL string
	Host        string
	Title       string
	Description string
}

type evidenceCacheEntry struct {
	ev        *Evidence
	expiresAt time.Time
}

// EvidenceFetcher resolves URLs the receipts gate needs to validate and
// produces short summaries the generator can ground a proposal in.
type EvidenceFetcher struct {
	cfg        EvidenceConfig
	httpClient *http.Client

	mu    sync.RWMutex
	cache map[string]evidenceCacheEntry
}

func NewEvidenceFetcher(cfg EvidenceConfig) *EvidenceFetcher {
	return &EvidenceFetcher{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.FetchTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
		cache: make(map[string]evidenceCacheEntry),
	}
}

// ResolveHost is the receipts-gate resolveHost callback (§4.4): it
// fetches the URL (cached) and returns the canonical host actually
// served, which may differ from the URL's literal host after redirects.
func (f *EvidenceFetcher) ResolveHost(ctx context.Context, rawURL string) (string, error) {
	ev, err := f.Fetch(ctx, rawURL)
	if err != nil {
		return "", err
	}
	return ev.Host, nil
}

// Fetch retrieves and summarizes one URL, following the teacher's
// OpenGraph-first-then-goquery-fallback parsing strategy.
func (f *EvidenceFetcher) Fetch(ctx context.Context, rawURL string) (*Evidence, error) {
	if cached := f.fromCache(rawURL); cached != nil {
		return cached, nil
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme: %s", parsed.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; evidence-fetcher/1.0)")
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("http %d fetching %s", resp.StatusCode, rawURL)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(contentType, "text/html") && !strings.Contains(contentType, "application/xhtml") {
		return nil, fmt.Errorf("unsupported content type %q for %s", contentType, rawURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", rawURL, err)
	}

	og := opengraph.NewOpenGraph()
	_ = og.ProcessHTML(strings.NewReader(string(body)))

	if og.Title == "" || og.Description == "" {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body))); err == nil {
			if og.Title == "" {
				og.Title = extractTitle(doc)
			}
			if og.Description == "" {
				og.Description = extractDescription(doc)
			}
		}
	}

	host := resp.Request.URL.Hostname()
	ev := &Evidence{
		URL:          rawURL,
		CanonicalURL: firstNonEmpty(og.URL, rawURL),
		Host:         host,
		Title:        summarizeText(og.Title, 30, 150),
		Description:  summarizeText(og.Description, 50, f.cfg.MaxContentChars),
	}
	f.toCache(rawURL, ev)
	return ev, nil
}

func (f *EvidenceFetcher) fromCache(rawURL string) *Evidence {
	f.mu.RLock()
	defer f.mu.RUnlock()
	entry, ok := f.cache[rawURL]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil
	}
	return entry.ev
}

func (f *EvidenceFetcher) toCache(rawURL string, ev *Evidence) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cache[rawURL] = evidenceCacheEntry{ev: ev, expiresAt: time.Now().Add(f.cfg.CacheTTL)}
}

func extractTitle(doc *goquery.Document) string {
	if t := strings.TrimSpace(doc.Find("title").First().Text()); t != "" {
		return t
	}
	if h1 := strings.TrimSpace(doc.Find("h1").First().Text()); h1 != "" {
		return h1
	}
	return ""
}

func extractDescription(doc *goquery.Document) string {
	if desc, ok := doc.Find("meta[name='description']").First().Attr("content"); ok && desc != "" {
		return strings.TrimSpace(desc)
	}
	if p := strings.TrimSpace(doc.Find("p").First().Text()); p != "" {
		return p
	}
	return ""
}

var whitespaceRe = regexp.MustCompile(`\s+`)

func summarizeText(text string, maxWords, maxLength int) string {
	text = whitespaceRe.ReplaceAllString(strings.TrimSpace(text), " ")
	if text == "" {
		return ""
	}
	words := strings.Fields(text)
	if len(words) > maxWords {
		text = strings.Join(words[:maxWords], " ")
	}
	if len(text) > maxLength {
		text = text[:maxLength]
		if last := strings.LastIndex(text, " "); last > maxLength/2 {
			text = text[:last]
		}
		text += "..."
	}
	return text
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
