package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"

	"webintel-server/internal/model"
)

const userAgent = "Mozilla/5.0 (compatible; webintel/1.0)"

// Spec describes what to fetch: a single page or a bounded breadth-first
// crawl around it.
type Spec struct {
	URL            string
	Crawl          bool
	MaxDepth       int
	MaxPages       int
	SameDomainOnly bool
}

// Page is one fetched document reduced to its visible text.
type Page struct {
	URL  string
	Text string
}

// Fetcher downloads pages and extracts their readable text with goquery.
type Fetcher struct {
	client *http.Client
}

// New builds a fetcher with the given per-request timeout.
func New(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Fetcher{
		client: &http.Client{Timeout: timeout},
	}
}

// Fetch downloads the target page, and when crawling is enabled, follows
// in-page links breadth-first up to MaxDepth/MaxPages.
func (f *Fetcher) Fetch(ctx context.Context, spec Spec) ([]Page, error) {
	root, err := url.Parse(spec.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid url %q: %v", model.ErrFetchFailed, spec.URL, err)
	}

	maxPages := spec.MaxPages
	if !spec.Crawl || maxPages <= 0 {
		maxPages = 1
	}

	type queued struct {
		url   string
		depth int
	}

	visited := map[string]bool{}
	queue := []queued{{url: spec.URL, depth: 0}}
	var pages []Page

	for len(queue) > 0 && len(pages) < maxPages {
		if err := ctx.Err(); err != nil {
			return pages, err
		}
		next := queue[0]
		queue = queue[1:]

		norm := normalizeURL(next.url)
		if visited[norm] {
			continue
		}
		visited[norm] = true

		doc, err := f.fetchDoc(ctx, next.url)
		if err != nil {
			if len(pages) == 0 && next.depth == 0 {
				// The root page is mandatory; link failures are tolerated.
				return nil, err
			}
			log.Ctx(ctx).Warn().Err(err).Str("url", next.url).Msg("Skipping unreachable linked page")
			continue
		}

		text := ExtractText(doc)
		if strings.TrimSpace(text) != "" {
			pages = append(pages, Page{URL: next.url, Text: text})
		}

		if spec.Crawl && next.depth < spec.MaxDepth {
			for _, link := range extractLinks(doc, root, spec.SameDomainOnly) {
				if !visited[normalizeURL(link)] {
					queue = append(queue, queued{url: link, depth: next.depth + 1})
				}
			}
		}
	}

	if len(pages) == 0 {
		return nil, fmt.Errorf("%w: no readable text at %s", model.ErrFetchFailed, spec.URL)
	}
	return pages, nil
}

func (f *Fetcher) fetchDoc(ctx context.Context, rawURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrFetchFailed, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned status %d", model.ErrFetchFailed, rawURL, resp.StatusCode)
	}

	ct := resp.Header.Get("Content-Type")
	if ct != "" && !strings.Contains(ct, "html") && !strings.Contains(ct, "xml") {
		return nil, fmt.Errorf("%w: %s has unsupported content type %q", model.ErrFetchFailed, rawURL, ct)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrFetchFailed, err)
	}
	return doc, nil
}

// ExtractText pulls the visible text out of a document, dropping scripts,
// styles and navigation chrome.
func ExtractText(doc *goquery.Document) string {
	doc.Find("script, style, noscript, nav, footer, header, aside, iframe, svg").Remove()

	var sb strings.Builder
	doc.Find("h1, h2, h3, h4, h5, h6, p, li, td, th, dt, dd, blockquote, figcaption").Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		if text != "" {
			sb.WriteString(text)
			sb.WriteString("\n")
		}
	})

	// Pages built entirely from divs fall back to the body text.
	if sb.Len() == 0 {
		return strings.TrimSpace(doc.Find("body").Text())
	}
	return strings.TrimSpace(sb.String())
}

func extractLinks(doc *goquery.Document, root *url.URL, sameDomainOnly bool) []string {
	var links []string
	seen := map[string]bool{}

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") ||
			strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "javascript:") ||
			strings.HasPrefix(href, "tel:") {
			return
		}
		u, err := url.Parse(href)
		if err != nil {
			return
		}
		resolved := root.ResolveReference(u)
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			return
		}
		if sameDomainOnly && !strings.EqualFold(resolved.Hostname(), root.Hostname()) {
			return
		}
		resolved.Fragment = ""
		link := resolved.String()
		if !seen[link] {
			seen[link] = true
			links = append(links, link)
		}
	})
	return links
}

func normalizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.Fragment = ""
	return strings.TrimSuffix(u.String(), "/")
}
