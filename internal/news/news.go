// Package news pulls goat farming headlines from RSS and Atom feeds.
package news

import (
	"context"
	"encoding/xml"
	"html"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/time/rate"
)

const (
	DefaultPerFeed      = 5
	DefaultSummaryChars = 200
	defaultUserAgent    = "goatfarm-news/1.0"
)

// Item is one headline.
type Item struct {
	Source    string `json:"source"`
	Title     string `json:"title"`
	Link      string `json:"link"`
	Summary   string `json:"summary"`
	Published string `json:"published,omitempty"`
}

// Options configures a Fetcher. Zero values select the defaults.
type Options struct {
	Feeds             []string
	PerFeed           int
	SummaryChars      int
	RequestsPerSecond float64
	Timeout           time.Duration
	HTTPClient        *http.Client
}

// Fetcher downloads the configured feeds concurrently under a shared rate
// limit.
type Fetcher struct {
	opts    Options
	client  *http.Client
	limiter *rate.Limiter
	log     *zap.Logger
}

func New(opts Options, log *zap.Logger) *Fetcher {
	if opts.PerFeed <= 0 {
		opts.PerFeed = DefaultPerFeed
	}
	if opts.SummaryChars <= 0 {
		opts.SummaryChars = DefaultSummaryChars
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Fetcher{opts: opts, client: client, limiter: rate.NewLimiter(limit, 1), log: log}
}

// Fetch returns the first items of every feed, in feed order. A feed that
// fails is logged and skipped; only context cancellation fails the call.
func (f *Fetcher) Fetch(ctx context.Context) ([]Item, error) {
	results := make([][]Item, len(f.opts.Feeds))

	g, gctx := errgroup.WithContext(ctx)
	for i, url := range f.opts.Feeds {
		g.Go(func() error {
			items, err := f.fetchFeed(gctx, url)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				f.log.Warn("news feed failed", zap.String("feed", url), zap.Error(err))
				return nil
			}
			results[i] = items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "news: fetch feeds")
	}

	items := []Item{}
	for _, feed := range results {
		items = append(items, feed...)
	}
	return items, nil
}

func (f *Fetcher) fetchFeed(ctx context.Context, url string) ([]Item, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "news: rate limit")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrap(err, "news: build request")
	}
	req.Header.Set("User-Agent", defaultUserAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "news: get %s", url)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("news: get %s: status %d", url, resp.StatusCode)
	}
	return Parse(resp.Body, url, f.opts.PerFeed, f.opts.SummaryChars)
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
}

type atomEntry struct {
	Title   string `xml:"title"`
	Summary string `xml:"summary"`
	Content string `xml:"content"`
	Updated string `xml:"updated"`
	Links   []struct {
		Href string `xml:"href,attr"`
		Rel  string `xml:"rel,attr"`
	} `xml:"link"`
}

// Parse decodes up to limit RSS <item> or Atom <entry> elements from r.
func Parse(r io.Reader, source string, limit, summaryChars int) ([]Item, error) {
	decoder := xml.NewDecoder(r)
	decoder.Strict = false
	decoder.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		enc, err := htmlindex.Get(charset)
		if err != nil {
			return nil, eris.Wrapf(err, "news: unsupported charset %q", charset)
		}
		return enc.NewDecoder().Reader(input), nil
	}

	items := []Item{}
	for limit <= 0 || len(items) < limit {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "news: read token")
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		switch se.Name.Local {
		case "item":
			var it rssItem
			if err := decoder.DecodeElement(&it, &se); err != nil {
				return nil, eris.Wrap(err, "news: decode item")
			}
			items = append(items, Item{
				Source:    source,
				Title:     clean(it.Title),
				Link:      strings.TrimSpace(it.Link),
				Summary:   Summarize(it.Description, summaryChars),
				Published: strings.TrimSpace(it.PubDate),
			})
		case "entry":
			var e atomEntry
			if err := decoder.DecodeElement(&e, &se); err != nil {
				return nil, eris.Wrap(err, "news: decode entry")
			}
			summary := e.Summary
			if summary == "" {
				summary = e.Content
			}
			items = append(items, Item{
				Source:    source,
				Title:     clean(e.Title),
				Link:      e.link(),
				Summary:   Summarize(summary, summaryChars),
				Published: strings.TrimSpace(e.Updated),
			})
		}
	}
	return items, nil
}

func (e atomEntry) link() string {
	for _, l := range e.Links {
		if l.Rel == "" || l.Rel == "alternate" {
			return strings.TrimSpace(l.Href)
		}
	}
	if len(e.Links) > 0 {
		return strings.TrimSpace(e.Links[0].Href)
	}
	return ""
}

var (
	tagPattern   = regexp.MustCompile(`<[^>]*>`)
	spacePattern = regexp.MustCompile(`\s+`)
)

func clean(s string) string {
	s = tagPattern.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	return strings.TrimSpace(spacePattern.ReplaceAllString(s, " "))
}

// Summarize strips markup and keeps the first n characters followed by
// "...". A feed item without a summary still renders as "...".
func Summarize(s string, n int) string {
	s = clean(s)
	if n > 0 && utf8.RuneCountInString(s) > n {
		s = string([]rune(s)[:n])
	}
	return s + "..."
}
