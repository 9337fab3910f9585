package serp

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/yolubot/boardnews/pkg/httpclient"
)

// NewsRSSEndpoint is the Google News RSS search endpoint.
const NewsRSSEndpoint = "https://news.google.com/rss/search"

// NewsRSS searches Google News through its keyless RSS endpoint. Results
// carry real publish dates, which makes it a useful last resort.
type NewsRSS struct {
	On       bool
	Endpoint string
	Client   *httpclient.Client
}

// NewNewsRSS returns the RSS provider, enabled only when on is true.
func NewNewsRSS(on bool, client *httpclient.Client) *NewsRSS {
	if client == nil {
		client = httpclient.New(httpclient.Config{})
	}
	return &NewsRSS{On: on, Endpoint: NewsRSSEndpoint, Client: client}
}

func (n *NewsRSS) Name() string { return "rss" }

func (n *NewsRSS) Enabled() bool { return n != nil && n.On }

func (n *NewsRSS) Search(ctx context.Context, query string, opts Options) ([]Hit, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.feedURL(query, opts), nil)
	if err != nil {
		return nil, classify(n.Name(), err)
	}
	req.Header.Set("Accept", "application/rss+xml, application/xml;q=0.9")

	resp, err := n.Client.Do(ctx, req)
	if err != nil {
		return nil, classify(n.Name(), err)
	}
	defer resp.Body.Close()

	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, &Error{Provider: n.Name(), Kind: KindMalformed, Err: err}
	}

	limit := clampResults(opts.MaxResults)
	hits := make([]Hit, 0, limit)
	for _, item := range feed.Items {
		if len(hits) >= limit {
			break
		}
		title, publisher := splitPublisher(item.Title)
		source := publisher
		if source == "" {
			source = ExtractDomain(item.Link)
		}
		hits = append(hits, Hit{
			Title:         title,
			URL:           strings.TrimSpace(item.Link),
			Snippet:       item.Description,
			PublishedDate: itemPublished(item),
			Source:        source,
			Provider:      n.Name(),
		})
	}
	return hits, nil
}

func (n *NewsRSS) feedURL(query string, opts Options) string {
	if w := rssWindow(opts.DateRestrict); w != "" {
		query += " when:" + w
	}

	params := url.Values{}
	params.Set("q", query)
	lang := opts.Language
	if lang == "" {
		lang = "en"
	}
	country := strings.ToUpper(opts.Country)
	if country == "" {
		country = "US"
	}
	params.Set("hl", lang)
	params.Set("gl", country)
	params.Set("ceid", country+":"+lang)
	return n.Endpoint + "?" + params.Encode()
}

func rssWindow(dateRestrict string) string {
	switch {
	case strings.HasPrefix(dateRestrict, "d"):
		return "1d"
	case strings.HasPrefix(dateRestrict, "w"):
		return "7d"
	case strings.HasPrefix(dateRestrict, "m"):
		return "30d"
	default:
		return ""
	}
}

// splitPublisher separates Google News "Headline - Publisher" titles.
func splitPublisher(title string) (string, string) {
	title = strings.TrimSpace(title)
	i := strings.LastIndex(title, " - ")
	if i <= 0 {
		return title, ""
	}
	return strings.TrimSpace(title[:i]), strings.TrimSpace(title[i+3:])
}

func itemPublished(item *gofeed.Item) string {
	switch {
	case item.PublishedParsed != nil:
		return item.PublishedParsed.UTC().Format(time.RFC3339)
	case item.UpdatedParsed != nil:
		return item.UpdatedParsed.UTC().Format(time.RFC3339)
	default:
		return item.Published
	}
}
