package serp

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/yolubot/boardnews/pkg/httpclient"
)

// GoogleCSEEndpoint is the Google Custom Search JSON API endpoint.
const GoogleCSEEndpoint = "https://www.googleapis.com/customsearch/v1"

// GoogleCSE queries a Google Programmable Search Engine.
type GoogleCSE struct {
	APIKey   string
	CX       string
	Endpoint string
	Client   *httpclient.Client
}

// NewGoogleCSE returns a Custom Search provider; it needs both an API key and
// a search engine ID to be enabled.
func NewGoogleCSE(apiKey, cx string, client *httpclient.Client) *GoogleCSE {
	if client == nil {
		client = httpclient.New(httpclient.Config{})
	}
	return &GoogleCSE{
		APIKey:   strings.TrimSpace(apiKey),
		CX:       strings.TrimSpace(cx),
		Endpoint: GoogleCSEEndpoint,
		Client:   client,
	}
}

func (g *GoogleCSE) Name() string { return "google" }

func (g *GoogleCSE) Enabled() bool { return g != nil && g.APIKey != "" && g.CX != "" }

type googleResponse struct {
	Items []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
		Pagemap struct {
			Metatags []map[string]string `json:"metatags"`
		} `json:"pagemap"`
	} `json:"items"`
}

func (g *GoogleCSE) Search(ctx context.Context, query string, opts Options) ([]Hit, error) {
	params := url.Values{}
	params.Set("key", g.APIKey)
	params.Set("cx", g.CX)
	params.Set("q", query)
	params.Set("num", strconv.Itoa(clampResults(opts.MaxResults)))
	if opts.Language != "" {
		params.Set("hl", opts.Language)
	}
	if opts.Country != "" {
		params.Set("gl", opts.Country)
	}
	if opts.DateRestrict != "" {
		params.Set("dateRestrict", opts.DateRestrict)
	}

	var resp googleResponse
	if err := g.Client.GetJSON(ctx, g.Endpoint+"?"+params.Encode(), nil, &resp); err != nil {
		return nil, classify(g.Name(), err)
	}

	hits := make([]Hit, 0, len(resp.Items))
	for _, item := range resp.Items {
		hits = append(hits, Hit{
			Title:         item.Title,
			URL:           item.Link,
			Snippet:       item.Snippet,
			PublishedDate: publishedFromMetatags(item.Pagemap.Metatags),
			Source:        ExtractDomain(item.Link),
			Provider:      g.Name(),
		})
	}
	return hits, nil
}

var metatagDateKeys = []string{"article:published_time", "og:updated_time", "date", "pubdate"}

func publishedFromMetatags(tags []map[string]string) string {
	for _, key := range metatagDateKeys {
		for _, m := range tags {
			if v := strings.TrimSpace(m[key]); v != "" {
				return v
			}
		}
	}
	return ""
}
