package serp

import (
	"context"
	"net/http"
	"strings"

	"github.com/yolubot/boardnews/pkg/httpclient"
)

// SerperEndpoint is the Serper.dev web search endpoint.
const SerperEndpoint = "https://google.serper.dev/search"

// Serper queries the Serper.dev Google search API.
type Serper struct {
	APIKey   string
	Endpoint string
	Client   *httpclient.Client
}

// NewSerper returns a Serper provider; it is disabled when apiKey is empty.
func NewSerper(apiKey string, client *httpclient.Client) *Serper {
	if client == nil {
		client = httpclient.New(httpclient.Config{})
	}
	return &Serper{APIKey: strings.TrimSpace(apiKey), Endpoint: SerperEndpoint, Client: client}
}

func (s *Serper) Name() string { return "serper" }

func (s *Serper) Enabled() bool { return s != nil && s.APIKey != "" }

type serperRequest struct {
	Q   string `json:"q"`
	Num int    `json:"num"`
	HL  string `json:"hl,omitempty"`
	GL  string `json:"gl,omitempty"`
	TBS string `json:"tbs,omitempty"`
}

type serperResponse struct {
	Organic []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
		Date    string `json:"date"`
	} `json:"organic"`
}

func (s *Serper) Search(ctx context.Context, query string, opts Options) ([]Hit, error) {
	payload := serperRequest{
		Q:   query,
		Num: clampResults(opts.MaxResults),
		HL:  opts.Language,
		GL:  opts.Country,
		TBS: serperTBS(opts.DateRestrict),
	}

	header := http.Header{}
	header.Set("X-API-KEY", s.APIKey)

	var resp serperResponse
	if err := s.Client.PostJSON(ctx, s.Endpoint, header, payload, &resp); err != nil {
		return nil, classify(s.Name(), err)
	}

	hits := make([]Hit, 0, len(resp.Organic))
	for _, item := range resp.Organic {
		hits = append(hits, Hit{
			Title:         item.Title,
			URL:           item.Link,
			Snippet:       item.Snippet,
			PublishedDate: item.Date,
			Source:        ExtractDomain(item.Link),
			Provider:      s.Name(),
		})
	}
	return hits, nil
}

// serperTBS converts a Google dateRestrict value into Serper's tbs filter.
func serperTBS(dateRestrict string) string {
	switch {
	case dateRestrict == "":
		return ""
	case strings.HasPrefix(dateRestrict, "d"):
		return "qdr:d"
	case strings.HasPrefix(dateRestrict, "w"):
		return "qdr:w"
	case strings.HasPrefix(dateRestrict, "m"):
		return "qdr:m"
	case strings.HasPrefix(dateRestrict, "y"):
		return "qdr:y"
	default:
		return ""
	}
}
