// Package search scrapes web search results to build grounding context
// for a chat turn. It soft-fails: a timeout, a block or an empty page all
// come back as zero results, never as an error.
package search

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

const (
	// The search endpoint blocks obvious bots; a crawler User-Agent gets
	// through where a blank one does not.
	userAgent = "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"

	maxResults = 5
)

type Result struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		logger:     logger,
	}
}

// Search returns up to 5 results for the query. An empty slice signals
// "no results" and is the only failure mode callers see.
func (c *Client) Search(ctx context.Context, query string) []Result {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/html/?q="+url.QueryEscape(query), nil)
	if err != nil {
		c.logger.Warn("failed to build search request", zap.Error(err))
		return nil
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("search timed out or blocked, falling back to general knowledge",
			zap.Error(err),
			zap.String("query", query))
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("search returned non-OK status",
			zap.Int("status", resp.StatusCode),
			zap.String("query", query))
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		c.logger.Warn("failed to parse search results", zap.Error(err))
		return nil
	}

	var results []Result
	doc.Find(".result__a").EachWithBreak(func(i int, sel *goquery.Selection) bool {
		if len(results) >= maxResults {
			return false
		}
		title := strings.TrimSpace(sel.Text())
		link, _ := sel.Attr("href")
		snippet := strings.TrimSpace(sel.Closest(".result").Find(".result__snippet").Text())
		if title != "" && link != "" {
			results = append(results, Result{Title: title, Link: link, Snippet: snippet})
		}
		return true
	})

	c.logger.Debug("search finished",
		zap.String("query", query),
		zap.Int("results", len(results)))
	return results
}
