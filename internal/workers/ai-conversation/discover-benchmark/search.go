package discoverbenchmark

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"subscription-intake/internal/benchmarks"
)

var ErrSearchTimeout = errors.New("PRICING_SEARCH_TIMEOUT")

type searchResponse struct {
	Items []struct {
		Link    string `json:"link"`
		Title   string `json:"title"`
		Snippet string `json:"snippet"`
		Mime    string `json:"mime"`
	} `json:"items"`
}

// searchPricing asks the custom search API for the tool's pricing pages.
func (h *Handler) searchPricing(ctx context.Context, tool string) ([]Source, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.searchURL(tool), nil)
	if err != nil {
		return nil, err
	}

	resp, err := h.client.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, ErrSearchTimeout
		}
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search API returned %d", resp.StatusCode)
	}

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	return h.rankResults(tool, body), nil
}

func (h *Handler) searchURL(tool string) string {
	u, _ := url.Parse(h.config.SearchAPIBaseURL)
	params := url.Values{}
	params.Add("key", h.config.SearchAPIKey)
	if h.config.SearchEngineID != "" {
		params.Add("cx", h.config.SearchEngineID)
	}
	params.Add("q", strings.TrimSpace(tool)+" pricing plans per user")
	params.Add("num", fmt.Sprintf("%d", h.config.MaxResults))
	u.RawQuery = params.Encode()
	return u.String()
}

// rankResults drops non-HTML and duplicate hits and favours the vendor's own pricing page.
func (h *Handler) rankResults(tool string, body searchResponse) []Source {
	key := benchmarks.Key(tool)
	seen := make(map[string]bool)
	var sources []Source

	for _, item := range body.Items {
		if item.Mime != "" && !strings.Contains(item.Mime, "html") {
			continue
		}
		if item.Link == "" || seen[item.Link] {
			continue
		}
		seen[item.Link] = true

		relevance := 1.0
		link := strings.ToLower(item.Link)
		if key != "" && strings.Contains(benchmarks.Key(hostOf(link)), key) {
			relevance += 0.3
		}
		if strings.Contains(link, "pricing") || strings.Contains(strings.ToLower(item.Title), "pricing") {
			relevance += 0.2
		}
		if relevance < h.config.MinRelevance {
			continue
		}
		sources = append(sources, Source{
			URL:       item.Link,
			Title:     item.Title,
			Snippet:   item.Snippet,
			Relevance: relevance,
		})
	}

	sort.SliceStable(sources, func(i, j int) bool {
		return sources[i].Relevance > sources[j].Relevance
	})
	if len(sources) > h.config.MaxResults {
		sources = sources[:h.config.MaxResults]
	}
	return sources
}

func hostOf(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
