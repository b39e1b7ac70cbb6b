package discoverbenchmark

import (
	"time"

	"subscription-intake/internal/common/config"
)

type Config struct {
	Timeout          time.Duration
	MaxOutputTokens  int
	SearchAPIBaseURL string
	SearchAPIKey     string
	SearchEngineID   string
	MaxResults       int
	MinRelevance     float64
}

func LoadConfig(search config.SearchConfig) *Config {
	maxResults := search.MaxResults
	if maxResults == 0 {
		maxResults = 5
	}
	return &Config{
		Timeout:          30 * time.Second,
		MaxOutputTokens:  512,
		SearchAPIBaseURL: search.BaseURL,
		SearchAPIKey:     search.APIKey,
		SearchEngineID:   search.EngineID,
		MaxResults:       maxResults,
		MinRelevance:     1.0,
	}
}

func (c *Config) searchEnabled() bool {
	return c.SearchAPIBaseURL != "" && c.SearchAPIKey != ""
}
