package discoverbenchmark

import "subscription-intake/internal/models"

type Input struct {
	Tool string `json:"tool"`
}

type Output struct {
	Benchmark *models.Benchmark `json:"benchmark"`
}

// Source is one pricing search hit passed to the model.
type Source struct {
	URL       string  `json:"url"`
	Title     string  `json:"title"`
	Snippet   string  `json:"snippet"`
	Relevance float64 `json:"relevance"`
}

type discovered struct {
	Name     string             `json:"name"`
	Aliases  []string           `json:"aliases"`
	Plans    []string           `json:"plans"`
	PerSeat  *models.PriceRange `json:"perSeat"`
	Currency *string            `json:"currency"`
}
