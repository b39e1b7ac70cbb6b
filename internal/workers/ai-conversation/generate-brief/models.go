package generatebrief

import "subscription-intake/internal/models"

const (
	ModeBrief  = "brief"
	ModeAnswer = "answer"
)

type Input struct {
	Mode     string            `json:"mode"` // "brief" (default) or "answer"
	Items    []models.LineItem `json:"items"`
	Question string            `json:"question,omitempty"`
	Brief    *models.Brief     `json:"brief,omitempty"`
}

type Output struct {
	Brief  *models.Brief `json:"brief,omitempty"`
	Answer string        `json:"answer,omitempty"`
}

// toolContext is what the prompt states about one line item.
type toolContext struct {
	Item      models.LineItem
	PerSeat   *models.PriceRange
	Plans     []string
	ActualPer *float64
	Status    string
}
