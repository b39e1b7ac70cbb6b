package extractlineitems

import "subscription-intake/internal/models"

type Input struct {
	Message       string            `json:"message"`
	Stage         models.Stage      `json:"stage"`
	Known         []models.LineItem `json:"known,omitempty"`
	MissingPlans  []string          `json:"missingPlans,omitempty"`
	MissingPrices []string          `json:"missingPrices,omitempty"`
}

type Output struct {
	LineItems []models.LineItem `json:"lineItems"`
	Count     int               `json:"count"`
}

// extraction is the document the model returns.
type extraction struct {
	Items []models.LineItem `json:"items"`
}
