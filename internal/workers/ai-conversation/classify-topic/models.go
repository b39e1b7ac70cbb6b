package classifytopic

type Input struct {
	Message string `json:"message"`
}

type Output struct {
	OnTopic bool   `json:"onTopic"`
	Reason  string `json:"reason,omitempty"`
}
