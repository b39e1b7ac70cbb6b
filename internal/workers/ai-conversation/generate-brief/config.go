package generatebrief

import "time"

type Config struct {
	Timeout           time.Duration
	BriefTemperature  float64
	AnswerTemperature float64
	MaxOutputTokens   int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:           60 * time.Second,
		BriefTemperature:  0.2,
		AnswerTemperature: 0.5,
		MaxOutputTokens:   2048,
	}
}
