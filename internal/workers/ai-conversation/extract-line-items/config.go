package extractlineitems

import "time"

type Config struct {
	Timeout         time.Duration
	Temperature     float64
	MaxOutputTokens int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:         30 * time.Second,
		Temperature:     0,
		MaxOutputTokens: 1024,
	}
}
