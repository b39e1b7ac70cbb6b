package classifytopic

import "time"

type Config struct {
	Timeout         time.Duration
	MaxOutputTokens int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:         10 * time.Second,
		MaxOutputTokens: 128,
	}
}
