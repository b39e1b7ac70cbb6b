package emailbrief

import (
	"fmt"
	"time"
)

type Config struct {
	Timeout     time.Duration
	DefaultFrom string
	Subject     string
}

func DefaultConfig() *Config {
	return &Config{
		Timeout:     15 * time.Second,
		DefaultFrom: "briefs@example.com",
		Subject:     "Your SaaS negotiation brief",
	}
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.DefaultFrom == "" {
		return fmt.Errorf("default_from email is required")
	}
	return nil
}
