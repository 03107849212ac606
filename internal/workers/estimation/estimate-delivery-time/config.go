// internal/workers/estimation/estimate-delivery-time/config.go
package estimatedeliverytime

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 10 * time.Second,
	}
}
