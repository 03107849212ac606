// internal/workers/estimation/estimate-courier-demand/config.go
package estimatecourierdemand

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 10 * time.Second,
	}
}
