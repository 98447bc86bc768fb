// Package config holds the configuration used when composing a server actor
// with its message box.
package config

const (
	DefaultCapacity       = 16
	DefaultMaxConcurrency = 4
)

// ServerConfig sizes a server box: the capacity of its shared request queue
// and the bound on concurrently in-flight requests.
//
// MaxConcurrency only matters under the concurrent strategy, and is clamped
// to at least 1 at the point of use.
type ServerConfig struct {
	Capacity       int
	MaxConcurrency int
}

func NewServerConfig() ServerConfig {
	return ServerConfig{
		Capacity:       DefaultCapacity,
		MaxConcurrency: DefaultMaxConcurrency,
	}
}

func (c ServerConfig) WithCapacity(capacity int) ServerConfig {
	c.Capacity = capacity
	return c
}

func (c ServerConfig) WithMaxConcurrency(maxConcurrency int) ServerConfig {
	c.MaxConcurrency = maxConcurrency
	return c
}
