// pkg/api/types.go
package api

import (
	"github.com/valpere/ProxyRotexter/internal/config"
	"github.com/valpere/ProxyRotexter/internal/proxy"
)

// Re-export configuration types from internal packages for public API
type Config = config.Config
type RotatorConfig = config.RotatorConfig
type RetryPolicyConfig = config.RetryPolicyConfig
type CircuitBreakerConfig = config.CircuitBreakerConfig
type StrategyOptionsConfig = config.StrategyOptionsConfig
type TransportConfig = config.TransportConfig
type ProxyConfig = config.ProxyConfig
type SourcesConfig = config.SourcesConfig
type SourceConfig = config.SourceConfig
type StoreConfig = config.StoreConfig
type MonitoringConfig = config.MonitoringConfig
type ValidationError = config.ValidationError

// Re-export the request/response surface of the rotation engine
type Request = proxy.Request
type RequestOptions = proxy.RequestOptions
type Response = proxy.Response
type AsyncResult = proxy.AsyncResult
type PoolStats = proxy.PoolStats
type ProxyStat = proxy.ProxyStat

// LoadConfig loads and validates a YAML configuration file.
func LoadConfig(filename string) (*Config, error) {
	return config.LoadFromFile(filename)
}

// LoadConfigFromBytes loads and validates YAML configuration bytes.
func LoadConfigFromBytes(data []byte) (*Config, error) {
	return config.LoadFromBytes(data)
}
