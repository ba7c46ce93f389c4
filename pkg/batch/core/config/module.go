package config

import "go.uber.org/fx"

// NewLoggingConfigProvider exposes only the logging section.
func NewLoggingConfigProvider(cfg *Config) *LoggingConfig {
	return &cfg.Matchday.System.Logging
}

// NewCollectorConfigProvider exposes the orchestrator settings as a value,
// so each session works on its own copy.
func NewCollectorConfigProvider(cfg *Config) CollectorConfig {
	return cfg.Matchday.Collector
}

// Module provides the configuration and its narrowed views.
var Module = fx.Options(
	fx.Provide(func() EnvironmentExpander {
		return NewOsEnvironmentExpander()
	}),
	fx.Provide(NewConfigProvider),
	fx.Provide(NewLoggingConfigProvider),
	fx.Provide(NewCollectorConfigProvider),
)
