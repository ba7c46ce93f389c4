package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/tigerroll/matchday/pkg/batch/support/util/exception"
	"github.com/tigerroll/matchday/pkg/batch/support/util/logger"

	"go.uber.org/fx"
)

const moduleName = "config"

// ConfigParams defines the dependencies for NewConfigProvider.
type ConfigParams struct {
	fx.In
	EmbeddedConfig EmbeddedConfig
	EnvFilePath    string              `name:"envFilePath" optional:"true"`
	Expander       EnvironmentExpander `optional:"true"`
}

// loadConfig resolves the configuration in four layers, later layers winning:
// defaults, embedded YAML (after ${VAR} expansion), non-zero merge, environment variables.
func loadConfig(envFilePath string, embeddedConfig EmbeddedConfig, expander EnvironmentExpander) (*Config, error) {
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			logger.Warnf(".env file (%s) not found or could not be loaded: %v", envFilePath, err)
		}
	} else if err := godotenv.Load(); err != nil {
		logger.Debugf(".env file not found or could not be loaded: %v", err)
	}

	cfg := NewConfig()

	raw := []byte(embeddedConfig)
	if expander != nil {
		expanded, err := expander.Expand(raw)
		if err != nil {
			return nil, exception.NewBatchError(moduleName, "failed to expand environment placeholders", err, false, false)
		}
		raw = expanded
	}

	var yamlConfig Config
	if err := yaml.Unmarshal(raw, &yamlConfig); err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to unmarshal embedded config", err, false, false)
	}
	mergeConfig(cfg, &yamlConfig)

	if err := loadStructFromEnv(reflect.ValueOf(cfg).Elem(), ""); err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to load config from environment variables", err, false, false)
	}

	cfg.EmbeddedConfig = embeddedConfig
	return cfg, nil
}

// NewConfigProvider is the Fx provider for *Config. It also applies the configured log level.
func NewConfigProvider(params ConfigParams) (*Config, error) {
	expander := params.Expander
	if expander == nil {
		expander = NewOsEnvironmentExpander()
	}
	cfg, err := loadConfig(params.EnvFilePath, params.EmbeddedConfig, expander)
	if err != nil {
		return nil, err
	}

	logger.SetLogLevel(cfg.Matchday.System.Logging.Level)
	logger.Infof("Log level set to: %s", cfg.Matchday.System.Logging.Level)

	if err := cfg.Matchday.Collector.Validate(); err != nil {
		return nil, exception.NewBatchError(moduleName, "invalid collector configuration", err, false, false)
	}
	return cfg, nil
}

// LoadConfig loads configuration outside of Fx (CLI helpers and tests).
func LoadConfig(envFilePath string, embeddedConfig EmbeddedConfig) (*Config, error) {
	return loadConfig(envFilePath, embeddedConfig, NewOsEnvironmentExpander())
}

// Validate rejects settings that would make the orchestrator misbehave.
func (c CollectorConfig) Validate() error {
	switch {
	case c.Pacing.MinDelayMs < 0 || c.Pacing.MaxDelayMs < c.Pacing.MinDelayMs:
		return fmt.Errorf("pacing delay bounds are invalid: min=%dms max=%dms", c.Pacing.MinDelayMs, c.Pacing.MaxDelayMs)
	case c.Pacing.RotateIdentityEvery <= 0:
		return fmt.Errorf("pacing.rotate_identity_every must be positive, got %d", c.Pacing.RotateIdentityEvery)
	case len(c.Pacing.UserAgents) == 0:
		return fmt.Errorf("pacing.user_agents must not be empty")
	case c.Backoff.BaseDelayMs < 0 || c.Backoff.SoftLimitCeilingMs < 0 || c.Backoff.ErrorCeilingMs < 0:
		return fmt.Errorf("backoff delays must not be negative")
	case c.Backoff.SoftLimitMaxAttempts < 0 || c.Backoff.ErrorMaxAttempts < 0:
		return fmt.Errorf("backoff attempt budgets must not be negative")
	case c.Backoff.JitterFraction < 0 || c.Backoff.JitterFraction >= 1:
		return fmt.Errorf("backoff.jitter_fraction must be in [0,1), got %v", c.Backoff.JitterFraction)
	case c.Batch.Size <= 0:
		return fmt.Errorf("batch.size must be positive, got %d", c.Batch.Size)
	case c.Batch.InterBatchPauseMs < 0:
		return fmt.Errorf("batch.inter_batch_pause_ms must not be negative")
	case c.Batch.RequestTimeoutMs <= 0:
		return fmt.Errorf("batch.request_timeout_ms must be positive, got %d", c.Batch.RequestTimeoutMs)
	case c.Session.AbortFailureRate < 0 || c.Session.AbortFailureRate > 1:
		return fmt.Errorf("session.abort_failure_rate must be in [0,1], got %v", c.Session.AbortFailureRate)
	case c.Session.AbortConsecutiveBatches <= 0:
		return fmt.Errorf("session.abort_consecutive_batches must be positive, got %d", c.Session.AbortConsecutiveBatches)
	case c.Session.FailedItemRetryCap < 0:
		return fmt.Errorf("session.failed_item_retry_cap must not be negative")
	case c.Session.AcceptableFailureRate < 0 || c.Session.AcceptableFailureRate > 1:
		return fmt.Errorf("session.acceptable_failure_rate must be in [0,1], got %v", c.Session.AcceptableFailureRate)
	}
	return nil
}

// mergeConfig copies every non-zero value of source into dest, recursing into nested structs.
// Maps are merged key by key, slices replace the default when non-nil.
// A YAML value of 0 therefore keeps the default; use the environment override to force zero.
func mergeConfig(dest, source *Config) {
	mergeValue(reflect.ValueOf(dest).Elem(), reflect.ValueOf(source).Elem())
}

func mergeValue(dest, source reflect.Value) {
	switch source.Kind() {
	case reflect.Struct:
		for i := 0; i < source.NumField(); i++ {
			if !dest.Field(i).CanSet() {
				continue
			}
			mergeValue(dest.Field(i), source.Field(i))
		}
	case reflect.Map:
		if source.IsNil() {
			return
		}
		if dest.IsNil() {
			dest.Set(reflect.MakeMap(source.Type()))
		}
		iter := source.MapRange()
		for iter.Next() {
			dest.SetMapIndex(iter.Key(), iter.Value())
		}
	case reflect.Slice:
		if !source.IsNil() {
			dest.Set(source)
		}
	default:
		if !source.IsZero() {
			dest.Set(source)
		}
	}
}

// loadStructFromEnv overrides fields from environment variables named after their yaml tag path,
// e.g. matchday.collector.batch.size -> MATCHDAY_COLLECTOR_BATCH_SIZE.
func loadStructFromEnv(val reflect.Value, prefix string) error {
	typ := val.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)
		yamlTag := strings.Split(fieldType.Tag.Get("yaml"), ",")[0]
		if yamlTag == "" || yamlTag == "-" {
			continue
		}
		envVarName := strings.ToUpper(prefix + yamlTag)

		switch {
		case field.Kind() == reflect.Struct:
			if err := loadStructFromEnv(field, envVarName+"_"); err != nil {
				return err
			}
			continue
		case field.Kind() == reflect.Map && field.Type().Key().Kind() == reflect.String:
			if err := loadMapFromEnv(field, envVarName+"_"); err != nil {
				return err
			}
			continue
		}

		envValue, exists := os.LookupEnv(envVarName)
		if !exists {
			continue
		}
		if err := setField(field, envValue); err != nil {
			return fmt.Errorf("failed to set field '%s' from env var '%s': %w", fieldType.Name, envVarName, err)
		}
	}
	return nil
}

// loadMapFromEnv fills map[string]interface{} entries from variables such as
// MATCHDAY_DATABASE_METADATA_HOST=db -> AdapterConfigs["metadata"]["host"] = "db".
// Keys are lowercased; the first segment after the prefix is the map key.
func loadMapFromEnv(mapField reflect.Value, prefix string) error {
	if mapField.Type().Elem().Kind() != reflect.Interface {
		return nil
	}
	if mapField.IsNil() {
		mapField.Set(reflect.MakeMap(mapField.Type()))
	}

	for _, env := range os.Environ() {
		if !strings.HasPrefix(env, prefix) {
			continue
		}
		parts := strings.SplitN(strings.TrimPrefix(env, prefix), "=", 2)
		if len(parts) != 2 {
			continue
		}
		keyAndField := strings.SplitN(parts[0], "_", 2)
		if len(keyAndField) != 2 {
			continue
		}
		mapKey := strings.ToLower(keyAndField[0])
		fieldName := strings.ToLower(keyAndField[1])

		entry := map[string]interface{}{}
		if existing := mapField.MapIndex(reflect.ValueOf(mapKey)); existing.IsValid() {
			if m, ok := existing.Interface().(map[string]interface{}); ok {
				entry = m
			}
		}
		entry[fieldName] = coerceScalar(parts[1])
		mapField.SetMapIndex(reflect.ValueOf(mapKey), reflect.ValueOf(entry))
	}
	return nil
}

// coerceScalar turns "5432" into 5432 so mapstructure can decode ports from env overrides.
func coerceScalar(value string) interface{} {
	if i, err := strconv.Atoi(value); err == nil {
		return i
	}
	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}
	return value
}

// setField sets a scalar field from its string form. Slices take comma-separated values.
func setField(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(intValue)
	case reflect.Float64, reflect.Float32:
		floatValue, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(floatValue)
	case reflect.Bool:
		boolValue, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(boolValue)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return nil
		}
		parts := strings.Split(value, ",")
		out := reflect.MakeSlice(field.Type(), 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = reflect.Append(out, reflect.ValueOf(p))
			}
		}
		field.Set(out)
	}
	return nil
}
