package config

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// Loader assembles the configuration from defaults and environment
// variables, unmarshals it, and validates the result.
type Loader struct {
	koanf     *koanf.Koanf
	validator *validator.Validate
}

func NewLoader() *Loader {
	return &Loader{
		koanf:     koanf.New("."),
		validator: validator.New(),
	}
}

// Load builds the configuration with precedence defaults < environment.
func (l *Loader) Load(_ context.Context) (*Config, error) {
	if err := l.loadDefaults(); err != nil {
		return nil, err
	}
	if err := l.loadEnvironment(); err != nil {
		return nil, err
	}
	return l.unmarshalAndValidate()
}

func (l *Loader) loadDefaults() error {
	if err := l.koanf.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return fmt.Errorf("failed to load defaults: %w", err)
	}
	return nil
}

func (l *Loader) loadEnvironment() error {
	envToPath := envMappings()
	err := l.koanf.Load(env.Provider(".", env.Opt{
		Prefix: "",
		TransformFunc: func(key, value string) (string, any) {
			if configPath, ok := envToPath[key]; ok {
				return configPath, value
			}
			// Unmapped variables are not configuration; drop them so
			// unrelated process environment cannot leak into the tree.
			return "", nil
		},
	}), nil)
	if err != nil {
		return fmt.Errorf("failed to load environment variables: %w", err)
	}
	return nil
}

func (l *Loader) unmarshalAndValidate() (*Config, error) {
	var config Config
	if err := l.koanf.UnmarshalWithConf("", &config, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &config,
			TagName:          "koanf",
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
				sensitiveStringDecodeHook,
			),
		},
	}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	normalize(&config)
	if err := l.Validate(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks struct tags plus the constraints tags cannot express.
func (l *Loader) Validate(config *Config) error {
	if config == nil {
		return fmt.Errorf("configuration cannot be nil")
	}
	if err := l.validator.Struct(config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return validateCustom(config)
}

func validateCustom(config *Config) error {
	if config.MCP.Headers != "" {
		if _, err := config.MCP.HeadersMap(); err != nil {
			return err
		}
	}
	if prefix := strings.TrimSpace(config.Server.PathPrefix); prefix != "" && prefix != "/" {
		if strings.ContainsAny(prefix, " \t") {
			return fmt.Errorf("PATH_PREFIX must not contain whitespace: %q", prefix)
		}
	}
	return nil
}

// normalize trims list entries the comma-split hook leaves padded and drops
// the empties an env value like "a, ,b," produces.
func normalize(config *Config) {
	origins := config.Server.CORSOrigins[:0]
	for _, origin := range config.Server.CORSOrigins {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			origins = append(origins, origin)
		}
	}
	config.Server.CORSOrigins = origins
}

// sensitiveStringDecodeHook converts plain strings into SensitiveString.
func sensitiveStringDecodeHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(SensitiveString("")) {
		return data, nil
	}
	switch v := data.(type) {
	case string:
		return SensitiveString(v), nil
	case []byte:
		return SensitiveString(v), nil
	default:
		return data, nil
	}
}

var (
	cachedMappings map[string]string
	mappingsOnce   sync.Once
)

// envMappings returns the environment-variable to koanf-path table derived
// from the `env` struct tags on Config.
func envMappings() map[string]string {
	mappingsOnce.Do(func() {
		cachedMappings = make(map[string]string)
		collectMappings(reflect.TypeOf(Config{}), "", cachedMappings)
	})
	return cachedMappings
}

func collectMappings(t reflect.Type, prefix string, out map[string]string) {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		koanfTag := field.Tag.Get("koanf")
		if koanfTag == "" || koanfTag == "-" {
			continue
		}
		path := koanfTag
		if prefix != "" {
			path = prefix + "." + koanfTag
		}
		if envTag := field.Tag.Get("env"); envTag != "" {
			out[envTag] = path
		}
		fieldType := field.Type
		if fieldType.Kind() == reflect.Pointer {
			fieldType = fieldType.Elem()
		}
		if fieldType.Kind() == reflect.Struct {
			collectMappings(fieldType, path, out)
		}
	}
}
