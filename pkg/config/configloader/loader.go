// Package configloader loads layered configuration with koanf.
package configloader

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/basicflag"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Validator interface {
	Validate() error
}

const (
	defaultConfigFile = "config.yaml"
	defaultEnvFile    = ".env"
)

// Load builds the configuration from, in increasing priority:
// the YAML file, the .env file, <SERVICE_NAME>_ prefixed environment variables
// and the command-line flags in args (-config, -db).
func Load[T Validator](serviceName string, args []string) (T, error) {
	var cfg T
	k := koanf.New(".")

	fs, configFile, err := parseFlags(serviceName, args)
	if err != nil {
		return cfg, err
	}

	envPrefix := fmt.Sprintf("%s_", strings.ToUpper(serviceName))

	// 1. Load configuration from yaml file
	if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
		if !os.IsNotExist(err) {
			log.Printf("WARN: error loading YAML config file '%s': %v", configFile, err)
		}
	}

	// 2. Load environment variables from .env file
	envTransformer := func(key string) string {
		key = strings.ToLower(key)
		key = strings.TrimPrefix(key, strings.ToLower(envPrefix))
		return strings.ReplaceAll(key, "_", ".")
	}
	if envFileMap, err := godotenv.Read(defaultEnvFile); err == nil {
		envMap := make(map[string]any)
		for key, value := range envFileMap {
			envMap[envTransformer(key)] = value
		}
		if err := k.Load(confmap.Provider(envMap, "."), nil); err != nil {
			log.Printf("WARN: error loading .env config: %v", err)
		}
	} else if !os.IsNotExist(err) {
		log.Printf("WARN: error reading .env file: %v", err)
	}

	// 3. Load environment variables from the system
	if err := k.Load(env.Provider(envPrefix, ".", envTransformer), nil); err != nil {
		log.Printf("WARN: error loading system env vars: %v", err)
	}

	// 4. Command-line flags, the highest priority. Defaults never shadow keys set by lower layers.
	if err := k.Load(basicflag.ProviderWithValue(fs, ".", flagKey, k), nil); err != nil {
		return cfg, fmt.Errorf("error loading command-line flags: %w", err)
	}

	// 5. Unmarshal the configuration into the Config struct
	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, fmt.Errorf("error unmarshalling config: %w", err)
	}

	// 6. Validate the configuration
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// parseFlags parses args and returns the flag set together with the config file to read.
func parseFlags(serviceName string, args []string) (*flag.FlagSet, string, error) {
	fs := flag.NewFlagSet(serviceName, flag.ContinueOnError)
	configFile := fs.String("config", defaultConfigFile, "path to the YAML configuration file")
	fs.String("db", "", "storage location (SQLite file path or Postgres URL)")
	if err := fs.Parse(args); err != nil {
		return nil, "", fmt.Errorf("error parsing command-line flags: %w", err)
	}
	return fs, *configFile, nil
}

// flagKey maps a flag to its koanf key. Flags without a key, like -config, are skipped.
func flagKey(name, value string) (string, any) {
	switch name {
	case "db":
		return "database.url", value
	default:
		return "", nil
	}
}
