package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/kbukum/reportflow/logger"
)

// DefaultEnvPrefix marks environment variables that override configuration,
// for example REPORTFLOW_EXECUTOR_TIMEOUT=10s.
const DefaultEnvPrefix = "REPORTFLOW"

// FileSystem abstracts the file access of the loader.
type FileSystem interface {
	Exists(path string) bool
	LoadEnv(path string) error
}

// OSFileSystem implements FileSystem on the real file system.
type OSFileSystem struct{}

func (OSFileSystem) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// LoadEnv loads a .env file without overriding variables already set.
func (OSFileSystem) LoadEnv(path string) error {
	return godotenv.Load(path)
}

// LoaderConfig holds the loader's dependencies and file overrides.
type LoaderConfig struct {
	FileSystem FileSystem
	ConfigFile string
	EnvFile    string
	EnvPrefix  string
	SearchDirs []string
}

// LoaderOption is a functional option for Load.
type LoaderOption func(*LoaderConfig)

// WithFileSystem sets a custom file system.
func WithFileSystem(fs FileSystem) LoaderOption {
	return func(lc *LoaderConfig) { lc.FileSystem = fs }
}

// WithConfigFile sets an explicit config file path.
func WithConfigFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.ConfigFile = path }
}

// WithEnvFile sets an explicit .env file path.
func WithEnvFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.EnvFile = path }
}

// WithEnvPrefix replaces DefaultEnvPrefix.
func WithEnvPrefix(prefix string) LoaderOption {
	return func(lc *LoaderConfig) { lc.EnvPrefix = prefix }
}

// WithSearchDirs replaces the directories searched for config and .env files.
func WithSearchDirs(dirs ...string) LoaderOption {
	return func(lc *LoaderConfig) { lc.SearchDirs = dirs }
}

// ResolvedFiles contains the config and env file paths chosen by the loader.
type ResolvedFiles struct {
	ConfigFile string
	EnvFile    string
}

// Resolve picks the files Load reads for service. Explicit paths win;
// otherwise the search dirs (default ".", "./config", "./cmd/<service>")
// are tried for <service>.yaml, <service>.yml, config.yaml and config.yml,
// then .env.<service> and .env.
func Resolve(service string, lc LoaderConfig) ResolvedFiles {
	if lc.FileSystem == nil {
		lc.FileSystem = OSFileSystem{}
	}
	dirs := lc.SearchDirs
	if len(dirs) == 0 {
		dirs = []string{".", "./config", filepath.Join(".", "cmd", service)}
	}
	files := ResolvedFiles{ConfigFile: lc.ConfigFile, EnvFile: lc.EnvFile}
	if files.ConfigFile == "" {
		files.ConfigFile = firstExisting(lc.FileSystem, dirs, service+".yaml", service+".yml", "config.yaml", "config.yml")
	}
	if files.EnvFile == "" {
		files.EnvFile = firstExisting(lc.FileSystem, dirs, ".env."+service, ".env")
	}
	return files
}

func firstExisting(fs FileSystem, dirs []string, names ...string) string {
	for _, name := range names {
		for _, dir := range dirs {
			if path := filepath.Join(dir, name); fs.Exists(path) {
				return path
			}
		}
	}
	return ""
}

// Load reads configuration for service into cfg. Sources in increasing
// precedence: the config file, then environment variables carrying the env
// prefix, including those loaded from the .env file.
func Load(service string, cfg any, opts ...LoaderOption) error {
	lc := LoaderConfig{FileSystem: OSFileSystem{}, EnvPrefix: DefaultEnvPrefix}
	for _, opt := range opts {
		opt(&lc)
	}
	files := Resolve(service, lc)

	v := viper.New()
	if files.ConfigFile != "" && lc.FileSystem.Exists(files.ConfigFile) {
		v.SetConfigFile(files.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config file %s: %w", files.ConfigFile, err)
		}
	}
	if files.EnvFile != "" && lc.FileSystem.Exists(files.EnvFile) {
		if err := lc.FileSystem.LoadEnv(files.EnvFile); err != nil {
			logger.Warn("failed to load env file", logger.Fields("path", files.EnvFile, logger.FieldError, err.Error()))
		}
	}
	bindEnv(v, lc.EnvPrefix, os.Environ())

	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("unmarshal config for %s: %w", service, err)
	}
	return nil
}

// LoadConfig loads the reportflow Config for service, applies defaults and
// validates it.
func LoadConfig(service string, opts ...LoaderOption) (*Config, error) {
	var cfg Config
	if err := Load(service, &cfg, opts...); err != nil {
		return nil, err
	}
	if cfg.Name == "" {
		cfg.Name = service
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

// bindEnv sets every prefixed variable under each config key it may
// address, since an underscore in the name can be either a nesting level or
// part of a key.
func bindEnv(v *viper.Viper, prefix string, environ []string) {
	prefix = strings.ToUpper(prefix) + "_"
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(strings.ToUpper(key), prefix) {
			continue
		}
		for _, variant := range envKeyVariants(key[len(prefix):]) {
			v.Set(variant, value)
		}
	}
}

// envKeyVariants maps EXECUTOR_MAX_IN_FLIGHT to executor_max_in_flight,
// executor.max_in_flight, executor.max.in_flight and executor.max.in.flight.
func envKeyVariants(key string) []string {
	parts := strings.Split(strings.ToLower(key), "_")
	variants := []string{strings.Join(parts, "_")}
	for i := 1; i < len(parts); i++ {
		variants = append(variants, strings.Join(parts[:i], ".")+"."+strings.Join(parts[i:], "_"))
	}
	return variants
}
