package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

const defaultEnvFile = ".env"

var (
	mu       sync.Mutex
	envFile  string
	exported = map[string]bool{}
)

// SetEnvFile points every later New call at path instead of ./.env.
// ENV_FILE in the environment does the same when no path is set.
func SetEnvFile(path string) {
	mu.Lock()
	defer mu.Unlock()
	envFile = strings.TrimSpace(path)
}

func MustNew[T any](prefix string) *T {
	conf, err := New[T](prefix)
	if err != nil {
		panic(err)
	}
	return conf
}

// New fills T from the environment under prefix. The env file is exported
// once per process; variables already set in the environment win over it.
func New[T any](prefix string) (*T, error) {
	if err := loadEnvFile(); err != nil {
		return nil, err
	}

	var conf T
	if err := envconfig.Process(prefix, &conf); err != nil {
		return nil, err
	}
	return &conf, nil
}

func loadEnvFile() error {
	mu.Lock()
	defer mu.Unlock()

	path, explicit := envFile, true
	if path == "" {
		path = strings.TrimSpace(os.Getenv("ENV_FILE"))
	}
	if path == "" {
		path, explicit = defaultEnvFile, false
	}
	if exported[path] {
		return nil
	}

	info, err := os.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist) && !explicit:
		return nil
	case err != nil:
		return fmt.Errorf("failed to load env file: %w", err)
	case info.IsDir():
		if explicit {
			return fmt.Errorf("failed to load env file: %s is a directory", path)
		}
		return nil
	}

	if err := export(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	exported[path] = true
	return nil
}

func export(path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return err
	}

	for k, val := range v.AllSettings() {
		key := strings.ToUpper(k)
		if _, set := os.LookupEnv(key); set {
			continue
		}
		if err := os.Setenv(key, fmt.Sprint(val)); err != nil {
			return err
		}
	}
	return nil
}
