package main

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const defaultConfigFile = "fedplan.yaml"

// Config is the content of fedplan.yaml. Command line flags override it.
type Config struct {
	Schema struct {
		Root string `yaml:"root"`
	} `yaml:"schema"`
	Server struct {
		Addr         string        `yaml:"addr"`
		Pretty       bool          `yaml:"pretty"`
		Timeout      time.Duration `yaml:"timeout"`
		MaxBodyBytes int64         `yaml:"maxBodyBytes"`
		CORS         []string      `yaml:"cors"`
		PlanText     bool          `yaml:"planText"`
		GraphiQL     bool          `yaml:"graphiql"`
	} `yaml:"server"`
	Cache struct {
		// Size is the number of plans kept. 0 disables the cache.
		Size int `yaml:"size"`
	} `yaml:"cache"`
	Introspection bool `yaml:"introspection"`
	Otel          struct {
		Endpoint string `yaml:"endpoint"`
		Service  string `yaml:"service"`
	} `yaml:"otel"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

func defaultConfig() *Config {
	c := &Config{Introspection: true}
	c.Schema.Root = "."
	c.Server.Addr = ":8080"
	c.Server.Timeout = 10 * time.Second
	c.Server.MaxBodyBytes = 1 << 20
	c.Server.GraphiQL = true
	c.Cache.Size = 1024
	c.Otel.Service = "fedplan"
	c.Log.Level = "info"
	return c
}

// loadConfig reads path over the defaults. A missing file is an error only
// when the path was given explicitly.
func loadConfig(path string, explicit bool) (*Config, error) {
	c := defaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return c, nil
		}
		return nil, errors.Wrap(err, "read config")
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}
	return c, nil
}
