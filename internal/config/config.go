package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	// Cache selects the local durable store: "redis", "sqlite" or "memory".
	// An empty backend picks redis when an address is configured, else memory.
	Cache struct {
		Backend string `yaml:"backend"`
		Path    string `yaml:"path"`
	} `yaml:"cache"`
	Session struct {
		ViolationThreshold int     `yaml:"violationThreshold"`
		GraceWindow        string  `yaml:"graceWindow"`
		FullscreenWindow   string  `yaml:"fullscreenWindow"`
		PartialCredit      float64 `yaml:"partialCredit"`
		ReplicationTimeout string  `yaml:"replicationTimeout"`
	} `yaml:"session"`
	AMQP struct {
		URL        string `yaml:"url"`
		Exchange   string `yaml:"exchange"`
		RoutingKey string `yaml:"routingKey"`
	} `yaml:"amqp"`
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
