package config

import (
	"os"

	"github.com/go-yaml/yaml"
)

type Config struct {
	Host      Host      `yaml:"host"`
	Server    Server    `yaml:"server"`
	Discovery Discovery `yaml:"discovery"`
}

// Host describes the remote protocol host this client talks to.
type Host struct {
	ServiceURL  string `yaml:"serviceUrl"`
	Codec       string `yaml:"codec"` // marker, typed
	SessionPath string `yaml:"sessionPath"`
}

type Server struct {
	Listen        string `yaml:"listen"`
	RedisAddr     string `yaml:"redisAddr"`
	RedisDB       int    `yaml:"redisDB"`
	MemcachedAddr string `yaml:"memcachedAddr"`
	EnableTrace   bool   `yaml:"enableTrace"`
	TraceEndpoint string `yaml:"traceEndpoint"`
}

type Discovery struct {
	TimelineLimit int `yaml:"timelineLimit"`
	ScanLimit     int `yaml:"scanLimit"`
	Concurrency   int `yaml:"concurrency"`
	PageSize      int `yaml:"pageSize"`
}

func Load(path string) (Config, error) {

	file, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer file.Close()

	var config Config
	err = yaml.NewDecoder(file).Decode(&config)
	if err != nil {
		return Config{}, err
	}

	if config.Host.ServiceURL == "" {
		config.Host.ServiceURL = "https://bsky.social"
	}
	if config.Host.Codec == "" {
		config.Host.Codec = "marker"
	}
	if config.Server.Listen == "" {
		config.Server.Listen = ":8000"
	}

	return config, nil
}
