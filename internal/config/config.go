package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/go-yaml/yaml"
	"github.com/pkg/errors"

	"github.com/totegamma/starnet/internal/domain"
)

const defaultPipelineTimeout = 2 * time.Minute

type Config struct {
	NodeInfo NodeInfo `yaml:"nodeInfo"`
	Server   Server   `yaml:"server"`
	Starnet  Starnet  `yaml:"starnet"`
	Cloud    Cloud    `yaml:"cloud"`
}

type NodeInfo struct {
	FQDN       string `yaml:"fqdn"`
	PrivateKey string `yaml:"privatekey"`
}

type Server struct {
	Listen        string `yaml:"listen"`
	StoreDriver   string `yaml:"storeDriver"` // postgres, pebble
	PebblePath    string `yaml:"pebblePath"`
	PostgresDsn   string `yaml:"postgresDsn"`
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`
	RedisDB       int    `yaml:"redisDB"`
	MemcachedAddr string `yaml:"memcachedAddr"`
	EnableTrace   bool   `yaml:"enableTrace"`
	TraceEndpoint string `yaml:"traceEndpoint"`
	VerboseErrors bool   `yaml:"verboseErrors"`
}

type Starnet struct {
	PublishRoot     string `yaml:"publishRoot"`
	InstallRoot     string `yaml:"installRoot"`
	SourceRoot      string `yaml:"sourceRoot"`
	ArtifactRoot    string `yaml:"artifactRoot"`
	PipelineTimeout string `yaml:"pipelineTimeout"`
}

// Cloud enables artifact upload when Bucket is set.
type Cloud struct {
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
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
		return Config{}, errors.Wrap(err, "decode config")
	}

	config.applyDefaults()

	if _, err := config.PipelineTimeout(); err != nil {
		return Config{}, err
	}

	return config, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Listen == "" {
		c.Server.Listen = ":8000"
	}
	if c.Server.StoreDriver == "" {
		c.Server.StoreDriver = "pebble"
	}

	base := "/var/lib/starnet"
	if c.Server.PebblePath == "" {
		c.Server.PebblePath = filepath.Join(base, "store")
	}
	if c.Starnet.PublishRoot == "" {
		c.Starnet.PublishRoot = filepath.Join(base, "published")
	}
	if c.Starnet.InstallRoot == "" {
		c.Starnet.InstallRoot = filepath.Join(base, "installed")
	}
	if c.Starnet.SourceRoot == "" {
		c.Starnet.SourceRoot = filepath.Join(base, "sources")
	}
}

func (c Config) PipelineTimeout() (time.Duration, error) {
	if c.Starnet.PipelineTimeout == "" {
		return defaultPipelineTimeout, nil
	}
	d, err := time.ParseDuration(c.Starnet.PipelineTimeout)
	if err != nil || d <= 0 {
		return 0, errors.Errorf("invalid pipelineTimeout %q", c.Starnet.PipelineTimeout)
	}
	return d, nil
}

// Domain is the subset of the configuration handed to services.
func (c Config) Domain() domain.Config {
	timeout, _ := c.PipelineTimeout()
	return domain.Config{
		FQDN:            c.NodeInfo.FQDN,
		PrivateKey:      c.NodeInfo.PrivateKey,
		PublishRoot:     c.Starnet.PublishRoot,
		InstallRoot:     c.Starnet.InstallRoot,
		SourceRoot:      c.Starnet.SourceRoot,
		ArtifactRoot:    c.Starnet.ArtifactRoot,
		PipelineTimeout: timeout,
		VerboseErrors:   c.Server.VerboseErrors,
	}
}
