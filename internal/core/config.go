package core

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	defaultPort             = 8080
	defaultDatabaseType     = "sqlite"
	defaultConnectionString = "bulas.db"
	defaultImageStoreType   = "filesystem"
	defaultImageDirectory   = "imagens"
	defaultRedisKeyPrefix   = "bula:imagem:"
)

type Database struct {
	Type             string `yaml:"type"`
	ConnectionString string `yaml:"connectionString"`
}

type RedisConfig struct {
	Address   string `yaml:"address"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"keyPrefix"`
}

// Images configures where the image sidecar of a bula is kept.
type Images struct {
	Type      string `yaml:"type"`
	Directory string `yaml:"directory"`
	// DeleteWithRecord removes the image when its bula is deleted.
	DeleteWithRecord bool        `yaml:"deleteWithRecord"`
	Redis            RedisConfig `yaml:"redis"`
}

type ServiceConfig struct {
	Port     int      `yaml:"port"`
	Database Database `yaml:"database"`
	Images   Images   `yaml:"images"`
}

// LoadConfig loads configuration from the specified YAML file
func LoadConfig(configPath string) (*ServiceConfig, error) {
	// Read the config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	// Parse YAML
	var config ServiceConfig
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	config.applyDefaults()

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", configPath, err)
	}

	return &config, nil
}

func (config *ServiceConfig) applyDefaults() {
	if config.Port == 0 {
		config.Port = defaultPort
	}
	if config.Database.Type == "" {
		config.Database.Type = defaultDatabaseType
	}
	if config.Database.ConnectionString == "" && config.Database.Type == defaultDatabaseType {
		config.Database.ConnectionString = defaultConnectionString
	}
	if config.Images.Type == "" {
		config.Images.Type = defaultImageStoreType
	}
	if config.Images.Directory == "" {
		config.Images.Directory = defaultImageDirectory
	}
	if config.Images.Redis.KeyPrefix == "" {
		config.Images.Redis.KeyPrefix = defaultRedisKeyPrefix
	}
}

// validate ensures the configured backends are supported
func (config *ServiceConfig) validate() error {
	if config.Port < 0 || config.Port > 65535 {
		return fmt.Errorf("port out of range: %d", config.Port)
	}

	switch config.Database.Type {
	case "sqlite", "mysql":
	default:
		return fmt.Errorf("unsupported database type: %s", config.Database.Type)
	}
	if config.Database.ConnectionString == "" {
		return fmt.Errorf("database connectionString must be set for %s", config.Database.Type)
	}

	switch config.Images.Type {
	case "filesystem":
	case "redis":
		if config.Images.Redis.Address == "" {
			return fmt.Errorf("images.redis.address must be set for the redis image store")
		}
	default:
		return fmt.Errorf("unsupported image store type: %s", config.Images.Type)
	}

	return nil
}
