package configuration

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"

	"playchat/internal/service"
)

type ServerConfig struct {
	AppPort      int      `json:"app_port"`
	SocketPort   int      `json:"socket_port"`
	AllowOrigins []string `json:"allow_origins"`
}

type MongoConfig struct {
	URI      string `json:"uri"`
	Database string `json:"database"`
}

type AuthConfig struct {
	TokenTTLMinutes int `json:"token_ttl_minutes"`
}

type Config struct {
	Server ServerConfig       `json:"server"`
	Mongo  MongoConfig        `json:"mongo"`
	Auth   AuthConfig         `json:"auth"`
	SMTP   service.SMTPConfig `json:"smtp"`

	Secrets Secrets `json:"-"`
}

// Secrets are environment-only; they never live in the config file.
type Secrets struct {
	MongoURI     string `envconfig:"PLAYCHAT_MONGO_URI"`
	TokenSecret  string `envconfig:"PLAYCHAT_TOKEN_SECRET" required:"true"`
	MessageKey   string `envconfig:"PLAYCHAT_MESSAGE_KEY" required:"true"` // base64, 32 bytes decoded
	SMTPPassword string `envconfig:"PLAYCHAT_SMTP_PASSWORD"`
}

// LoadConfig reads the JSON config file and overlays environment secrets.
func LoadConfig(configPath string) (*Config, error) {
	file, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	if err := envconfig.Process("", &config.Secrets); err != nil {
		return nil, fmt.Errorf("failed to read environment secrets: %w", err)
	}

	if config.Secrets.MongoURI != "" {
		config.Mongo.URI = config.Secrets.MongoURI
	}
	if config.Secrets.SMTPPassword != "" {
		config.SMTP.Password = config.Secrets.SMTPPassword
	}
	if config.Auth.TokenTTLMinutes <= 0 {
		config.Auth.TokenTTLMinutes = 24 * 60
	}

	return &config, nil
}
