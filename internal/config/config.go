// Package config provides configuration utilities for the application.
package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/harperclay/expensify/internal/common"
)

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string

	// BaseURL is the externally visible origin used to build the OAuth
	// redirect URL, e.g. "https://expenses.example.com".
	BaseURL string
}

// MongoConfig configures the document store connection.
type MongoConfig struct {
	URI      string
	Database string
}

// GoogleConfig configures the Google identity gateway.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
}

// LoadServerConfig loads HTTP server configuration from Viper.
func LoadServerConfig() ServerConfig {
	cfg := ServerConfig{
		Addr:    ":8080",
		BaseURL: "http://localhost:8080",
	}
	if v := viper.GetString("server.addr"); v != "" {
		cfg.Addr = v
	}
	if v := viper.GetString("server.base_url"); v != "" {
		cfg.BaseURL = v
	}
	return cfg
}

// LoadMongoConfig loads document store configuration from Viper and
// environment variables. Precedence:
//  1. Viper configuration (config file or EXPENSIFY_ env vars)
//  2. Direct environment variables (MONGODB_*)
//  3. Defaults
func LoadMongoConfig() (MongoConfig, error) {
	cfg := MongoConfig{
		URI:      "mongodb://localhost:27017",
		Database: "expensify",
	}

	if v := viper.GetString("mongo.uri"); v != "" {
		cfg.URI = v
	} else if v := os.Getenv("MONGODB_URI"); v != "" {
		cfg.URI = v
	}
	if v := viper.GetString("mongo.database"); v != "" {
		cfg.Database = v
	} else if v := os.Getenv("MONGODB_DATABASE"); v != "" {
		cfg.Database = v
	}

	return cfg, nil
}

// LoadGoogleConfig loads Google OAuth configuration. Both the client id and
// secret are required to run the real identity gateway.
func LoadGoogleConfig() (GoogleConfig, error) {
	cfg := GoogleConfig{
		ClientID:     viper.GetString("google.client_id"),
		ClientSecret: viper.GetString("google.client_secret"),
	}

	if cfg.ClientID == "" {
		cfg.ClientID = os.Getenv("GOOGLE_CLIENT_ID")
	}
	if cfg.ClientSecret == "" {
		cfg.ClientSecret = os.Getenv("GOOGLE_CLIENT_SECRET")
	}

	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return cfg, fmt.Errorf("%w: google.client_id and google.client_secret are required (or GOOGLE_CLIENT_ID / GOOGLE_CLIENT_SECRET)", common.ErrMissingConfig)
	}

	return cfg, nil
}
