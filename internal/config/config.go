// Package config builds the single configuration struct the rest of
// the application receives by reference. There is no ambient global;
// Load is called once at startup.
package config

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// OAuthClient is one provider's client credential pair.
type OAuthClient struct {
	ClientID     string
	ClientSecret string
}

func (c OAuthClient) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

type Config struct {
	Addr    string
	BaseURL string

	MongoURI string
	MongoDB  string

	// SessionSecret signs the auth token cookie. When unset a random
	// per-process key is generated, so restarting the server invalidates
	// every outstanding session. That is the intended behavior.
	SessionSecret string

	Google   OAuthClient
	Facebook OAuthClient

	DevMode bool
}

// Load reads a .env file if one exists, then the WW_* environment.
func Load() (*Config, error) {
	// Same convenience as dotenv: a missing file is not an error.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("WW")
	v.AutomaticEnv()

	v.SetDefault("addr", ":3000")
	v.SetDefault("base_url", "http://localhost:3000")
	v.SetDefault("mongo_uri", "mongodb://localhost:27017")
	v.SetDefault("mongo_db", "whisperwall")

	cfg := &Config{
		Addr:          v.GetString("addr"),
		BaseURL:       v.GetString("base_url"),
		MongoURI:      v.GetString("mongo_uri"),
		MongoDB:       v.GetString("mongo_db"),
		SessionSecret: v.GetString("session_secret"),
		Google: OAuthClient{
			ClientID:     v.GetString("google_client_id"),
			ClientSecret: v.GetString("google_client_secret"),
		},
		Facebook: OAuthClient{
			ClientID:     v.GetString("facebook_client_id"),
			ClientSecret: v.GetString("facebook_client_secret"),
		},
		DevMode: v.GetBool("dev_mode"),
	}

	if cfg.SessionSecret == "" {
		cfg.SessionSecret = randomSecret()
	}
	return cfg, nil
}

func randomSecret() string {
	b := make([]byte, 32)
	rand.Read(b)
	return hex.EncodeToString(b)
}
