package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	tenantline "github.com/tenantline/tenantline-go-sdk"
)

// resolveConfig loads the TOML config and applies .env / environment
// overrides (TENANTLINE_TOKEN, TENANTLINE_BASE_URL, TENANTLINE_SENDER_ID,
// TENANTLINE_ROLE).
func resolveConfig() (*Config, error) {
	// A missing .env file is not an error.
	_ = godotenv.Load()

	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if v := os.Getenv("TENANTLINE_TOKEN"); v != "" {
		cfg.Auth.Token = v
	}
	if v := os.Getenv("TENANTLINE_BASE_URL"); v != "" {
		cfg.Default.BaseURL = v
	}
	if v := os.Getenv("TENANTLINE_SENDER_ID"); v != "" {
		cfg.Auth.SenderID = v
	}
	if v := os.Getenv("TENANTLINE_ROLE"); v != "" {
		cfg.Auth.Role = v
	}
	return cfg, nil
}

// getClient creates an authenticated REST client from the resolved config.
func getClient() (*tenantline.Client, *Config, error) {
	cfg, err := resolveConfig()
	if err != nil {
		return nil, nil, err
	}
	if cfg.Auth.Token == "" {
		return nil, nil, fmt.Errorf("no token configured; run 'tenantline init <token>' first")
	}

	var opts []tenantline.ClientOption
	if cfg.Default.BaseURL != "" {
		opts = append(opts, tenantline.WithBaseURL(cfg.Default.BaseURL))
	}
	return tenantline.NewClient(cfg.Auth.Token, opts...), cfg, nil
}

// getSession builds the full engine: REST client, shared socket and session.
func getSession() (*tenantline.Session, *tenantline.Socket, error) {
	api, cfg, err := getClient()
	if err != nil {
		return nil, nil, err
	}

	role := tenantline.SenderRole(cfg.Auth.Role)
	if role == "" {
		role = tenantline.RoleTenant
	}

	sock := tenantline.NewSocket(tenantline.SocketConfig{
		BaseURL: api.BaseURL(),
		Token:   cfg.Auth.Token,
	})
	sess := tenantline.NewSession(api, sock, tenantline.Identity{
		SenderID: cfg.Auth.SenderID,
		Role:     role,
	})
	return sess, sock, nil
}
