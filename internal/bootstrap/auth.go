package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/target/hpcjobs/config"
	"github.com/target/hpcjobs/internal/adapters/devauth"
	"github.com/target/hpcjobs/internal/adapters/oidc"
	"github.com/target/hpcjobs/internal/ports"
)

// AuthConfig contains configuration for the request authenticator.
type AuthConfig struct {
	Auth   config.AuthConfig
	Logger *slog.Logger
}

// BuildAuthenticator creates the authenticator for the configured auth mode.
// OIDC discovery runs here, so an unreachable issuer fails startup.
//
//nolint:ireturn // the HTTP layer only depends on the port.
func BuildAuthenticator(ctx context.Context, cfg AuthConfig) (ports.Authenticator, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Auth.Mode {
	case config.AuthModeMock:
		logger.Warn("mock auth enabled; X-User-ID header is trusted", "default_user", cfg.Auth.DevAuth.UserID)
		return devauth.NewProvider(devauth.Config{DefaultUserID: cfg.Auth.DevAuth.UserID}), nil

	case config.AuthModeOIDC:
		oidcCfg := cfg.Auth.OIDC
		if oidcCfg.IssuerURL == "" || oidcCfg.ClientID == "" {
			return nil, errors.New("oidc auth requires issuer URL and client ID")
		}
		prov, err := oidc.NewProvider(ctx, oidc.ProviderConfig{
			IssuerURL: oidcCfg.IssuerURL,
			ClientID:  oidcCfg.ClientID,
			UserClaim: oidcCfg.UserClaim,
		})
		if err != nil {
			return nil, fmt.Errorf("create oidc provider: %w", err)
		}
		logger.Info("oidc auth enabled", "issuer", oidcCfg.IssuerURL, "user_claim", oidcCfg.UserClaim)
		return prov, nil

	default:
		return nil, fmt.Errorf("unsupported auth mode %q", cfg.Auth.Mode)
	}
}
