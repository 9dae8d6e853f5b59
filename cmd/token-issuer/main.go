// Command token-issuer prints a signed API token for local development.
// The secret and lifetime come from the same configuration the server
// reads, so the token is accepted by a server started alongside it.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/phrazzld/omnimedia-api/internal/config"
	"github.com/phrazzld/omnimedia-api/internal/service/auth"
)

func main() {
	subject := flag.String("subject", "dev", "subject claim of the issued token")
	lifetime := flag.Duration("lifetime", 0, "token lifetime; defaults to auth.token_lifetime")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	token, err := issue(cfg.Auth, *subject, *lifetime)
	if err != nil {
		log.Fatalf("Failed to issue token: %v", err)
	}
	fmt.Println(token)
}

func issue(cfg config.AuthConfig, subject string, lifetime time.Duration) (string, error) {
	if cfg.JWTSecret == "" {
		return "", fmt.Errorf("auth.jwt_secret is not configured")
	}
	if lifetime <= 0 {
		lifetime = cfg.TokenLifetime
	}

	svc, err := auth.NewJWTService(cfg.JWTSecret, lifetime)
	if err != nil {
		return "", err
	}
	return svc.GenerateToken(context.Background(), subject)
}
