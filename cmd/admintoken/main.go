// Command admintoken mints a bearer token for the rate limiter admin API
// using the same configuration as the server.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/aman-churiwal/rate-limiter/internal/config"
	"github.com/aman-churiwal/rate-limiter/internal/service"
	"github.com/joho/godotenv"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the config file")
	subject := flag.String("subject", "", "who the token is issued to (required)")
	expiry := flag.Duration("expiry", 0, "token lifetime, overrides auth.token_expiry")
	flag.Parse()

	_ = godotenv.Load()

	if *subject == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Auth.JWTSecret == "" {
		log.Fatal("auth.jwt_secret (or JWT_SECRET) must be set")
	}
	if *expiry > 0 {
		cfg.Auth.TokenExpiry = *expiry
	}

	auth, err := service.NewAuthService(cfg.Auth)
	if err != nil {
		log.Fatalf("Invalid auth configuration: %v", err)
	}

	token, expiresAt, err := auth.IssueToken(*subject)
	if err != nil {
		log.Fatalf("Failed to issue token: %v", err)
	}

	fmt.Fprintf(os.Stderr, "expires at %s\n", expiresAt.Format(time.RFC3339))
	fmt.Println(token)
}
