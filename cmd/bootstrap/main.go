package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/vilonda/portal/config"
	"github.com/vilonda/portal/internal/app"
	"github.com/vilonda/portal/internal/service"
)

func main() {
	adminEmail := flag.String("admin-email", "", "Email address for the bootstrap admin user")
	adminPassword := flag.String("admin-password", "", "Password for the bootstrap admin user")
	adminFirstName := flag.String("admin-first-name", "", "First name for the bootstrap admin user")
	adminLastName := flag.String("admin-last-name", "", "Last name for the bootstrap admin user")
	forcePassword := flag.Bool("force-password", false, "Force reset of the admin password even if unchanged")
	flag.Parse()

	cfg, err := config.LoadForTools()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	input := &service.BootstrapAdminInput{
		AdminEmail:         choose(*adminEmail, cfg.BootstrapAdminEmail),
		AdminPassword:      choose(*adminPassword, cfg.BootstrapAdminPassword),
		AdminFirstName:     choose(*adminFirstName, cfg.BootstrapAdminFirstName),
		AdminLastName:      choose(*adminLastName, cfg.BootstrapAdminLastName),
		ForcePasswordReset: *forcePassword,
	}

	a, err := app.Initialize(cfg)
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	user, err := a.Services.Auth.BootstrapAdmin(ctx, input)
	cancel()
	if err != nil {
		_ = a.Close()
		log.Fatalf("bootstrap failed: %v", err)
	}
	if err := a.Close(); err != nil {
		log.Printf("warning: failed to close database cleanly: %v", err)
	}

	fmt.Printf("Bootstrap successful. Admin user %s (%s) ready.\n", user.Email, valueOrFallback(user.FullName(), "n/a"))
}

func choose(value string, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return strings.TrimSpace(fallback)
}

func valueOrFallback(value string, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}
