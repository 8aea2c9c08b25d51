package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	vault "github.com/hashicorp/vault/api"
	"github.com/joho/godotenv"
)

// PortalConfig holds the runtime configuration of the portal API and its tools.
type PortalConfig struct {
	ServiceName    string `env:"SERVICE_NAME" envDefault:"vilonda-portal"`
	ServiceVersion string `env:"SERVICE_VERSION" envDefault:"dev"`
	Environment    string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	PublicBaseURL   string        `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:3000"`

	// Database
	DBDriver          string        `env:"DB_DRIVER" envDefault:"sqlite"`
	DBDSN             string        `env:"DB_DSN" envDefault:"file:portal.db?_foreign_keys=on"`
	DBMaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"10"`
	DBMaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	DBConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"30m"`
	DBLogQueries      bool          `env:"DB_LOG_QUERIES" envDefault:"false"`

	// Auth specific settings
	JWTSecret         string        `env:"JWT_SECRET"`
	TokenExpiration   time.Duration `env:"TOKEN_EXPIRATION" envDefault:"15m"`
	RefreshExpiration time.Duration `env:"REFRESH_EXPIRATION" envDefault:"168h"`
	PasswordMinLength int           `env:"PASSWORD_MIN_LENGTH" envDefault:"8"`
	MaxLoginAttempts  int           `env:"MAX_LOGIN_ATTEMPTS" envDefault:"5"`
	LockoutDuration   time.Duration `env:"LOCKOUT_DURATION" envDefault:"15m"`
	BCryptCost        int           `env:"BCRYPT_COST" envDefault:"10"`
	InviteTTL         time.Duration `env:"INVITE_TTL" envDefault:"336h"`
	VerificationTTL   time.Duration `env:"VERIFICATION_TTL" envDefault:"30m"`

	// Brevo transactional email
	BrevoBaseURL              string        `env:"BREVO_BASE_URL" envDefault:"https://api.brevo.com/v3"`
	BrevoAPIKey               string        `env:"BREVO_API_KEY"`
	BrevoTimeout              time.Duration `env:"BREVO_TIMEOUT" envDefault:"10s"`
	BrevoTemplateBrokerInvite int64         `env:"BREVO_TEMPLATE_BROKER_INVITE" envDefault:"1"`
	BrevoTemplateVerification int64         `env:"BREVO_TEMPLATE_VERIFICATION" envDefault:"2"`
	BrevoTemplateCompany      int64         `env:"BREVO_TEMPLATE_COMPANY_WELCOME" envDefault:"3"`
	BrevoTemplateVehicleReq   int64         `env:"BREVO_TEMPLATE_VEHICLE_REQUEST" envDefault:"4"`

	// Secrets
	VaultAddr       string `env:"VAULT_ADDR"`
	VaultToken      string `env:"VAULT_TOKEN"`
	VaultSecretPath string `env:"VAULT_SECRET_PATH" envDefault:"secret/data/vilonda-portal"`

	// Bootstrap settings
	BootstrapAdminEmail     string `env:"BOOTSTRAP_ADMIN_EMAIL" envDefault:"admin@vilonda.local"`
	BootstrapAdminPassword  string `env:"BOOTSTRAP_ADMIN_PASSWORD" envDefault:"ChangeMe123!"`
	BootstrapAdminFirstName string `env:"BOOTSTRAP_ADMIN_FIRST_NAME" envDefault:"System"`
	BootstrapAdminLastName  string `env:"BOOTSTRAP_ADMIN_LAST_NAME" envDefault:"Administrator"`
}

// Load loads the configuration from environment variables
func Load() (*PortalConfig, error) {
	cfg, err := load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadForTools loads the configuration for maintenance commands, which never issue
// tokens and so do not need JWT_SECRET.
func LoadForTools() (*PortalConfig, error) {
	cfg, err := load()
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func load() (*PortalConfig, error) {
	envFile := strings.TrimSpace(os.Getenv("ENV_FILE"))
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	cfg := &PortalConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	// Load secrets from Vault if configured
	if cfg.VaultAddr != "" && cfg.VaultToken != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := loadVaultSecrets(ctx, cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Validate checks settings that have no usable default.
func (c *PortalConfig) Validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return errors.New("JWT_SECRET is required")
	}
	c.applyDefaults()
	return nil
}

func (c *PortalConfig) applyDefaults() {
	if c.PasswordMinLength <= 0 {
		c.PasswordMinLength = 8
	}
	if c.BCryptCost <= 0 {
		c.BCryptCost = 10
	}
}

func loadVaultSecrets(ctx context.Context, cfg *PortalConfig) error {
	vcfg := vault.DefaultConfig()
	vcfg.Address = cfg.VaultAddr
	client, err := vault.NewClient(vcfg)
	if err != nil {
		return fmt.Errorf("vault client: %w", err)
	}
	client.SetToken(cfg.VaultToken)

	secret, err := client.Logical().ReadWithContext(ctx, cfg.VaultSecretPath)
	if err != nil {
		return fmt.Errorf("read vault secret %s: %w", cfg.VaultSecretPath, err)
	}
	if secret == nil || secret.Data == nil {
		return nil
	}

	applySecrets(cfg, secretValues(secret.Data))
	return nil
}

// secretValues unwraps KV v2 payloads, which nest the values under "data".
func secretValues(data map[string]any) map[string]any {
	if nested, ok := data["data"].(map[string]any); ok {
		return nested
	}
	return data
}

func applySecrets(cfg *PortalConfig, values map[string]any) {
	if v, ok := values["JWT_SECRET"].(string); ok && v != "" {
		cfg.JWTSecret = v
	}
	if v, ok := values["BREVO_API_KEY"].(string); ok && v != "" {
		cfg.BrevoAPIKey = v
	}
}
