package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Port        string `env:"PORT" envDefault:"4000"`
	Env         string `env:"APP_ENV" envDefault:"development"`
	DatabaseURL string `env:"DATABASE_URL,required"`
	RedisURL    string `env:"REDIS_URL"`

	JWTSecret    string        `env:"JWT_SECRET,required"`
	TokenIssuer  string        `env:"TOKEN_ISSUER" envDefault:"accountgate"`
	TokenTTL     time.Duration `env:"TOKEN_TTL" envDefault:"168h"`
	VerifyOTPTTL time.Duration `env:"VERIFY_OTP_TTL" envDefault:"24h"`
	ResetOTPTTL  time.Duration `env:"RESET_OTP_TTL" envDefault:"15m"`
	OTPLength    int           `env:"OTP_LENGTH" envDefault:"6"`
	BcryptCost   int           `env:"BCRYPT_COST" envDefault:"10"`

	PasswordMinLength int `env:"PASSWORD_MIN_LENGTH" envDefault:"0"`

	CookieDomain      string   `env:"COOKIE_DOMAIN"`
	APIBasePath       string   `env:"API_BASE_PATH"`
	StrictStatusCodes bool     `env:"STRICT_STATUS_CODES" envDefault:"false"`
	SignInAlerts      bool     `env:"SIGNIN_ALERTS" envDefault:"false"`
	TrustedProxies    []string `env:"TRUSTED_PROXIES" envSeparator:","`
	AllowedOrigins    []string `env:"ALLOWED_ORIGINS" envSeparator:","`

	AuditMaxLen int64 `env:"AUDIT_MAX_LEN" envDefault:"1000"`
	AutoMigrate bool  `env:"AUTO_MIGRATE" envDefault:"true"`

	Log   LogConfig
	Email EmailConfig
}

type LogConfig struct {
	Format     string `env:"LOG_FORMAT" envDefault:"json"`
	Level      string `env:"LOG_LEVEL" envDefault:"info"`
	File       string `env:"LOG_FILE"`
	MaxSizeMB  int    `env:"LOG_MAX_SIZE_MB" envDefault:"50"`
	MaxBackups int    `env:"LOG_MAX_BACKUPS" envDefault:"5"`
}

type EmailConfig struct {
	// Provider is one of smtp, postmark or log.
	Provider string `env:"EMAIL_PROVIDER" envDefault:"log"`
	From     string `env:"EMAIL_FROM"`
	ReplyTo  string `env:"EMAIL_REPLY_TO"`

	Host     string `env:"EMAIL_SERVER_HOST"`
	Port     int    `env:"EMAIL_SERVER_PORT" envDefault:"587"`
	Username string `env:"EMAIL_SERVER_USER"`
	Password string `env:"EMAIL_SERVER_PASSWORD"`
	Secure   bool   `env:"EMAIL_SERVER_SECURE" envDefault:"false"`

	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
}

func (e EmailConfig) SMTPEnabled() bool {
	return e.Host != "" && e.Port != 0 && e.From != ""
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// Load reads .env when present and then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	return Parse()
}

// Parse reads configuration from the process environment only.
func Parse() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.Email.From = clean(cfg.Email.From)
	cfg.Email.Host = clean(cfg.Email.Host)
	cfg.Email.Username = clean(cfg.Email.Username)
	cfg.Email.Password = clean(cfg.Email.Password)
	cfg.APIBasePath = strings.TrimRight(cfg.APIBasePath, "/")
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if len(c.JWTSecret) < 16 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 16 characters"))
	}
	if c.TokenTTL <= 0 || c.VerifyOTPTTL <= 0 || c.ResetOTPTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_TTL, VERIFY_OTP_TTL and RESET_OTP_TTL must be positive"))
	}
	if c.OTPLength < 4 || c.OTPLength > 10 {
		errs = append(errs, errors.New("OTP_LENGTH must be between 4 and 10"))
	}
	if c.APIBasePath != "" && !strings.HasPrefix(c.APIBasePath, "/") {
		errs = append(errs, errors.New("API_BASE_PATH must start with /"))
	}
	if c.PasswordMinLength < 0 || c.PasswordMinLength > 72 {
		errs = append(errs, errors.New("PASSWORD_MIN_LENGTH must be between 0 and 72"))
	}
	switch c.Email.Provider {
	case "log":
		// The log sender prints message bodies, codes included.
		if c.IsProduction() {
			errs = append(errs, errors.New("EMAIL_PROVIDER=log is not allowed in production, use smtp or postmark"))
		}
	case "smtp":
		if !c.Email.SMTPEnabled() {
			errs = append(errs, errors.New("EMAIL_SERVER_HOST, EMAIL_SERVER_PORT and EMAIL_FROM are required for smtp"))
		}
	case "postmark":
		if c.Email.PostmarkServerToken == "" || c.Email.PostmarkAccountToken == "" || c.Email.From == "" {
			errs = append(errs, errors.New("POSTMARK_SERVER_TOKEN, POSTMARK_ACCOUNT_TOKEN and EMAIL_FROM are required for postmark"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown EMAIL_PROVIDER %q", c.Email.Provider))
	}
	return errors.Join(errs...)
}

func clean(val string) string {
	return strings.Trim(val, "\"' \t\r\n")
}
