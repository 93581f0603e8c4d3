package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"
)

// SigningMode selecciona el régimen de firma del proceso.
// Se elige una vez al arranque y es inmutable después.
type SigningMode string

const (
	// ModeSymmetric firma con HS256 sobre el shared secret. Sin kid.
	ModeSymmetric SigningMode = "symmetric"
	// ModeAsymmetric firma con RS256 sobre la clave privada activa. Header con kid.
	ModeAsymmetric SigningMode = "asymmetric"
)

// Config es la configuración del proceso, leída exclusivamente del entorno.
// El entorno es la única superficie de configuración del core.
type Config struct {
	App struct {
		Env      string // dev | prod
		LogLevel string
	}

	Server struct {
		Addr string
	}

	JWT struct {
		Mode     SigningMode
		Issuer   string
		Audience string
		TokenTTL time.Duration

		// Asymmetric mode
		ActiveKID  string
		PrivateKey string // inline PEM, /path o @path
		PublicKeys string // JSON object kid -> PEM

		// Symmetric mode; also honored for legacy HS256 verification
		// in asymmetric deployments when set.
		SecretKey string
	}

	Storage struct {
		DSN string
	}

	Redis struct {
		Addr   string
		DB     int
		Prefix string
	}

	Google struct {
		ClientID       string
		AllowedDomains []string
	}

	Rate struct {
		Enabled     bool
		LoginLimit  int
		LoginWindow time.Duration
	}
}

// Load lee el entorno, aplica defaults y valida.
// Valida TODO junto: un arranque defectuoso reporta cada regla que falla.
func Load() (*Config, error) {
	var c Config

	c.App.Env = "dev"
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	c.App.LogLevel = "info"
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.App.LogLevel = v
	}

	c.Server.Addr = ":8080"
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}

	// JWT core
	c.JWT.Mode = ModeSymmetric
	if v, ok := getEnvStr("AUTH_SIGNING_MODE"); ok {
		c.JWT.Mode = SigningMode(strings.ToLower(strings.TrimSpace(v)))
	}
	c.JWT.Issuer = "restin.ai"
	if v, ok := getEnvStr("AUTH_JWT_ISSUER"); ok {
		c.JWT.Issuer = v
	}
	c.JWT.Audience = "restin.ai"
	if v, ok := getEnvStr("AUTH_JWT_AUDIENCE"); ok {
		c.JWT.Audience = v
	}
	ttlHours := 12
	if v, ok := getEnvInt("AUTH_TOKEN_TTL_HOURS"); ok {
		ttlHours = v
	}
	c.JWT.TokenTTL = time.Duration(ttlHours) * time.Hour

	if v, ok := getEnvStr("AUTH_ACTIVE_KID"); ok {
		c.JWT.ActiveKID = strings.TrimSpace(v)
	}
	if v, ok := getEnvStr("AUTH_PRIVATE_KEY"); ok {
		c.JWT.PrivateKey = v
	}
	if v, ok := getEnvStr("AUTH_PUBLIC_KEYS"); ok {
		c.JWT.PublicKeys = v
	}
	if v, ok := getEnvStr("AUTH_SECRET_KEY"); ok {
		c.JWT.SecretKey = v
	}

	// Storage / cache
	if v, ok := getEnvStr("STORAGE_DSN"); ok {
		c.Storage.DSN = v
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Redis.Addr = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Redis.DB = v
	}
	c.Redis.Prefix = "authcore"
	if v, ok := getEnvStr("REDIS_PREFIX"); ok {
		c.Redis.Prefix = v
	}

	// Google federated login
	if v, ok := getEnvStr("GOOGLE_CLIENT_ID"); ok {
		c.Google.ClientID = v
	}
	if v, ok := getEnvCSV("GOOGLE_ALLOWED_DOMAINS"); ok {
		c.Google.AllowedDomains = v
	}

	// Rate limit (login endpoints)
	c.Rate.Enabled = true
	if v, ok := getEnvBool("RATE_ENABLED"); ok {
		c.Rate.Enabled = v
	}
	c.Rate.LoginLimit = 10
	if v, ok := getEnvInt("RATE_LOGIN_LIMIT"); ok {
		c.Rate.LoginLimit = v
	}
	c.Rate.LoginWindow = time.Minute
	if v, ok := getEnvDur("RATE_LOGIN_WINDOW"); ok {
		c.Rate.LoginWindow = v
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate aplica las reglas de arranque. Acumula TODOS los defectos en un
// solo error (no corta en el primero) para que un deploy roto se arregle
// en una sola pasada.
func (c *Config) Validate() error {
	var errs error

	switch c.JWT.Mode {
	case ModeSymmetric, ModeAsymmetric:
	default:
		errs = multierr.Append(errs, fmt.Errorf("AUTH_SIGNING_MODE: must be %q or %q, got %q", ModeSymmetric, ModeAsymmetric, c.JWT.Mode))
	}

	if strings.TrimSpace(c.JWT.Issuer) == "" {
		errs = multierr.Append(errs, fmt.Errorf("AUTH_JWT_ISSUER: must be non-empty"))
	}
	if strings.TrimSpace(c.JWT.Audience) == "" {
		errs = multierr.Append(errs, fmt.Errorf("AUTH_JWT_AUDIENCE: must be non-empty"))
	}
	if c.JWT.TokenTTL <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("AUTH_TOKEN_TTL_HOURS: must be a positive integer"))
	}

	switch c.JWT.Mode {
	case ModeAsymmetric:
		if c.JWT.ActiveKID == "" {
			errs = multierr.Append(errs, fmt.Errorf("AUTH_ACTIVE_KID: required in asymmetric mode"))
		}
		if strings.TrimSpace(c.JWT.PrivateKey) == "" {
			errs = multierr.Append(errs, fmt.Errorf("AUTH_PRIVATE_KEY: required in asymmetric mode"))
		}
		if m, err := c.PublicKeyMap(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("AUTH_PUBLIC_KEYS: %v", err))
		} else if len(m) == 0 {
			errs = multierr.Append(errs, fmt.Errorf("AUTH_PUBLIC_KEYS: required non-empty in asymmetric mode"))
		}
	case ModeSymmetric:
		if len(c.JWT.SecretKey) < 16 {
			errs = multierr.Append(errs, fmt.Errorf("AUTH_SECRET_KEY: required, minimum 16 bytes in symmetric mode"))
		}
	}

	return errs
}

// PublicKeyMap parsea AUTH_PUBLIC_KEYS como objeto JSON kid -> PEM.
func (c *Config) PublicKeyMap() (map[string]string, error) {
	raw := strings.TrimSpace(c.JWT.PublicKeys)
	if raw == "" {
		return map[string]string{}, nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("must be a JSON object mapping kid to PEM: %w", err)
	}
	return m, nil
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}

func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}

func getEnvDur(key string) (time.Duration, bool) {
	if s, ok := getEnvStr(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil {
			return d, true
		}
	}
	return 0, false
}

func getEnvCSV(key string) ([]string, bool) {
	if s, ok := getEnvStr(key); ok {
		if strings.TrimSpace(s) == "" {
			return []string{}, true
		}
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				out = append(out, p)
			}
		}
		return out, true
	}
	return nil, false
}
