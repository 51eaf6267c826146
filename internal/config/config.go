package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Storage   StorageConfig   `yaml:"storage"`
	S3        S3Config        `yaml:"s3"`
	SMB       SMBConfig       `yaml:"smb"`
	NFS       NFSConfig       `yaml:"nfs"`
	Pool      PoolConfig      `yaml:"pool"`
	Auth      AuthConfig      `yaml:"auth"`
	LDAP      LDAPConfig      `yaml:"ldap"`
	OAuth2    OAuth2Config    `yaml:"oauth2"`
	JWT       JWTConfig       `yaml:"jwt"`
	Upload    UploadConfig    `yaml:"upload"`
	Cleanup   CleanupConfig   `yaml:"cleanup"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	Host            string    `yaml:"host"`
	Port            string    `yaml:"port"`
	BaseURL         string    `yaml:"base_url"`
	ShutdownTimeout string    `yaml:"shutdown_timeout"`
	TLS             TLSConfig `yaml:"tls"`
}

type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

func (t TLSConfig) Enabled() bool {
	return t.CertFile != "" && t.KeyFile != ""
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type StorageConfig struct {
	Type      string `yaml:"type"`
	PublicURL string `yaml:"public_url"`
}

type S3Config struct {
	Endpoint   string `yaml:"endpoint"`
	Region     string `yaml:"region"`
	Bucket     string `yaml:"bucket"`
	AccessKey  string `yaml:"access_key"`
	SecretKey  string `yaml:"secret_key"`
	PathPrefix string `yaml:"path_prefix"`
	PathStyle  bool   `yaml:"path_style"`
}

type SMBConfig struct {
	Server   string `yaml:"server"`
	Port     int    `yaml:"port"`
	Share    string `yaml:"share"`
	Path     string `yaml:"path"`
	Domain   string `yaml:"domain"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

type NFSConfig struct {
	Server string `yaml:"server"`
	Export string `yaml:"export"`
	Path   string `yaml:"path"`
	UID    uint32 `yaml:"uid"`
	GID    uint32 `yaml:"gid"`
}

type PoolConfig struct {
	ConnectionTTL string `yaml:"connection_ttl"`
}

type AuthConfig struct {
	Type string `yaml:"type"`
}

type LDAPConfig struct {
	Server          string `yaml:"server"`
	BaseDN          string `yaml:"base_dn"`
	BindDN          string `yaml:"bind_dn"`
	BindPass        string `yaml:"bind_pass"`
	UserFilter      string `yaml:"user_filter"`
	UsernameAttr    string `yaml:"username_attr"`
	EmailAttr       string `yaml:"email_attr"`
	ActiveDirectory bool   `yaml:"active_directory"`
}

type OAuth2Config struct {
	Provider     string `yaml:"provider"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURL  string `yaml:"redirect_url"`
}

func (o OAuth2Config) Enabled() bool {
	return o.Provider != ""
}

type JWTConfig struct {
	SecretKey    string `yaml:"secret_key"`
	Issuer       string `yaml:"issuer"`
	Expiry       string `yaml:"expiry"`
	CookieName   string `yaml:"cookie_name"`
	SecureCookie bool   `yaml:"secure_cookie"`
}

type UploadConfig struct {
	MaxSizeMB          int64 `yaml:"max_size_mb"`
	DefaultExpiryDays  int   `yaml:"default_expiry_days"`
	AllowedExpiryDays  []int `yaml:"allowed_expiry_days"`
	ShortIDLength      int   `yaml:"short_id_length"`
	ShortIDMaxAttempts int   `yaml:"short_id_max_attempts"`
}

// AllowsExpiry reports whether days is one of the configured expiration choices.
func (u UploadConfig) AllowsExpiry(days int) bool {
	for _, d := range u.AllowedExpiryDays {
		if d == days {
			return true
		}
	}
	return false
}

type CleanupConfig struct {
	Schedule       string `yaml:"schedule"`
	SkipInitialRun bool   `yaml:"skip_initial_run"`
	Disabled       bool   `yaml:"disabled"`
}

type RateLimitConfig struct {
	UploadsPerMinute float64 `yaml:"uploads_per_minute"`
	Burst            int     `yaml:"burst"`
	MaxClients       int     `yaml:"max_clients"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML, applies environment overrides and defaults, and validates.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyEnv() {
	c.Database.URL = getEnvDefault("SXBIN_DATABASE_URL", c.Database.URL)
	c.JWT.SecretKey = getEnvDefault("SXBIN_JWT_SECRET", c.JWT.SecretKey)
	c.S3.AccessKey = getEnvDefault("SXBIN_S3_ACCESS_KEY", c.S3.AccessKey)
	c.S3.SecretKey = getEnvDefault("SXBIN_S3_SECRET_KEY", c.S3.SecretKey)
	c.OAuth2.ClientSecret = getEnvDefault("SXBIN_OAUTH2_CLIENT_SECRET", c.OAuth2.ClientSecret)
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = "30s"
	}
	if c.Storage.Type == "" {
		c.Storage.Type = "s3"
	}
	if c.S3.Region == "" {
		c.S3.Region = "auto"
	}
	if c.SMB.Port == 0 {
		c.SMB.Port = 445
	}
	if c.NFS.UID == 0 && c.NFS.GID == 0 {
		c.NFS.UID, c.NFS.GID = 1000, 1000
	}
	if c.Pool.ConnectionTTL == "" {
		c.Pool.ConnectionTTL = "10m"
	}
	if c.Auth.Type == "" {
		c.Auth.Type = "local"
	}
	if c.LDAP.UsernameAttr == "" {
		c.LDAP.UsernameAttr = "uid"
		if c.LDAP.ActiveDirectory {
			c.LDAP.UsernameAttr = "sAMAccountName"
		}
	}
	if c.LDAP.EmailAttr == "" {
		c.LDAP.EmailAttr = "mail"
	}
	if c.JWT.Expiry == "" {
		c.JWT.Expiry = "168h"
	}
	if c.JWT.CookieName == "" {
		c.JWT.CookieName = "auth_token"
	}
	if c.JWT.Issuer == "" {
		c.JWT.Issuer = "sxbin"
	}
	if c.Upload.MaxSizeMB == 0 {
		c.Upload.MaxSizeMB = 100
	}
	if c.Upload.DefaultExpiryDays == 0 {
		c.Upload.DefaultExpiryDays = 7
	}
	if len(c.Upload.AllowedExpiryDays) == 0 {
		c.Upload.AllowedExpiryDays = []int{1, 3, 7, 14, 30}
	}
	if c.Upload.ShortIDLength == 0 {
		c.Upload.ShortIDLength = 4
	}
	if c.Upload.ShortIDMaxAttempts == 0 {
		c.Upload.ShortIDMaxAttempts = 10
	}
	if c.Cleanup.Schedule == "" {
		c.Cleanup.Schedule = "0 0 * * *"
	}
	if c.RateLimit.UploadsPerMinute == 0 {
		c.RateLimit.UploadsPerMinute = 30
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = 10
	}
	if c.RateLimit.MaxClients == 0 {
		c.RateLimit.MaxClients = 10000
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
}

func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Database.URL == "" {
		return fmt.Errorf("database url is required")
	}

	if err := c.validateJWT(); err != nil {
		return err
	}
	if err := c.validateAuth(c.Auth.Type); err != nil {
		return err
	}
	if err := c.validateOAuth2(); err != nil {
		return err
	}
	if err := c.validateStorage(c.Storage.Type); err != nil {
		return err
	}
	if err := c.validateUpload(); err != nil {
		return err
	}

	if _, err := c.GetJWTExpiry(); err != nil {
		return fmt.Errorf("jwt expiry: %w", err)
	}
	if _, err := c.GetPoolTTL(); err != nil {
		return fmt.Errorf("pool connection_ttl: %w", err)
	}
	if _, err := c.GetShutdownTimeout(); err != nil {
		return fmt.Errorf("server shutdown_timeout: %w", err)
	}

	return nil
}

func (c *Config) validateJWT() error {
	if c.JWT.SecretKey == "" || containsPlaceholder(c.JWT.SecretKey) {
		return fmt.Errorf("jwt secret_key must be set (no placeholders allowed)")
	}
	if len(c.JWT.SecretKey) < 32 {
		return fmt.Errorf("jwt secret_key must be at least 32 bytes")
	}
	return nil
}

func (c *Config) validateAuth(authType string) error {
	switch authType {
	case "local":
	case "ldap":
		if c.LDAP.Server == "" {
			return fmt.Errorf("ldap server is required for ldap auth")
		}
		if c.LDAP.BaseDN == "" {
			return fmt.Errorf("ldap base_dn is required for ldap auth")
		}
		if c.LDAP.UserFilter == "" {
			return fmt.Errorf("ldap user_filter is required for ldap auth")
		}
	default:
		return fmt.Errorf("unknown auth type: %s", authType)
	}
	return nil
}

func (c *Config) validateOAuth2() error {
	if !c.OAuth2.Enabled() {
		return nil
	}
	switch c.OAuth2.Provider {
	case "github", "google":
	default:
		return fmt.Errorf("unknown oauth2 provider: %s", c.OAuth2.Provider)
	}
	if c.OAuth2.ClientID == "" || containsPlaceholder(c.OAuth2.ClientID) {
		return fmt.Errorf("oauth2 client_id must be set (no placeholders)")
	}
	if c.OAuth2.ClientSecret == "" || containsPlaceholder(c.OAuth2.ClientSecret) {
		return fmt.Errorf("oauth2 client_secret must be set (no placeholders)")
	}
	if c.OAuth2.RedirectURL == "" {
		return fmt.Errorf("oauth2 redirect_url is required")
	}
	return nil
}

func (c *Config) validateStorage(storageType string) error {
	switch storageType {
	case "s3":
		if c.S3.Bucket == "" {
			return fmt.Errorf("s3 bucket is required for s3 storage")
		}
		if containsPlaceholder(c.S3.AccessKey) || containsPlaceholder(c.S3.SecretKey) {
			return fmt.Errorf("s3 access_key and secret_key must be set (no placeholders)")
		}
	case "smb":
		if c.SMB.Server == "" {
			return fmt.Errorf("smb server is required for smb storage")
		}
		if c.SMB.Share == "" {
			return fmt.Errorf("smb share is required for smb storage")
		}
		if c.SMB.User == "" {
			return fmt.Errorf("smb user is required for smb storage")
		}
	case "memory":
	case "nfs":
		if c.NFS.Server == "" {
			return fmt.Errorf("nfs server is required for nfs storage")
		}
		if c.NFS.Export == "" {
			return fmt.Errorf("nfs export is required for nfs storage")
		}
	default:
		return fmt.Errorf("unknown storage type: %s", storageType)
	}
	return nil
}

func (c *Config) validateUpload() error {
	if c.Upload.MaxSizeMB < 0 {
		return fmt.Errorf("upload max_size_mb must be positive")
	}
	for _, d := range c.Upload.AllowedExpiryDays {
		if d < 1 || d > 30 {
			return fmt.Errorf("upload allowed_expiry_days must be within 1..30, got %d", d)
		}
	}
	if !c.Upload.AllowsExpiry(c.Upload.DefaultExpiryDays) {
		return fmt.Errorf("upload default_expiry_days %d is not in allowed_expiry_days", c.Upload.DefaultExpiryDays)
	}
	if c.Upload.ShortIDLength < 3 {
		return fmt.Errorf("upload short_id_length must be at least 3")
	}
	return nil
}

func containsPlaceholder(s string) bool {
	placeholders := []string{"CHANGE_ME", "YOUR_VALUE_HERE", "REQUIRED", "PLACEHOLDER", "CHANGEME"}
	for _, p := range placeholders {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (c *Config) GetJWTExpiry() (time.Duration, error) {
	return time.ParseDuration(c.JWT.Expiry)
}

func (c *Config) GetPoolTTL() (time.Duration, error) {
	return time.ParseDuration(c.Pool.ConnectionTTL)
}

func (c *Config) GetShutdownTimeout() (time.Duration, error) {
	return time.ParseDuration(c.Server.ShutdownTimeout)
}

// MaxUploadBytes is the request body limit for uploads.
func (c *Config) MaxUploadBytes() int64 {
	return c.Upload.MaxSizeMB << 20
}
