package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var (
	ErrMissingCredentials = errors.New("set DIRECTUS_TOKEN or ADMIN_EMAIL and ADMIN_PASSWORD")
	ErrMissingDatabase    = errors.New("set DB_DSN or DB_HOST/DB_DATABASE/DB_USER")
)

// Config holds everything the tools read from the environment.
type Config struct {
	Directus DirectusConfig
	Admin    AdminConfig
	Database DatabaseConfig
	Backup   BackupConfig
	Log      LogConfig
	S3       S3Config
}

type DirectusConfig struct {
	URL     string
	Token   string
	Timeout time.Duration
	// PublicPolicy is the id of the public access policy (CMS v11+).
	// Empty means permissions target the legacy role = null.
	PublicPolicy string
}

type AdminConfig struct {
	Email    string
	Password string
}

type DatabaseConfig struct {
	DSN      string
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
}

type BackupConfig struct {
	Dir string
}

type LogConfig struct {
	Level  string
	Format string
}

type S3Config struct {
	Bucket    string
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Prefix    string
	PathStyle bool
}

// Load reads envFile (if present) into the process environment without
// overriding variables that are already set, then resolves configuration
// from cmsops.yaml and the environment. Environment wins over the file.
func Load(envFile string) (*Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	v := viper.New()
	v.SetConfigName("cmsops")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read cmsops.yaml: %w", err)
		}
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		Directus: DirectusConfig{
			URL:          v.GetString("directus.url"),
			Token:        v.GetString("directus.token"),
			Timeout:      v.GetDuration("http.timeout"),
			PublicPolicy: v.GetString("public.policy"),
		},
		Admin: AdminConfig{
			Email:    v.GetString("admin.email"),
			Password: v.GetString("admin.password"),
		},
		Database: DatabaseConfig{
			DSN:      v.GetString("db.dsn"),
			Host:     v.GetString("db.host"),
			Port:     v.GetInt("db.port"),
			Name:     v.GetString("db.database"),
			User:     v.GetString("db.user"),
			Password: v.GetString("db.password"),
			SSLMode:  v.GetString("db.sslmode"),
		},
		Backup: BackupConfig{
			Dir: v.GetString("backup.dir"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		S3: S3Config{
			Bucket:    v.GetString("s3.bucket"),
			Endpoint:  v.GetString("s3.endpoint"),
			Region:    v.GetString("s3.region"),
			AccessKey: v.GetString("s3.access_key"),
			SecretKey: v.GetString("s3.secret_key"),
			Prefix:    v.GetString("s3.prefix"),
			PathStyle: v.GetBool("s3.path_style"),
		},
	}
	// the CMS itself calls its base URL PUBLIC_URL
	if cfg.Directus.URL == "" {
		cfg.Directus.URL = v.GetString("public.url")
	}
	if cfg.Directus.URL == "" {
		cfg.Directus.URL = "http://localhost:8055"
	}
	cfg.Directus.URL = strings.TrimSuffix(cfg.Directus.URL, "/")

	if _, err := url.ParseRequestURI(cfg.Directus.URL); err != nil {
		return nil, fmt.Errorf("invalid DIRECTUS_URL %q: %w", cfg.Directus.URL, err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.timeout", 30*time.Second)
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.database", "directus")
	v.SetDefault("db.user", "directus")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("backup.dir", "backups")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.prefix", "cmsops")
	v.SetDefault("s3.path_style", true)
}

// DSN returns DB_DSN when set, otherwise a libpq key/value string built
// from the individual DB_* settings.
func (c *Config) DSN() string {
	d := c.Database
	if d.DSN != "" {
		return d.DSN
	}
	parts := []string{
		"host=" + d.Host,
		fmt.Sprintf("port=%d", d.Port),
		"user=" + d.User,
		"dbname=" + d.Name,
		"sslmode=" + d.SSLMode,
	}
	if d.Password != "" {
		parts = append(parts, "password="+d.Password)
	}
	return strings.Join(parts, " ")
}

// RequireAPI reports whether the REST session can be established.
func (c *Config) RequireAPI() error {
	if c.Directus.Token != "" {
		return nil
	}
	if c.Admin.Email == "" || c.Admin.Password == "" {
		return ErrMissingCredentials
	}
	return nil
}

// RequireDB reports whether a direct database connection can be opened.
func (c *Config) RequireDB() error {
	if c.Database.DSN != "" || c.Database.Host != "" {
		return nil
	}
	return ErrMissingDatabase
}

// S3Enabled is true when a bucket and credentials are configured.
func (c *Config) S3Enabled() bool {
	return c.S3.Bucket != "" && c.S3.AccessKey != "" && c.S3.SecretKey != ""
}
