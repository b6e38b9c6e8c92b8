package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/joho/godotenv"
)

// AppConfig holds environment driven configuration values.
// Secrets have no defaults and must come from config.json, a .env file or the environment.
type AppConfig struct {
	AppPort            string   `json:"AppPort"`
	JWTSecret          string   `json:"JWTSecret"`
	TokenTTLHours      int      `json:"TokenTTLHours"`
	RateLimitPerMinute int      `json:"RateLimitPerMinute"`
	AllowedOrigins     []string `json:"AllowedOrigins"`
	OAuthRedirectBase  string   `json:"OAuthRedirectBase"`
	AdminEmails        []string `json:"AdminEmails"`

	GitHubClientID     string
	GitHubClientSecret string
	GoogleClientID     string
	GoogleClientSecret string

	GinMode string
	GinPath string

	// DBDriver is mysql, postgres or sqlite.
	DBDriver    string
	DatabaseURI string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string

	// Redis backs the listing cache, flash messages and the token blacklist. Empty host disables it.
	RedisHost     string
	RedisPort     int
	RedisDB       int
	RedisPassword string

	LogLevel      string
	LogPath       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool

	// StorageDriver is local, minio (alias s3) or memory.
	StorageDriver   string
	UploadDir       string
	UploadBaseURL   string
	MinioEndpoint   string
	MinioAccessKey  string
	MinioSecretKey  string
	MinioBucket     string
	MinioUseSSL     bool
	MinioPublicBase string

	UploadMaxSizeMB        int
	UploadAccept           []string
	OrphanUploadTTLMinutes int

	PostsPageSize    int
	CommentsPageSize int
	MaxPageSize      int
}

// fileConfig mirrors config/config.json, which groups settings by concern.
type fileConfig struct {
	App AppConfig `json:"app"`
	Gin struct {
		Mode    string
		LogPath string
	} `json:"gin"`
	Database struct {
		Driver, DatabaseURI, DBHost, DBPort, DBUser, DBPassword, DBName string
	} `json:"database"`
	Redis struct {
		RedisHost     string
		RedisPort     int
		RedisDB       int
		RedisPassword string
	} `json:"redis"`
	OAuth struct {
		GitHubClientID, GitHubClientSecret, GoogleClientID, GoogleClientSecret string
	} `json:"oauth"`
	Log struct {
		Level                             string
		Path                              string
		MaxSizeMB, MaxBackups, MaxAgeDays int
		Compress                          bool
	} `json:"log"`
	Storage struct {
		Driver, UploadDir, UploadBaseURL              string
		MinioEndpoint, MinioAccessKey, MinioSecretKey string
		MinioBucket, MinioPublicBase                  string
		MinioUseSSL                                   bool
	} `json:"storage"`
	Upload struct {
		MaxSizeMB        int
		Accept           []string
		OrphanTTLMinutes int
	} `json:"upload"`
	Listing struct {
		PostsPageSize, CommentsPageSize, MaxPageSize int
	} `json:"listing"`
}

func (f fileConfig) flatten() AppConfig {
	c := f.App
	c.GinMode, c.GinPath = f.Gin.Mode, f.Gin.LogPath

	d := f.Database
	c.DBDriver, c.DatabaseURI, c.DBHost, c.DBPort = d.Driver, d.DatabaseURI, d.DBHost, d.DBPort
	c.DBUser, c.DBPassword, c.DBName = d.DBUser, d.DBPassword, d.DBName

	c.RedisHost, c.RedisPort = f.Redis.RedisHost, f.Redis.RedisPort
	c.RedisDB, c.RedisPassword = f.Redis.RedisDB, f.Redis.RedisPassword

	c.GitHubClientID, c.GitHubClientSecret = f.OAuth.GitHubClientID, f.OAuth.GitHubClientSecret
	c.GoogleClientID, c.GoogleClientSecret = f.OAuth.GoogleClientID, f.OAuth.GoogleClientSecret

	c.LogLevel, c.LogPath, c.LogCompress = f.Log.Level, f.Log.Path, f.Log.Compress
	c.LogMaxSizeMB, c.LogMaxBackups, c.LogMaxAgeDays = f.Log.MaxSizeMB, f.Log.MaxBackups, f.Log.MaxAgeDays

	s := f.Storage
	c.StorageDriver, c.UploadDir, c.UploadBaseURL = s.Driver, s.UploadDir, s.UploadBaseURL
	c.MinioEndpoint, c.MinioAccessKey, c.MinioSecretKey = s.MinioEndpoint, s.MinioAccessKey, s.MinioSecretKey
	c.MinioBucket, c.MinioPublicBase, c.MinioUseSSL = s.MinioBucket, s.MinioPublicBase, s.MinioUseSSL

	c.UploadMaxSizeMB, c.UploadAccept = f.Upload.MaxSizeMB, f.Upload.Accept
	c.OrphanUploadTTLMinutes = f.Upload.OrphanTTLMinutes

	c.PostsPageSize, c.CommentsPageSize = f.Listing.PostsPageSize, f.Listing.CommentsPageSize
	c.MaxPageSize = f.Listing.MaxPageSize
	return c
}

var (
	mu     sync.RWMutex
	cfg    AppConfig
	loaded bool
)

// Load reads config/config.json, fills defaults, then applies environment
// overrides. It should be called once during boot.
func Load() AppConfig {
	mu.Lock()
	defer mu.Unlock()
	if loaded {
		return cfg
	}

	// A .env file, when present, seeds the environment without overriding it.
	_ = godotenv.Load()

	c, err := readFile(filepath.Join("config", "config.json"))
	if err != nil {
		log.Printf("invalid config/config.json: %v", err)
	}
	applyDefaults(&c)
	if err := applyEnv(&c, os.LookupEnv); err != nil {
		log.Fatal(err)
	}

	if c.JWTSecret == "" {
		log.Fatal("JWT_SECRET must be set in environment variables")
	}

	cfg = c
	loaded = true
	return cfg
}

// Get returns the cached configuration, loading it if necessary.
func Get() AppConfig {
	mu.RLock()
	if loaded {
		c := cfg
		mu.RUnlock()
		return c
	}
	mu.RUnlock()
	return Load()
}

// Set installs c as the active configuration after filling defaults. Used by tests and tools.
func Set(c AppConfig) {
	applyDefaults(&c)
	mu.Lock()
	cfg = c
	loaded = true
	mu.Unlock()
}

// UploadMaxBytes is the upload size limit in bytes.
func (c AppConfig) UploadMaxBytes() int64 {
	return int64(c.UploadMaxSizeMB) * 1024 * 1024
}

// readFile returns the zero config when path does not exist.
func readFile(path string) (AppConfig, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return AppConfig{}, nil
	}
	if err != nil {
		return AppConfig{}, err
	}
	var fc fileConfig
	if err := json.Unmarshal(raw, &fc); err != nil {
		return AppConfig{}, err
	}
	return fc.flatten(), nil
}

func applyDefaults(c *AppConfig) {
	setDefault(&c.AppPort, "8080")
	setDefault(&c.TokenTTLHours, 72)
	setDefault(&c.GinMode, "release")
	setDefault(&c.GinPath, "logs/go_gin.log")
	setDefault(&c.RateLimitPerMinute, 60)
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	setDefault(&c.OAuthRedirectBase, "http://localhost:8080")

	setDefault(&c.DBDriver, "mysql")
	setDefault(&c.DBHost, "127.0.0.1")
	if c.DBDriver == "postgres" {
		setDefault(&c.DBPort, "5432")
	}
	setDefault(&c.DBPort, "3306")
	setDefault(&c.DBUser, "root")
	setDefault(&c.DBName, "myblog")
	setDefault(&c.RedisPort, 6379)

	setDefault(&c.LogLevel, "info")
	setDefault(&c.LogMaxSizeMB, 100)
	setDefault(&c.LogMaxBackups, 3)
	setDefault(&c.LogMaxAgeDays, 7)

	setDefault(&c.StorageDriver, "local")
	setDefault(&c.UploadDir, filepath.Join("static", "uploads"))
	setDefault(&c.UploadBaseURL, "/static/uploads")
	setDefault(&c.MinioBucket, "images")
	setDefault(&c.UploadMaxSizeMB, 10)
	if len(c.UploadAccept) == 0 {
		c.UploadAccept = []string{"image/*"}
	}
	setDefault(&c.OrphanUploadTTLMinutes, 60)

	setDefault(&c.PostsPageSize, 5)
	setDefault(&c.CommentsPageSize, 10)
	setDefault(&c.MaxPageSize, 100)
}

func setDefault[T comparable](field *T, def T) {
	var zero T
	if *field == zero {
		*field = def
	}
}

// envBinding maps one environment variable onto a config field.
type envBinding struct {
	name string
	set  func(c *AppConfig, v string) error
}

func str(f func(*AppConfig) *string) func(*AppConfig, string) error {
	return func(c *AppConfig, v string) error { *f(c) = v; return nil }
}

func integer(f func(*AppConfig) *int) func(*AppConfig, string) error {
	return func(c *AppConfig, v string) error {
		i, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return err
		}
		*f(c) = i
		return nil
	}
}

func boolean(f func(*AppConfig) *bool) func(*AppConfig, string) error {
	return func(c *AppConfig, v string) error {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return err
		}
		*f(c) = b
		return nil
	}
}

func list(f func(*AppConfig) *[]string) func(*AppConfig, string) error {
	return func(c *AppConfig, v string) error { *f(c) = splitAndTrim(v); return nil }
}

var envBindings = []envBinding{
	{"APP_PORT", str(func(c *AppConfig) *string { return &c.AppPort })},
	{"JWT_SECRET", str(func(c *AppConfig) *string { return &c.JWTSecret })},
	{"TOKEN_TTL_HOURS", integer(func(c *AppConfig) *int { return &c.TokenTTLHours })},
	{"GIN_MODE", str(func(c *AppConfig) *string { return &c.GinMode })},
	{"GIN_PATH", str(func(c *AppConfig) *string { return &c.GinPath })},
	{"RATE_LIMIT_PER_MINUTE", integer(func(c *AppConfig) *int { return &c.RateLimitPerMinute })},
	{"CORS_ALLOWED_ORIGINS", list(func(c *AppConfig) *[]string { return &c.AllowedOrigins })},
	{"OAUTH_REDIRECT_BASE_URL", str(func(c *AppConfig) *string { return &c.OAuthRedirectBase })},
	{"GITHUB_CLIENT_ID", str(func(c *AppConfig) *string { return &c.GitHubClientID })},
	{"GITHUB_CLIENT_SECRET", str(func(c *AppConfig) *string { return &c.GitHubClientSecret })},
	{"GOOGLE_CLIENT_ID", str(func(c *AppConfig) *string { return &c.GoogleClientID })},
	{"GOOGLE_CLIENT_SECRET", str(func(c *AppConfig) *string { return &c.GoogleClientSecret })},
	{"ADMIN_EMAILS", list(func(c *AppConfig) *[]string { return &c.AdminEmails })},

	{"DB_DRIVER", str(func(c *AppConfig) *string { return &c.DBDriver })},
	{"DATABASE_URI", str(func(c *AppConfig) *string { return &c.DatabaseURI })},
	{"DB_HOST", str(func(c *AppConfig) *string { return &c.DBHost })},
	{"DB_PORT", str(func(c *AppConfig) *string { return &c.DBPort })},
	{"DB_USER", str(func(c *AppConfig) *string { return &c.DBUser })},
	{"DB_PASSWORD", str(func(c *AppConfig) *string { return &c.DBPassword })},
	{"DB_NAME", str(func(c *AppConfig) *string { return &c.DBName })},

	{"REDIS_HOST", str(func(c *AppConfig) *string { return &c.RedisHost })},
	{"REDIS_PORT", integer(func(c *AppConfig) *int { return &c.RedisPort })},
	{"REDIS_DB", integer(func(c *AppConfig) *int { return &c.RedisDB })},
	{"REDIS_PASSWORD", str(func(c *AppConfig) *string { return &c.RedisPassword })},

	{"LOG_LEVEL", str(func(c *AppConfig) *string { return &c.LogLevel })},
	{"LOG_PATH", str(func(c *AppConfig) *string { return &c.LogPath })},
	{"LOG_MAX_SIZE_MB", integer(func(c *AppConfig) *int { return &c.LogMaxSizeMB })},
	{"LOG_MAX_BACKUPS", integer(func(c *AppConfig) *int { return &c.LogMaxBackups })},
	{"LOG_MAX_AGE_DAYS", integer(func(c *AppConfig) *int { return &c.LogMaxAgeDays })},
	{"LOG_COMPRESS", boolean(func(c *AppConfig) *bool { return &c.LogCompress })},

	{"STORAGE_DRIVER", str(func(c *AppConfig) *string { return &c.StorageDriver })},
	{"UPLOAD_DIR", str(func(c *AppConfig) *string { return &c.UploadDir })},
	{"UPLOAD_BASE_URL", str(func(c *AppConfig) *string { return &c.UploadBaseURL })},
	{"MINIO_ENDPOINT", str(func(c *AppConfig) *string { return &c.MinioEndpoint })},
	{"MINIO_ACCESS_KEY", str(func(c *AppConfig) *string { return &c.MinioAccessKey })},
	{"MINIO_SECRET_KEY", str(func(c *AppConfig) *string { return &c.MinioSecretKey })},
	{"MINIO_BUCKET", str(func(c *AppConfig) *string { return &c.MinioBucket })},
	{"MINIO_USE_SSL", boolean(func(c *AppConfig) *bool { return &c.MinioUseSSL })},
	{"MINIO_PUBLIC_BASE", str(func(c *AppConfig) *string { return &c.MinioPublicBase })},

	{"UPLOAD_MAX_SIZE_MB", integer(func(c *AppConfig) *int { return &c.UploadMaxSizeMB })},
	{"UPLOAD_ACCEPT", list(func(c *AppConfig) *[]string { return &c.UploadAccept })},
	{"ORPHAN_UPLOAD_TTL_MINUTES", integer(func(c *AppConfig) *int { return &c.OrphanUploadTTLMinutes })},

	{"POSTS_PAGE_SIZE", integer(func(c *AppConfig) *int { return &c.PostsPageSize })},
	{"COMMENTS_PAGE_SIZE", integer(func(c *AppConfig) *int { return &c.CommentsPageSize })},
	{"MAX_PAGE_SIZE", integer(func(c *AppConfig) *int { return &c.MaxPageSize })},
}

// applyEnv overrides c with every bound variable lookup reports as set and non-empty.
func applyEnv(c *AppConfig, lookup func(string) (string, bool)) error {
	for _, b := range envBindings {
		v, ok := lookup(b.name)
		if !ok || v == "" {
			continue
		}
		if err := b.set(c, v); err != nil {
			return fmt.Errorf("invalid %s=%q: %w", b.name, v, err)
		}
	}
	return nil
}

func splitAndTrim(raw string) []string {
	items := []string{}
	for _, item := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
