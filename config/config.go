package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// AppConfig holds file and environment driven configuration values.
// Sensitive data should never have defaults inside code and must be provided via env files or the environment.
type AppConfig struct {
	Env                string
	AppPort            string
	JWTSecret          string
	TokenTTLHours      int
	RateLimitPerMinute int
	AllowedOrigins     []string
	StaticDir          string
	// Registration throttling per client IP
	RegisterCooldownSec int
	RegisterMaxPerDay   int
	// Gin framework configuration
	GinMode string
	GinPath string
	// Database: driver is one of sqlite, mysql, postgres
	DBDriver    string
	DatabaseURI string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	SQLitePath  string
	// Redis for caching, token revocation and day locks; empty host disables it
	RedisHost     string
	RedisPort     int
	RedisDB       int
	RedisPassword string
	// Audio storage: backend is one of local, s3, gcs
	StorageBackend  string
	StorageDir      string
	StorageBucket   string
	StorageRegion   string
	StorageEndpoint string
	StoragePrefix   string
	MaxUploadMB     int
	// Logging configuration
	LogLevel      string
	LogPath       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool
	// Check-in rules
	TimeZone                     string
	SelfCheckinRequiresRecording bool
	AllowStudentSelfCheckin      bool
	// Bootstrap admin created on an empty database
	AdminName     string
	AdminPassword string
	SentryDSN     string
}

// fileConfig mirrors the grouped layout of config/config.json.
type fileConfig struct {
	App struct {
		Env                string
		AppPort            string
		JWTSecret          string
		TokenTTLHours      int
		RateLimitPerMinute int
		AllowedOrigins     []string
		StaticDir          string
		SentryDSN          string
		// Registration throttling
		RegisterCooldownSec int
		RegisterMaxPerDay   int
	}
	Database struct {
		Driver      string
		DatabaseURI string
		DBHost      string
		DBPort      string
		DBUser      string
		DBPassword  string
		DBName      string
		SQLitePath  string
	}
	Redis struct {
		RedisHost     string
		RedisPort     int
		RedisDB       int
		RedisPassword string
	}
	Storage struct {
		Backend     string
		Dir         string
		Bucket      string
		Region      string
		Endpoint    string
		Prefix      string
		MaxUploadMB int
	}
	Log struct {
		Level      string
		Path       string
		GinMode    string
		GinPath    string
		MaxSizeMB  int
		MaxBackups int
		MaxAgeDays int
		Compress   bool
	}
	Checkin struct {
		TimeZone                     string
		SelfCheckinRequiresRecording *bool
		AllowStudentSelfCheckin      *bool
	}
	Admin struct {
		Name     string
		Password string
	}
}

var cfg AppConfig
var loaded bool

// Load loads the application configuration. It should be called once during boot.
// Precedence: config/config.json -> defaults -> environment variable overrides.
func Load() (AppConfig, error) {
	if loaded {
		return cfg, nil
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("ignoring unreadable .env: %v", err)
	}

	c, err := LoadFile("config/config.json")
	if err != nil {
		return AppConfig{}, err
	}
	applyDefaults(&c)
	applyEnvOverrides(&c)

	if c.JWTSecret == "" {
		return AppConfig{}, errors.New("JWT_SECRET must be set in environment variables")
	}

	cfg = c
	loaded = true
	return cfg, nil
}

// Get returns the cached configuration. Load must have succeeded before.
func Get() AppConfig {
	if !loaded {
		log.Fatal("config not loaded, call config.Load first")
	}
	return cfg
}

// LoadFile reads a grouped JSON config file. A missing file yields a zero config.
func LoadFile(path string) (AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			return AppConfig{SelfCheckinRequiresRecording: true, AllowStudentSelfCheckin: true}, nil
		}
		return AppConfig{}, err
	}

	var fc fileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return AppConfig{}, err
	}

	out := AppConfig{
		Env:                fc.App.Env,
		AppPort:            fc.App.AppPort,
		JWTSecret:          fc.App.JWTSecret,
		TokenTTLHours:      fc.App.TokenTTLHours,
		RateLimitPerMinute: fc.App.RateLimitPerMinute,
		AllowedOrigins:     fc.App.AllowedOrigins,
		StaticDir:          fc.App.StaticDir,
		SentryDSN:          fc.App.SentryDSN,
		GinMode:            fc.Log.GinMode,
		GinPath:            fc.Log.GinPath,
		DBDriver:           fc.Database.Driver,
		DatabaseURI:        fc.Database.DatabaseURI,
		DBHost:             fc.Database.DBHost,
		DBPort:             fc.Database.DBPort,
		DBUser:             fc.Database.DBUser,
		DBPassword:         fc.Database.DBPassword,
		DBName:             fc.Database.DBName,
		SQLitePath:         fc.Database.SQLitePath,
		RedisHost:          fc.Redis.RedisHost,
		RedisPort:          fc.Redis.RedisPort,
		RedisDB:            fc.Redis.RedisDB,
		RedisPassword:      fc.Redis.RedisPassword,
		StorageBackend:     fc.Storage.Backend,
		StorageDir:         fc.Storage.Dir,
		StorageBucket:      fc.Storage.Bucket,
		StorageRegion:      fc.Storage.Region,
		StorageEndpoint:    fc.Storage.Endpoint,
		StoragePrefix:      fc.Storage.Prefix,
		MaxUploadMB:        fc.Storage.MaxUploadMB,
		LogLevel:           fc.Log.Level,
		LogPath:            fc.Log.Path,
		LogMaxSizeMB:       fc.Log.MaxSizeMB,
		LogMaxBackups:      fc.Log.MaxBackups,
		LogMaxAgeDays:      fc.Log.MaxAgeDays,
		LogCompress:        fc.Log.Compress,
		TimeZone:           fc.Checkin.TimeZone,
		AdminName:          fc.Admin.Name,
		AdminPassword:      fc.Admin.Password,
	}
	out.RegisterCooldownSec = fc.App.RegisterCooldownSec
	out.RegisterMaxPerDay = fc.App.RegisterMaxPerDay
	// absent flags mean the stricter recording rule and the student check-in route enabled
	out.SelfCheckinRequiresRecording = true
	if fc.Checkin.SelfCheckinRequiresRecording != nil {
		out.SelfCheckinRequiresRecording = *fc.Checkin.SelfCheckinRequiresRecording
	}
	out.AllowStudentSelfCheckin = true
	if fc.Checkin.AllowStudentSelfCheckin != nil {
		out.AllowStudentSelfCheckin = *fc.Checkin.AllowStudentSelfCheckin
	}
	return out, nil
}

// Location resolves TimeZone, falling back to the process zone.
func (c AppConfig) Location() *time.Location {
	if c.TimeZone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		log.Printf("unknown time zone %q, using local: %v", c.TimeZone, err)
		return time.Local
	}
	return loc
}

// TokenTTL is the lifetime of issued JWTs.
func (c AppConfig) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLHours) * time.Hour
}

// MaxUploadBytes is the size cap for one audio upload.
func (c AppConfig) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) * 1024 * 1024
}

// applyDefaults sets sane defaults for zero-value fields.
func applyDefaults(c *AppConfig) {
	if c.Env == "" {
		c.Env = "dev"
	}
	if c.AppPort == "" {
		c.AppPort = "3001"
	}
	if c.TokenTTLHours == 0 {
		c.TokenTTLHours = 7 * 24
	}
	if c.GinMode == "" {
		c.GinMode = "release"
	}
	if c.GinPath == "" {
		c.GinPath = "logs/go_gin.log"
	}
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = 120
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if c.RegisterCooldownSec == 0 {
		c.RegisterCooldownSec = 5
	}
	if c.RegisterMaxPerDay == 0 {
		c.RegisterMaxPerDay = 30
	}
	if c.DBDriver == "" {
		c.DBDriver = "sqlite"
	}
	if c.SQLitePath == "" {
		c.SQLitePath = "data/app.db"
	}
	if c.DBHost == "" {
		c.DBHost = "127.0.0.1"
	}
	if c.DBPort == "" {
		switch c.DBDriver {
		case "postgres":
			c.DBPort = "5432"
		default:
			c.DBPort = "3306"
		}
	}
	if c.DBName == "" {
		c.DBName = "bible_memorize"
	}
	if c.RedisPort == 0 {
		c.RedisPort = 6379
	}
	if c.StorageBackend == "" {
		c.StorageBackend = "local"
	}
	if c.StorageDir == "" {
		c.StorageDir = "storage"
	}
	if c.StoragePrefix == "" && c.StorageBackend != "local" {
		c.StoragePrefix = "recordings/"
	}
	if c.MaxUploadMB == 0 {
		c.MaxUploadMB = 25
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogMaxSizeMB == 0 {
		c.LogMaxSizeMB = 100
	}
	if c.LogMaxBackups == 0 {
		c.LogMaxBackups = 3
	}
	if c.LogMaxAgeDays == 0 {
		c.LogMaxAgeDays = 7
	}
	if c.AdminName == "" {
		c.AdminName = "admin"
	}
}

// applyEnvOverrides maps known environment variables onto config values when present.
func applyEnvOverrides(c *AppConfig) {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			} else {
				log.Printf("ignoring %s=%q: %v", key, v, err)
			}
		}
	}
	flag := func(key string, dst *bool) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			} else {
				log.Printf("ignoring %s=%q: %v", key, v, err)
			}
		}
	}

	str("ENV", &c.Env)
	str("APP_PORT", &c.AppPort)
	str("PORT", &c.AppPort)
	str("JWT_SECRET", &c.JWTSecret)
	num("TOKEN_TTL_HOURS", &c.TokenTTLHours)
	num("RATE_LIMIT_PER_MINUTE", &c.RateLimitPerMinute)
	if v := strings.TrimSpace(os.Getenv("ALLOWED_ORIGINS")); v != "" {
		c.AllowedOrigins = splitAndTrim(v)
	}
	str("STATIC_DIR", &c.StaticDir)
	num("REGISTER_COOLDOWN_SEC", &c.RegisterCooldownSec)
	num("REGISTER_MAX_PER_DAY", &c.RegisterMaxPerDay)
	str("GIN_MODE", &c.GinMode)
	str("GIN_PATH", &c.GinPath)

	str("DB_DRIVER", &c.DBDriver)
	str("DATABASE_URI", &c.DatabaseURI)
	str("DB_HOST", &c.DBHost)
	str("DB_PORT", &c.DBPort)
	str("DB_USER", &c.DBUser)
	str("DB_PASSWORD", &c.DBPassword)
	str("DB_NAME", &c.DBName)
	str("SQLITE_PATH", &c.SQLitePath)

	str("REDIS_HOST", &c.RedisHost)
	num("REDIS_PORT", &c.RedisPort)
	num("REDIS_DB", &c.RedisDB)
	str("REDIS_PASSWORD", &c.RedisPassword)

	str("STORAGE_BACKEND", &c.StorageBackend)
	str("STORAGE_DIR", &c.StorageDir)
	str("USER_DATA_DIR", &c.StorageDir)
	str("STORAGE_BUCKET", &c.StorageBucket)
	str("STORAGE_REGION", &c.StorageRegion)
	str("STORAGE_ENDPOINT", &c.StorageEndpoint)
	str("STORAGE_PREFIX", &c.StoragePrefix)
	num("MAX_UPLOAD_MB", &c.MaxUploadMB)

	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_PATH", &c.LogPath)
	num("LOG_MAX_SIZE_MB", &c.LogMaxSizeMB)
	num("LOG_MAX_BACKUPS", &c.LogMaxBackups)
	num("LOG_MAX_AGE_DAYS", &c.LogMaxAgeDays)
	flag("LOG_COMPRESS", &c.LogCompress)

	str("TZ", &c.TimeZone)
	str("CHECKIN_TIME_ZONE", &c.TimeZone)
	flag("SELF_CHECKIN_REQUIRES_RECORDING", &c.SelfCheckinRequiresRecording)
	flag("ALLOW_STUDENT_SELF_CHECKIN", &c.AllowStudentSelfCheckin)

	str("ADMIN_NAME", &c.AdminName)
	str("ADMIN_PASSWORD", &c.AdminPassword)
	str("SENTRY_DSN", &c.SentryDSN)
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
