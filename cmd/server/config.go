package main

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"motorsport-api/internal/auth"
	"motorsport-api/internal/server"
)

type cliFlags struct {
	addr                   *string
	mode                   *string
	dataPath               *string
	storageDriver          *string
	postgresDSN            *string
	postgresMaxConns       *int
	postgresMinConns       *int
	postgresAcquireTimeout *time.Duration
	postgresMaxLifetime    *time.Duration
	postgresMaxIdle        *time.Duration
	postgresHealthInterval *time.Duration
	postgresAppName        *string
	postgresMigrate        *bool
	blacklistDriver        *string
	blacklistDSN           *string
	blacklistPurge         *time.Duration
	corsOrigins            *string
	pageSize               *int
	tlsCert                *string
	tlsKey                 *string
	logLevel               *string
	logFormat              *string
	shutdownTimeout        *time.Duration
}

func registerFlags(fs *flag.FlagSet) cliFlags {
	return cliFlags{
		addr:                   fs.String("addr", "", "HTTP listen address"),
		mode:                   fs.String("mode", "", "runtime mode (development or production)"),
		dataPath:               fs.String("data", "", "path to JSON datastore"),
		storageDriver:          fs.String("storage-driver", "", "datastore driver (json or postgres)"),
		postgresDSN:            fs.String("postgres-dsn", "", "Postgres connection string"),
		postgresMaxConns:       fs.Int("postgres-max-conns", 0, "maximum connections in the Postgres pool"),
		postgresMinConns:       fs.Int("postgres-min-conns", 0, "minimum idle connections maintained by the Postgres pool"),
		postgresAcquireTimeout: fs.Duration("postgres-acquire-timeout", 0, "timeout when acquiring a Postgres connection"),
		postgresMaxLifetime:    fs.Duration("postgres-max-conn-lifetime", 0, "maximum lifetime for a pooled Postgres connection"),
		postgresMaxIdle:        fs.Duration("postgres-max-conn-idle", 0, "maximum idle time for a pooled Postgres connection"),
		postgresHealthInterval: fs.Duration("postgres-health-interval", 0, "interval between Postgres health checks"),
		postgresAppName:        fs.String("postgres-app-name", "", "application_name reported to Postgres"),
		postgresMigrate:        fs.Bool("postgres-migrate", false, "apply the embedded schema on startup"),
		blacklistDriver:        fs.String("blacklist-driver", "", "refresh token blacklist driver (memory, postgres or redis)"),
		blacklistDSN:           fs.String("blacklist-postgres-dsn", "", "Postgres DSN for the token blacklist"),
		blacklistPurge:         fs.Duration("blacklist-purge-interval", 0, "interval between expired blacklist purges"),
		corsOrigins:            fs.String("cors-origins", "", "comma separated list of allowed CORS origins"),
		pageSize:               fs.Int("page-size", 0, "default page size for paginated lists"),
		tlsCert:                fs.String("tls-cert", "", "path to TLS certificate file"),
		tlsKey:                 fs.String("tls-key", "", "path to TLS private key file"),
		logLevel:               fs.String("log-level", "", "log level (debug, info, warn, error)"),
		logFormat:              fs.String("log-format", "", "log format (json or text)"),
		shutdownTimeout:        fs.Duration("shutdown-timeout", 0, "graceful shutdown timeout"),
	}
}

type postgresConfig struct {
	DSN             string
	MaxConns        int
	MinConns        int
	AcquireTimeout  time.Duration
	MaxConnLifetime time.Duration
	MaxConnIdle     time.Duration
	HealthInterval  time.Duration
	AppName         string
	Migrate         bool
}

type redisConfig struct {
	Addr     string
	Password string
	DB       int
}

type config struct {
	Addr                   string
	Mode                   string
	LogLevel               string
	LogFormat              string
	StorageDriver          string
	DataPath               string
	Postgres               postgresConfig
	Redis                  redisConfig
	BlacklistDriver        string
	BlacklistDSN           string
	BlacklistPurgeInterval time.Duration
	Tokens                 auth.TokenConfig
	GeneratedSigningKey    bool
	Cookies                auth.CookieConfig
	RateLimit              server.RateLimitConfig
	CORSOrigins            []string
	HSTSMaxAge             time.Duration
	PageSize               int
	TLSCert                string
	TLSKey                 string
	ShutdownTimeout        time.Duration
}

// resolveConfig merges flags with their environment fallbacks. Flags win when
// set. The log settings are always populated so callers can report errors.
func resolveConfig(f cliFlags) (config, error) {
	cfg := config{
		LogLevel:  firstNonEmpty(*f.logLevel, os.Getenv("LOG_LEVEL"), "info"),
		LogFormat: firstNonEmpty(*f.logFormat, os.Getenv("LOG_FORMAT")),
		Mode:      modeValue(*f.mode, os.Getenv("MOTORSPORT_MODE")),
	}
	cfg.Addr = firstNonEmpty(*f.addr, os.Getenv("MOTORSPORT_ADDR"), ":8000")
	cfg.TLSCert = firstNonEmpty(*f.tlsCert, os.Getenv("MOTORSPORT_TLS_CERT"))
	cfg.TLSKey = firstNonEmpty(*f.tlsKey, os.Getenv("MOTORSPORT_TLS_KEY"))
	cfg.ShutdownTimeout = resolveDuration(*f.shutdownTimeout, "MOTORSPORT_SHUTDOWN_TIMEOUT", 15*time.Second)
	cfg.PageSize = resolveInt(*f.pageSize, "PAGE_SIZE")
	cfg.CORSOrigins = splitAndTrim(firstNonEmpty(*f.corsOrigins, os.Getenv("CORS_ALLOWED_ORIGINS")))
	// Zero keeps the one year default; a negative duration turns HSTS off.
	cfg.HSTSMaxAge = resolveDuration(0, "MOTORSPORT_HSTS_MAX_AGE", 0)

	driver, err := resolveStorageDriver(*f.storageDriver, os.Getenv("MOTORSPORT_STORAGE_DRIVER"))
	if err != nil {
		return cfg, err
	}
	cfg.StorageDriver = driver
	cfg.DataPath = firstNonEmpty(*f.dataPath, os.Getenv("MOTORSPORT_DATA"), "data/store.json")
	cfg.Postgres = postgresConfig{
		DSN:             resolvePostgresDSN(*f.postgresDSN),
		MaxConns:        resolveInt(*f.postgresMaxConns, "MOTORSPORT_POSTGRES_MAX_CONNS"),
		MinConns:        resolveInt(*f.postgresMinConns, "MOTORSPORT_POSTGRES_MIN_CONNS"),
		AcquireTimeout:  resolveDuration(*f.postgresAcquireTimeout, "MOTORSPORT_POSTGRES_ACQUIRE_TIMEOUT", 0),
		MaxConnLifetime: resolveDuration(*f.postgresMaxLifetime, "MOTORSPORT_POSTGRES_MAX_CONN_LIFETIME", 0),
		MaxConnIdle:     resolveDuration(*f.postgresMaxIdle, "MOTORSPORT_POSTGRES_MAX_CONN_IDLE", 0),
		HealthInterval:  resolveDuration(*f.postgresHealthInterval, "MOTORSPORT_POSTGRES_HEALTH_CHECK_INTERVAL", 0),
		AppName:         firstNonEmpty(*f.postgresAppName, os.Getenv("MOTORSPORT_POSTGRES_APP_NAME"), "motorsport-api"),
		Migrate:         resolveBool(*f.postgresMigrate, "MOTORSPORT_POSTGRES_MIGRATE"),
	}
	if cfg.StorageDriver == "postgres" && cfg.Postgres.DSN == "" {
		return cfg, errors.New("postgres storage selected without DSN: set DATABASE_URL, MOTORSPORT_POSTGRES_DSN or --postgres-dsn")
	}
	if cfg.Mode == "production" && cfg.StorageDriver != "postgres" {
		return cfg, fmt.Errorf("production mode requires the postgres datastore driver, got %q", cfg.StorageDriver)
	}

	cfg.Redis = redisConfig{
		Addr:     strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       resolveInt(0, "REDIS_DB"),
	}
	blacklist, err := resolveBlacklistConfig(*f.blacklistDriver, os.Getenv("MOTORSPORT_BLACKLIST_DRIVER"), firstNonEmpty(*f.blacklistDSN, os.Getenv("MOTORSPORT_BLACKLIST_POSTGRES_DSN")), cfg.Postgres.DSN, cfg.Redis.Addr)
	if err != nil {
		return cfg, err
	}
	cfg.BlacklistDriver = blacklist.Driver
	cfg.BlacklistDSN = blacklist.DSN
	cfg.BlacklistPurgeInterval = resolveDuration(*f.blacklistPurge, "MOTORSPORT_BLACKLIST_PURGE_INTERVAL", defaultBlacklistPurgeInterval)

	if cfg.Tokens, cfg.GeneratedSigningKey, err = resolveTokenConfig(cfg.Mode); err != nil {
		return cfg, err
	}
	if cfg.Cookies, err = resolveCookieConfig(); err != nil {
		return cfg, err
	}

	rates, err := resolveThrottleRates()
	if err != nil {
		return cfg, err
	}
	cfg.RateLimit = server.RateLimitConfig{Rates: rates}
	if resolveBool(false, "MOTORSPORT_RATE_LIMIT_REDIS") {
		if cfg.Redis.Addr == "" {
			return cfg, errors.New("MOTORSPORT_RATE_LIMIT_REDIS requires REDIS_ADDR")
		}
		cfg.RateLimit.Redis = &server.RedisStoreConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Timeout:  2 * time.Second,
		}
	}
	return cfg, nil
}

func modeValue(flagMode, envMode string) string {
	mode := strings.ToLower(firstNonEmpty(flagMode, envMode))
	if mode == "" {
		mode = "development"
	}
	return mode
}

func resolveStorageDriver(flagValue, envValue string) (string, error) {
	driver := strings.ToLower(firstNonEmpty(flagValue, envValue, "json"))
	switch driver {
	case "json", "postgres":
		return driver, nil
	default:
		return "", fmt.Errorf("unsupported storage driver %q", driver)
	}
}

func resolvePostgresDSN(flagValue string) string {
	return firstNonEmpty(flagValue, os.Getenv("MOTORSPORT_POSTGRES_DSN"), os.Getenv("DATABASE_URL"))
}

type blacklistConfig struct {
	Driver string
	DSN    string
}

func resolveBlacklistConfig(flagDriver, envDriver, explicitDSN, storageDSN, redisAddr string) (blacklistConfig, error) {
	driver := strings.ToLower(firstNonEmpty(flagDriver, envDriver, "memory"))
	switch driver {
	case "memory":
		return blacklistConfig{Driver: driver}, nil
	case "postgres":
		dsn := firstNonEmpty(explicitDSN, storageDSN)
		if dsn == "" {
			return blacklistConfig{}, errors.New("postgres blacklist selected without DSN")
		}
		return blacklistConfig{Driver: driver, DSN: dsn}, nil
	case "redis":
		if strings.TrimSpace(redisAddr) == "" {
			return blacklistConfig{}, errors.New("redis blacklist selected without REDIS_ADDR")
		}
		return blacklistConfig{Driver: driver}, nil
	default:
		return blacklistConfig{}, fmt.Errorf("unsupported blacklist driver %q", driver)
	}
}

// resolveTokenConfig reads the JWT settings. Outside production a missing
// signing key is replaced by a random one and reported through the bool.
func resolveTokenConfig(mode string) (auth.TokenConfig, bool, error) {
	cfg := auth.DefaultTokenConfig()
	generated := false
	if key := os.Getenv("JWT_SIGNING_KEY"); strings.TrimSpace(key) != "" {
		cfg.SigningKey = []byte(key)
	} else if mode == "production" {
		return cfg, false, errors.New("JWT_SIGNING_KEY is required in production mode")
	} else {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			return cfg, false, fmt.Errorf("generate signing key: %w", err)
		}
		cfg.SigningKey = []byte(hex.EncodeToString(buf))
		generated = true
	}

	if minutes := resolveInt(0, "JWT_ACCESS_TOKEN_MINUTES"); minutes > 0 {
		cfg.AccessTTL = time.Duration(minutes) * time.Minute
	}
	if days := resolveInt(0, "JWT_REFRESH_TOKEN_DAYS"); days > 0 {
		cfg.RefreshTTL = time.Duration(days) * 24 * time.Hour
	}
	var err error
	if cfg.RotateRefresh, err = envBool("JWT_ROTATE_REFRESH_TOKENS", true); err != nil {
		return cfg, false, err
	}
	if cfg.BlacklistAfterRotation, err = envBool("JWT_BLACKLIST_AFTER_ROTATION", true); err != nil {
		return cfg, false, err
	}
	return cfg, generated, nil
}

func resolveCookieConfig() (auth.CookieConfig, error) {
	cookies := auth.DefaultCookieConfig()
	cookies.AccessName = firstNonEmpty(os.Getenv("JWT_AUTH_COOKIE"), cookies.AccessName)
	cookies.RefreshName = firstNonEmpty(os.Getenv("JWT_REFRESH_COOKIE"), cookies.RefreshName)
	cookies.Domain = strings.TrimSpace(os.Getenv("JWT_COOKIE_DOMAIN"))

	secure, err := auth.ParseSecureMode(os.Getenv("JWT_COOKIE_SECURE"))
	if err != nil {
		return cookies, err
	}
	cookies.Secure = secure
	sameSite, err := auth.ParseSameSite(os.Getenv("JWT_COOKIE_SAMESITE"))
	if err != nil {
		return cookies, err
	}
	cookies.SameSite = sameSite
	return cookies, nil
}

var throttleEnv = map[server.Scope]string{
	server.ScopeAnon:         "THROTTLE_ANON",
	server.ScopeUser:         "THROTTLE_USER",
	server.ScopeAuthLogin:    "THROTTLE_AUTH_LOGIN",
	server.ScopeAuthRefresh:  "THROTTLE_AUTH_REFRESH",
	server.ScopeAuthRegister: "THROTTLE_AUTH_REGISTER",
	server.ScopeAuthLogout:   "THROTTLE_AUTH_LOGOUT",
}

// resolveThrottleRates starts from the stock budgets and applies any
// THROTTLE_* overrides. A variable set to "" or "none" disables its scope.
func resolveThrottleRates() (map[server.Scope]server.Rate, error) {
	rates := server.DefaultRates()
	for scope, key := range throttleEnv {
		raw, ok := os.LookupEnv(key)
		if !ok {
			continue
		}
		rate, err := server.ParseRate(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		rates[scope] = rate
	}
	return rates, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func splitAndTrim(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func resolveInt(flagValue int, envKey string) int {
	if flagValue > 0 {
		return flagValue
	}
	if env := os.Getenv(envKey); env != "" {
		if value, err := strconv.Atoi(strings.TrimSpace(env)); err == nil {
			return value
		}
	}
	return 0
}

func resolveDuration(flagValue time.Duration, envKey string, fallback time.Duration) time.Duration {
	if flagValue > 0 {
		return flagValue
	}
	if env := os.Getenv(envKey); env != "" {
		if value, err := time.ParseDuration(strings.TrimSpace(env)); err == nil {
			return value
		}
	}
	if fallback > 0 {
		return fallback
	}
	return 0
}

func resolveBool(flagValue bool, envKey string) bool {
	if flagValue {
		return true
	}
	value, err := envBool(envKey, false)
	return err == nil && value
}

func envBool(key string, fallback bool) (bool, error) {
	env, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(env) == "" {
		return fallback, nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(env))
	if err != nil {
		return fallback, fmt.Errorf("invalid %s %q", key, env)
	}
	return value, nil
}
