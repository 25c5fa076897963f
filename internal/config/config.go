// Package config assembles the service configuration from, in increasing priority:
// built-in defaults, an optional JSON file, environment variables (including a
// .env file) and command-line flags.
package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	env "github.com/caarlos0/env/v6"
	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds every setting of the service.
type Config struct {
	RunAddr             string        `env:"SERVER_ADDRESS" json:"server_address" validate:"hostname_port"`
	LogLevel            string        `env:"LOG_LEVEL" json:"log_level" validate:"loglevel"`
	DBFileName          string        `env:"FILE_STORAGE_PATH" json:"file_storage_path" validate:"omitempty,filepath"`
	MemoryStorage       bool          `env:"MEMORY_STORAGE" json:"memory_storage"`
	DatabaseDSN         string        `env:"DATABASE_DSN" json:"database_dsn"`
	DBConnectionTimeout time.Duration `env:"DB_CONNECTION_TIMEOUT" json:"-" validate:"gt=0"`
	MigrationsDir       string        `env:"MIGRATIONS_DIR" json:"migrations_dir"`
	RedisAddr           string        `env:"REDIS_ADDR" json:"redis_addr"`
	RedisKey            string        `env:"REDIS_KEY" json:"redis_key"`
	CORSAllowedOrigins  []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," json:"cors_allowed_origins" validate:"min=1"`
	ShutdownTimeout     time.Duration `env:"SHUTDOWN_TIMEOUT" json:"-" validate:"gt=0"`
}

// configFileEnv names the environment variable pointing at the JSON config file.
const configFileEnv = "CONFIG"

var defaultConfig = Config{
	RunAddr:             ":3000",
	LogLevel:            "info",
	DBFileName:          "data.json",
	DatabaseDSN:         "",
	DBConnectionTimeout: 10 * time.Second,
	MigrationsDir:       "cmd/shopdoc/migrations",
	RedisAddr:           "",
	RedisKey:            "",
	CORSAllowedOrigins:  []string{"*"},
	ShutdownTimeout:     10 * time.Second,
}

type InitOption func(*initOptions)

type initOptions struct {
	disableFlagsParsing bool
}

func WithDisableFlagsParsing(disableFlagsParsing bool) InitOption {
	return func(options *initOptions) {
		options.disableFlagsParsing = disableFlagsParsing
	}
}

// New builds and validates the configuration.
func New(optionsProto ...InitOption) (*Config, error) {
	options := &initOptions{
		disableFlagsParsing: false,
	}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	err := godotenv.Load()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("unable to load .env file: %w", err)
	}

	var fromFlags Config
	var configFile string
	setFlags := map[string]bool{}
	if !options.disableFlagsParsing {
		flagSet := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
		flagSet.StringVar(&fromFlags.RunAddr, "a", "", "address and port to run server")
		flagSet.StringVar(&fromFlags.LogLevel, "l", "", "logger level")
		flagSet.StringVar(&fromFlags.DBFileName, "f", "", "JSON file name with the users document")
		flagSet.StringVar(&fromFlags.DatabaseDSN, "d", "", "a string with the database connection details")
		flagSet.StringVar(&fromFlags.RedisAddr, "r", "", "Redis address (host:port or redis:// URL)")
		flagSet.BoolVar(&fromFlags.MemoryStorage, "m", false, "keep the document in memory instead of the JSON file")
		flagSet.StringVar(&configFile, "c", "", "JSON configuration file")
		if err := flagSet.Parse(os.Args[1:]); err != nil {
			return nil, err
		}
		flagSet.Visit(func(f *flag.Flag) {
			setFlags[f.Name] = true
		})
	}

	values := Config{}
	applyDefaults(&values, defaultConfig)

	if configFile == "" {
		configFile = os.Getenv(configFileEnv)
	}
	if configFile != "" {
		if err := values.applyJSONFile(configFile); err != nil {
			return nil, err
		}
	}

	var fromEnv Config
	if err := env.Parse(&fromEnv); err != nil {
		return nil, err
	}
	applyOverrides(&values, fromEnv)

	if setFlags["a"] {
		values.RunAddr = fromFlags.RunAddr
	}
	if setFlags["l"] {
		values.LogLevel = fromFlags.LogLevel
	}
	if setFlags["f"] {
		values.DBFileName = fromFlags.DBFileName
	}
	if setFlags["d"] {
		values.DatabaseDSN = fromFlags.DatabaseDSN
	}
	if setFlags["r"] {
		values.RedisAddr = fromFlags.RedisAddr
	}
	if setFlags["m"] {
		values.MemoryStorage = fromFlags.MemoryStorage
	}

	if err := values.validate(); err != nil {
		return nil, err
	}

	return &values, nil
}

func applyDefaults(values *Config, defaults Config) {
	applyOverrides(values, defaults)
}

// applyOverrides copies every non-zero field of src into dst.
func applyOverrides(dst *Config, src Config) {
	if src.RunAddr != "" {
		dst.RunAddr = src.RunAddr
	}
	if src.LogLevel != "" {
		dst.LogLevel = src.LogLevel
	}
	if src.DBFileName != "" {
		dst.DBFileName = src.DBFileName
	}
	if src.DatabaseDSN != "" {
		dst.DatabaseDSN = src.DatabaseDSN
	}
	if src.MemoryStorage {
		dst.MemoryStorage = true
	}
	if src.DBConnectionTimeout != 0 {
		dst.DBConnectionTimeout = src.DBConnectionTimeout
	}
	if src.MigrationsDir != "" {
		dst.MigrationsDir = src.MigrationsDir
	}
	if src.RedisAddr != "" {
		dst.RedisAddr = src.RedisAddr
	}
	if src.RedisKey != "" {
		dst.RedisKey = src.RedisKey
	}
	if len(src.CORSAllowedOrigins) > 0 {
		dst.CORSAllowedOrigins = trimAll(src.CORSAllowedOrigins)
	}
	if src.ShutdownTimeout != 0 {
		dst.ShutdownTimeout = src.ShutdownTimeout
	}
}

func (c *Config) applyJSONFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("unable to read config file %s: %w", path, err)
	}

	var fromFile Config
	if err := json.Unmarshal(data, &fromFile); err != nil {
		return fmt.Errorf("unable to parse config file %s: %w", path, err)
	}
	applyOverrides(c, fromFile)

	return nil
}

func trimAll(items []string) []string {
	result := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			result = append(result, item)
		}
	}
	return result
}

func validateFilePath(fieldLevel validator.FieldLevel) bool {
	path := fieldLevel.Field().String()
	info, err := os.Stat(path)
	if err != nil {
		return os.IsNotExist(err)
	}

	return !info.IsDir()
}

func validateLogLevel(fieldLevel validator.FieldLevel) bool {
	value := fieldLevel.Field().String()

	allowedLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
		"fatal": true,
	}

	return allowedLogLevels[value]
}

func (c *Config) validate() error {
	validate := validator.New()

	err := validate.RegisterValidation("loglevel", validateLogLevel)
	if err != nil {
		return err
	}

	err = validate.RegisterValidation("filepath", validateFilePath)
	if err != nil {
		return err
	}

	return validate.Struct(c)
}
