package config

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Import ImportConfig `yaml:"import" mapstructure:"import"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the SQLite database file.
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ImportConfig configures the bulk CSV importer.
type ImportConfig struct {
	DataDir        string `yaml:"data_dir" mapstructure:"data_dir"`
	BatchSize      int    `yaml:"batch_size" mapstructure:"batch_size"`
	TypesBatchSize int    `yaml:"types_batch_size" mapstructure:"types_batch_size"`
	ProgressEvery  int    `yaml:"progress_every" mapstructure:"progress_every"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port         int      `yaml:"port" mapstructure:"port"`
	Debug        bool     `yaml:"debug" mapstructure:"debug"`
	StaticDir    string   `yaml:"static_dir" mapstructure:"static_dir"`
	CORSOrigins  []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	CacheEntries int      `yaml:"cache_entries" mapstructure:"cache_entries"`
	CacheTTLSecs int      `yaml:"cache_ttl_secs" mapstructure:"cache_ttl_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, config file and environment.
func Load() (*Config, error) {
	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("RISINGFRUIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Deployment-level overrides without the prefix.
	for key, env := range map[string]string{
		"store.path":   "DATABASE_PATH",
		"server.port":  "PORT",
		"server.debug": "DEBUG",
	} {
		prefixed := "RISINGFRUIT_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, env); err != nil {
			return nil, eris.Wrapf(err, "config: bind env %s", env)
		}
	}

	// Defaults
	v.SetDefault("store.path", "data/risingfruit.db")
	v.SetDefault("import.data_dir", "data")
	v.SetDefault("import.batch_size", 5000)
	v.SetDefault("import.types_batch_size", 1000)
	v.SetDefault("import.progress_every", 100000)
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.debug", false)
	v.SetDefault("server.static_dir", "frontend/dist")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.cache_entries", 256)
	v.SetDefault("server.cache_ttl_secs", 300)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if cfg.Server.Debug {
		cfg.Log.Level = "debug"
		cfg.Log.Format = "console"
	}

	return &cfg, nil
}

// Validate checks the settings a command needs. Mode is "import" or "serve".
func (c *Config) Validate(mode string) error {
	var problems []string
	if c.Store.Path == "" {
		problems = append(problems, "store.path is required")
	}

	switch mode {
	case "import":
		if c.Import.DataDir == "" {
			problems = append(problems, "import.data_dir is required")
		}
		if c.Import.BatchSize <= 0 {
			problems = append(problems, "import.batch_size must be positive")
		}
		if c.Import.TypesBatchSize <= 0 {
			problems = append(problems, "import.types_batch_size must be positive")
		}
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			problems = append(problems, "server.port must be between 1 and 65535")
		}
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
