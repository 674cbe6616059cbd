package config

import (
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Server       Server
	Database     Database
	Redis        Redis
	Auth         Auth
	Attempt      Attempt
	GeminiApiKey string
}

type Server struct {
	Port string
}

type Database struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

type Redis struct {
	Host string
	Port string
}

type Auth struct {
	JWTSecret string
	TokenTTL  time.Duration
}

type Attempt struct {
	// SweepInterval is how often in-progress attempts are checked for
	// expired deadlines on the server side.
	SweepInterval time.Duration
	StatsCacheTTL time.Duration
}

func NewConfig() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("JWT_TTL_MINUTES", 60)
	viper.SetDefault("ATTEMPT_SWEEP_INTERVAL_SECONDS", 30)
	viper.SetDefault("ATTEMPT_STATS_CACHE_TTL_SECONDS", 30)

	if err := viper.ReadInConfig(); err != nil {
		log.Warn().Err(err).Msg("Error reading config file")
	}

	var config Config

	config.Server.Port = viper.GetString("SERVER_PORT")
	config.Database.Host = viper.GetString("DATABASE_HOST")
	config.Database.Port = viper.GetString("DATABASE_PORT")
	config.Database.User = viper.GetString("DATABASE_USER")
	config.Database.Password = viper.GetString("DATABASE_PASSWORD")
	config.Database.Name = viper.GetString("DATABASE_NAME")

	config.Redis.Host = viper.GetString("REDIS_HOST")
	config.Redis.Port = viper.GetString("REDIS_PORT")

	config.Auth.JWTSecret = viper.GetString("JWT_SECRET")
	config.Auth.TokenTTL = time.Duration(viper.GetInt("JWT_TTL_MINUTES")) * time.Minute

	config.Attempt.SweepInterval = time.Duration(viper.GetInt("ATTEMPT_SWEEP_INTERVAL_SECONDS")) * time.Second
	config.Attempt.StatsCacheTTL = time.Duration(viper.GetInt("ATTEMPT_STATS_CACHE_TTL_SECONDS")) * time.Second

	config.GeminiApiKey = viper.GetString("GEMINI_API_KEY")

	log.Info().Str("port", config.Server.Port).Str("db_host", config.Database.Host).Msg("Config loaded")
	return &config, nil
}
