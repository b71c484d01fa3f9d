package config

import (
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	Addr      string `env:"ADDR" env-default:":8080"`
	// RedisAddr empty means the in-process store; set it to opt into the
	// remote backend.
	RedisAddr string `env:"REDIS_ADDR" env-default:""`

	RoomTTL        time.Duration `env:"ROOM_TTL" env-default:"2h"`
	ReconnectGrace time.Duration `env:"RECONNECT_GRACE" env-default:"60s"`
	MaxPlayers     int           `env:"MAX_PLAYERS" env-default:"8"`
}

// Load reads the environment, letting a local .env file seed it first when
// one exists.
func Load() (Config, error) {
	_ = godotenv.Load()
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
