package config

import (
	"log"
	"reflect"
	"time"

	"github.com/caarlos0/env/v6"

	"github.com/quorumsig/multisigd/pkg/core"
)

type Config struct {
	API struct {
		Port int `env:"PORT" envDefault:"8081"`
	}
	App struct {
		LogLevel    string       `env:"LOG_LEVEL" envDefault:"INFO"`
		MetricsPort int          `env:"METRICS_PORT" envDefault:"9010"`
		Network     core.Network `env:"NETWORK" envDefault:"testnet"`
		SentryDSN   string       `env:"SENTRY_DSN"`
	}
	Storage struct {
		// DatabaseURL selects Postgres; empty keeps everything in memory.
		DatabaseURL string `env:"DATABASE_URL"`
	}
	Submit struct {
		URL       string        `env:"SUBMIT_API_URL" envDefault:"http://localhost:8090/api/submit/tx"`
		ProjectID string        `env:"SUBMIT_API_PROJECT_ID"`
		Timeout   time.Duration `env:"SUBMIT_TIMEOUT" envDefault:"30s"`
		Attempts  uint          `env:"SUBMIT_ATTEMPTS" envDefault:"3"`
	}
	Auth struct {
		// Secret enables bearer authentication when set.
		Secret   string        `env:"AUTH_SECRET"`
		TokenTTL time.Duration `env:"AUTH_TOKEN_TTL" envDefault:"12h"`
	}
	Cache struct {
		IdentitySize int           `env:"IDENTITY_CACHE_SIZE" envDefault:"4096"`
		IdentityTTL  time.Duration `env:"IDENTITY_CACHE_TTL" envDefault:"1h"`
		WalletItems  int64         `env:"WALLET_CACHE_ITEMS" envDefault:"10000"`
		WalletTTL    time.Duration `env:"WALLET_CACHE_TTL" envDefault:"10m"`
	}
}

func Load() Config {
	var c Config
	if err := env.ParseWithFuncs(&c, map[reflect.Type]env.ParserFunc{
		reflect.TypeOf(core.Network(0)): func(v string) (interface{}, error) {
			return core.ParseNetwork(v)
		},
	}); err != nil {
		log.Panicf("[‼️  Config parsing failed] %+v\n", err)
	}
	return c
}
