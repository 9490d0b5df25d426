package config

import (
	"flag"
	"fmt"
	"github.com/ilyakaznacheev/cleanenv"
	"log"
	"os"
	"time"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

type Config struct {
	Env            string         `yaml:"env" env:"ENV" env-default:"local"`
	StorageDriver  string         `yaml:"storage_driver" env:"STORAGE_DRIVER" env-default:"postgres"`
	StoragePath    string         `yaml:"storage_path" env:"STORAGE_PATH"`
	MigrationsPath string         `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"./migrations"`
	GRPC           GRPCConfig     `yaml:"grpc"`
	HTTP           HTTPConfig     `yaml:"http"`
	Auth           AuthConfig     `yaml:"auth"`
	Voting         VotingConfig   `yaml:"voting"`
	Notifier       NotifierConfig `yaml:"notifier"`
	// SeedUsers preloads the user registry of the memory driver.
	SeedUsers []SeedUser `yaml:"seed_users"`
}

type SeedUser struct {
	ID       string  `yaml:"id"`
	Name     string  `yaml:"name"`
	Inactive bool    `yaml:"inactive"`
	Party    *string `yaml:"party"`
}

type GRPCConfig struct {
	Port int `yaml:"port" env:"GRPC_PORT" env-default:"44045"`
}

type HTTPConfig struct {
	Port         int      `yaml:"port" env:"HTTP_PORT" env-default:"8080"`
	AllowOrigins []string `yaml:"allow_origins" env:"HTTP_ALLOW_ORIGINS" env-separator:","`
}

type AuthConfig struct {
	Secret string `yaml:"secret" env:"AUTH_SECRET" env-required:"true"`
}

// VotingConfig tunes the voting engine itself.
type VotingConfig struct {
	LockTimeout        time.Duration `yaml:"lock_timeout" env-default:"5s"`
	TallyWorkers       int64         `yaml:"tally_workers" env-default:"4"`
	TallyTimeout       time.Duration `yaml:"tally_timeout" env-default:"30s"`
	SimplePollDuration time.Duration `yaml:"simple_poll_duration" env-default:"72h"`
	CloseCheckInterval time.Duration `yaml:"close_check_interval" env-default:"1m"`
	WebappURL          string        `yaml:"webapp_url" env:"WEBAPP_URL"`
}

type NotifierConfig struct {
	WebhookURL string        `yaml:"webhook_url" env:"NOTIFIER_WEBHOOK_URL"`
	Timeout    time.Duration `yaml:"timeout" env-default:"10s"`
}

func MustLoad() *Config {
	path := fetchConfigPath()
	if path == "" {
		log.Fatal("config path is empty")
	}

	cfg, err := Load(path)
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return cfg
}

func Load(path string) (*Config, error) {
	const op = "config.Load"

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if c.StoragePath == "" {
			return fmt.Errorf("storage_path is required for driver %q", c.StorageDriver)
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.StorageDriver)
	}

	if c.Voting.TallyWorkers < 1 {
		return fmt.Errorf("voting.tally_workers must be positive")
	}

	durations := []struct {
		name string
		d    time.Duration
	}{
		{"voting.lock_timeout", c.Voting.LockTimeout},
		{"voting.tally_timeout", c.Voting.TallyTimeout},
		{"voting.simple_poll_duration", c.Voting.SimplePollDuration},
		{"voting.close_check_interval", c.Voting.CloseCheckInterval},
		{"notifier.timeout", c.Notifier.Timeout},
	}
	for _, d := range durations {
		if d.d <= 0 {
			return fmt.Errorf("%s must be positive", d.name)
		}
	}

	for i, u := range c.SeedUsers {
		if u.ID == "" {
			return fmt.Errorf("seed_users[%d]: id is empty", i)
		}
	}
	return nil
}

// fetchConfigPath resolves the config path from the --config flag or the
// CONFIG_PATH environment variable, in that order.
func fetchConfigPath() string {
	var res string

	flag.StringVar(&res, "config", "", "path to config file")
	flag.Parse()

	if res == "" {
		res = os.Getenv("CONFIG_PATH")
	}
	return res
}
