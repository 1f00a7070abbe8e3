package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Mongo struct {
	URI         string `yaml:"uri"`
	DB          string `yaml:"db"`
	Contracts   string `yaml:"contracts"`
	Idempotency string `yaml:"idempotency"`
	Outbox      string `yaml:"outbox"`
}

type Outbox struct {
	SweepInterval time.Duration `yaml:"sweepInterval"`
	Batch         int64         `yaml:"batch"`
}

type Webhook struct {
	URL    string `yaml:"url"`
	Secret string `yaml:"secret"`
}

type Config struct {
	Port       string   `yaml:"port"`
	APIKeys    string   `yaml:"apiKeys"` // "k1,k2,..."
	Rate       int      `yaml:"rate"`
	Admins     []string `yaml:"admins"`
	Mongo      Mongo    `yaml:"mongo"`
	Outbox     Outbox   `yaml:"outbox"`
	Webhook    Webhook  `yaml:"webhook"`
	ChainCheck string   `yaml:"chainCheck"` // tx checker base URL, empty disables
}

// Load reads the optional YAML file, then lets env vars override. Missing
// file is fine; everything has a default.
func Load(path string) (Config, error) {
	cfg := Config{
		Port: "8080",
		Rate: 60,
		Mongo: Mongo{
			URI:         "mongodb://localhost:27017",
			DB:          "ledger",
			Contracts:   "contracts",
			Idempotency: "idempotency",
			Outbox:      "notifications",
		},
		Outbox: Outbox{SweepInterval: 5 * time.Second, Batch: 100},
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return Config{}, err
		}
		if err == nil {
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return Config{}, err
			}
		}
	}

	cfg.Port = Getenv("PORT", cfg.Port)
	cfg.APIKeys = Getenv("API_KEYS", cfg.APIKeys)
	cfg.Rate = GetInt("RATE", cfg.Rate)
	if v := os.Getenv("ADMINS"); v != "" {
		cfg.Admins = splitCSV(v)
	}
	cfg.Mongo.URI = Getenv("MONGO_URI", cfg.Mongo.URI)
	cfg.Mongo.DB = Getenv("MONGO_DB", cfg.Mongo.DB)
	cfg.Mongo.Contracts = Getenv("MONGO_CONTRACTS", cfg.Mongo.Contracts)
	cfg.Webhook.URL = Getenv("WEBHOOK_URL", cfg.Webhook.URL)
	cfg.Webhook.Secret = Getenv("WEBHOOK_SECRET", cfg.Webhook.Secret)
	cfg.ChainCheck = Getenv("CHAIN_CHECK_URL", cfg.ChainCheck)
	if n := GetInt("SWEEP_SECONDS", 0); n > 0 {
		cfg.Outbox.SweepInterval = time.Duration(n) * time.Second
	}
	return cfg, nil
}

func Getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func GetInt(k string, d int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return d
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
