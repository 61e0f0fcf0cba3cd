package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type MQConfig struct {
	// URL is optional; when empty no domain events are published.
	URL string `yaml:"url"`
}

type WhoisConfig struct {
	FetchTimeout   time.Duration `yaml:"fetch_timeout"`
	ThresholdDays  []int         `yaml:"threshold_days"`
	CooldownWindow time.Duration `yaml:"cooldown_window"`
}

type EmailConfig struct {
	ResendAPIKey string        `yaml:"resend_api_key"`
	FromAddress  string        `yaml:"from_address"`
	SendTimeout  time.Duration `yaml:"send_timeout"`
}

type SweepConfig struct {
	Interval time.Duration `yaml:"interval"`
	LockTTL  time.Duration `yaml:"lock_ttl"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
}

type Config struct {
	DB     DBConfig     `yaml:"db"`
	Redis  RedisConfig  `yaml:"redis"`
	MQ     MQConfig     `yaml:"mq"`
	Whois  WhoisConfig  `yaml:"whois"`
	Email  EmailConfig  `yaml:"email"`
	Sweep  SweepConfig  `yaml:"sweep"`
	Server ServerConfig `yaml:"server"`
}

func Load() *Config {
	path := os.Getenv("CONFIG_FILE")
	if path == "" {
		path = "config.yaml"
	}

	f, err := os.Open(path)
	if err != nil {
		log.Fatalf("failed to open %s: %v", path, err)
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		log.Fatalf("failed to decode %s: %v", path, err)
	}

	applyDefaults(&cfg)
	overrideFromEnv(&cfg)

	return &cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Whois.FetchTimeout == 0 {
		cfg.Whois.FetchTimeout = 15 * time.Second
	}
	if len(cfg.Whois.ThresholdDays) == 0 {
		cfg.Whois.ThresholdDays = []int{30, 7, 1}
	}
	if cfg.Whois.CooldownWindow == 0 {
		cfg.Whois.CooldownWindow = 12 * time.Hour
	}
	if cfg.Email.SendTimeout == 0 {
		cfg.Email.SendTimeout = 10 * time.Second
	}
	if cfg.Sweep.Interval == 0 {
		cfg.Sweep.Interval = time.Hour
	}
	if cfg.Sweep.LockTTL == 0 {
		cfg.Sweep.LockTTL = 30 * time.Minute
	}
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}
}

func overrideFromEnv(cfg *Config) {
	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.DB.Host = host
	}
	if port := os.Getenv("DB_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.DB.Port = p
		}
	}
	if user := os.Getenv("DB_USER"); user != "" {
		cfg.DB.User = user
	}
	if password := os.Getenv("DB_PASSWORD"); password != "" {
		cfg.DB.Password = password
	}
	if name := os.Getenv("DB_NAME"); name != "" {
		cfg.DB.Name = name
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.Redis.Password = password
	}

	if url := os.Getenv("MQ_URL"); url != "" {
		cfg.MQ.URL = url
	}

	if key := os.Getenv("RESEND_API_KEY"); key != "" {
		cfg.Email.ResendAPIKey = key
	}
	if from := os.Getenv("FROM_EMAIL"); from != "" {
		cfg.Email.FromAddress = from
	}

	if port := os.Getenv("SERVER_PORT"); port != "" {
		cfg.Server.Port = port
	}
}
