package config

import (
	"errors"
	"flag"
	"net"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr        string
	DBUrl       string
	TokenSecret string
	TokenTTL    time.Duration
	Debug       bool
}

func ParseFlags() (cfg Config, err error) {
	// flags win over environment, environment wins over .env
	_ = godotenv.Load()

	var host string
	flag.StringVar(&host, "host", envOr("QPOLL_HOST", "0.0.0.0"), "listen host name (default 0.0.0.0)")
	var port uint
	flag.UintVar(&port, "port", envUintOr("QPOLL_PORT", 80), "listen port number (default 80)")
	flag.StringVar(&cfg.DBUrl, "db-url", envOr("QPOLL_DB_URL", "qpoll.sqlite"), "path to SQLite3 DB file (default qpoll.sqlite)")
	flag.StringVar(&cfg.TokenSecret, "token-secret", os.Getenv("QPOLL_TOKEN_SECRET"), "secret key for token encryption and decryption")
	var ttl uint
	flag.UintVar(&ttl, "token-ttl", envUintOr("QPOLL_TOKEN_TTL", 120), "token TTL in seconds (default 120)")
	flag.BoolVar(&cfg.Debug, "debug", false, "log at DEBUG level")
	flag.Parse()

	cfg.Addr = net.JoinHostPort(host, strconv.Itoa(int(port)))
	cfg.TokenTTL = time.Duration(ttl) * time.Second

	if cfg.TokenSecret == "" {
		err = errors.New("missing parameter -token-secret (or QPOLL_TOKEN_SECRET)")
	}

	return
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envUintOr(key string, fallback uint) uint {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			return uint(n)
		}
	}
	return fallback
}

func (cfg Config) Url() (url string) {
	url = cfg.Addr
	url = regexp.MustCompile(`^0.0.0.0`).ReplaceAllString(url, "localhost")
	url = "http://" + url
	return
}
