package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr        string
	TLSCert     string
	TLSKey      string
	TokenKey    []byte
	DatabaseURL string

	RateLimit float64 // requests per second per IP on /api
	RateBurst int
	// Optimize and batch endpoints get their own, tighter limiter.
	SolveRateLimit float64
	SolveRateBurst int

	MaxIterations int
	MaxNodes      int
}

var ErrMissingTokenKey = errors.New("config: TOKEN_KEY environment variable is not set")

// Load reads .env files (a missing file is not an error) and then the
// process environment.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil {
		log.Printf("config: no .env loaded: %v", err)
	}
	return FromEnv()
}

func FromEnv() (Config, error) {
	c := Config{
		Addr:        getenv("ADDR", ":443"),
		TLSCert:     os.Getenv("TLS_CERT"),
		TLSKey:      os.Getenv("TLS_KEY"),
		TokenKey:    []byte(os.Getenv("TOKEN_KEY")),
		DatabaseURL: os.Getenv("DATABASE_URL"),
	}
	if len(c.TokenKey) == 0 {
		return Config{}, ErrMissingTokenKey
	}

	var err error
	if c.RateLimit, err = floatEnv("RATE_LIMIT", 1); err != nil {
		return Config{}, err
	}
	if c.RateBurst, err = intEnv("RATE_BURST", 3); err != nil {
		return Config{}, err
	}
	if c.SolveRateLimit, err = floatEnv("SOLVE_RATE_LIMIT", 0.2); err != nil {
		return Config{}, err
	}
	if c.SolveRateBurst, err = intEnv("SOLVE_RATE_BURST", 2); err != nil {
		return Config{}, err
	}
	if c.MaxIterations, err = intEnv("MAX_ITERATIONS", 500); err != nil {
		return Config{}, err
	}
	if c.MaxNodes, err = intEnv("MAX_NODES", 400); err != nil {
		return Config{}, err
	}
	return c, nil
}

// TLS reports whether both certificate and key are configured.
func (c Config) TLS() bool { return c.TLSCert != "" && c.TLSKey != "" }

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func intEnv(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("config: %s must be a positive integer, got %q", key, v)
	}
	return n, nil
}

func floatEnv(key string, def float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return 0, fmt.Errorf("config: %s must be a positive number, got %q", key, v)
	}
	return f, nil
}
