package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// MinGoVersion is the oldest runtime the service is validated against.
const MinGoVersion = "go1.23"

type Config struct {
	Address        string
	Env            string
	AllowedOrigins []string

	// Replicate provider configuration
	ReplicateAPIURL   string
	ReplicateAPIToken string
	ClientAgent       string

	// Local persistence for the gallery
	DataDir string

	// Optional job-record database
	DatabaseURL string

	// Optional S3-compatible upload storage
	UploadEndpoint      string
	UploadBucket        string
	UploadAccessKeyID   string
	UploadAccessSecret  string
	UploadPublicBaseURL string
}

// Load reads configuration from the environment. The provider API token is
// required: without it the process must not start.
func Load() (Config, error) {
	env := getEnv("APP_ENV", "development")
	if env != "production" {
		_ = godotenv.Load(".env", ".env.local")
	}

	cfg := Config{
		Address:        getEnv("PLAYGROUND_SERVER_ADDR", ":4000"),
		Env:            env,
		AllowedOrigins: splitAndClean(os.Getenv("PLAYGROUND_ALLOWED_ORIGINS")),

		ReplicateAPIURL:   getEnv("REPLICATE_API_URL", "https://api.replicate.com/v1"),
		ReplicateAPIToken: strings.TrimSpace(os.Getenv("REPLICATE_API_TOKEN")),
		ClientAgent:       getEnv("PLAYGROUND_CLIENT_AGENT", "SDXL-Playground:v1"),

		DataDir:     getEnv("PLAYGROUND_DATA_DIR", "./data"),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		UploadEndpoint:      os.Getenv("UPLOAD_S3_ENDPOINT"),
		UploadBucket:        os.Getenv("UPLOAD_S3_BUCKET"),
		UploadAccessKeyID:   os.Getenv("UPLOAD_S3_ACCESS_KEY_ID"),
		UploadAccessSecret:  os.Getenv("UPLOAD_S3_ACCESS_KEY_SECRET"),
		UploadPublicBaseURL: os.Getenv("UPLOAD_PUBLIC_BASE_URL"),
	}

	if cfg.ReplicateAPIToken == "" {
		return Config{}, errors.New("missing required environment variable: REPLICATE_API_TOKEN")
	}

	if err := CheckRuntime(runtime.Version()); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// CheckRuntime verifies the Go runtime satisfies MinGoVersion.
func CheckRuntime(version string) error {
	if !olderThan(version, MinGoVersion) {
		return nil
	}
	return fmt.Errorf("runtime version %s does not satisfy required version >=%s", version, MinGoVersion)
}

// olderThan reports whether version a sorts before b. Versions look like
// "go1.23.4"; anything unparseable (devel builds) is treated as current.
func olderThan(a, b string) bool {
	pa, oka := parseGoVersion(a)
	pb, okb := parseGoVersion(b)
	if !oka || !okb {
		return false
	}
	for i := 0; i < 3; i++ {
		if pa[i] != pb[i] {
			return pa[i] < pb[i]
		}
	}
	return false
}

func parseGoVersion(v string) ([3]int, bool) {
	var out [3]int
	v = strings.TrimPrefix(v, "go")
	parts := strings.SplitN(v, ".", 3)
	if len(parts) < 2 {
		return out, false
	}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return out, false
		}
		out[i] = n
	}
	return out, true
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func splitAndClean(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
