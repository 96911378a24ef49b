package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	StoreFirestore = "firestore"
	StoreMongo     = "mongo"
	StoreMemory    = "memory"

	AuthFirebase = "firebase"
	AuthJWT      = "jwt"
)

type Config struct {
	ServerPort                 string
	Environment                string
	StoreBackend               string
	FirebaseProject            string
	FirebaseServiceAccountJSON string
	FirebaseServiceAccountPath string
	MongoURI                   string
	MongoDatabase              string
	RedisURL                   string
	AuthProvider               string
	JWTSecret                  string
	HistoryDefaultLimit        int
	HistoryMaxLimit            int
	AllowedOrigins             []string
	RateLimitEnabled           bool
}

func Load() (*Config, error) {
	godotenv.Load()

	config := &Config{
		ServerPort:                 getEnv("SERVER_PORT", "8080"),
		Environment:                getEnv("ENVIRONMENT", "development"),
		StoreBackend:               strings.ToLower(getEnv("STORE_BACKEND", StoreFirestore)),
		FirebaseProject:            getEnv("FIREBASE_PROJECT_ID", ""),
		FirebaseServiceAccountJSON: getEnv("FIREBASE_SERVICE_ACCOUNT_JSON", ""),
		FirebaseServiceAccountPath: getEnv("FIREBASE_SERVICE_ACCOUNT_PATH", ""),
		MongoURI:                   getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:              getEnv("MONGO_DATABASE", "campuslink"),
		RedisURL:                   getEnv("REDIS_URL", ""),
		AuthProvider:               strings.ToLower(getEnv("AUTH_PROVIDER", AuthFirebase)),
		JWTSecret:                  getEnv("JWT_SECRET", ""),
		HistoryDefaultLimit:        getEnvAsInt("HISTORY_DEFAULT_LIMIT", 50),
		HistoryMaxLimit:            getEnvAsInt("HISTORY_MAX_LIMIT", 200),
		AllowedOrigins:             getEnvAsList("WS_ALLOWED_ORIGINS"),
		RateLimitEnabled:           getEnvAsBool("RATE_LIMIT_ENABLED", true),
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) validate() error {
	switch c.StoreBackend {
	case StoreFirestore:
		if c.FirebaseProject == "" {
			return fmt.Errorf("FIREBASE_PROJECT_ID is required for the firestore store backend")
		}
	case StoreMongo, StoreMemory:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	switch c.AuthProvider {
	case AuthFirebase:
		if c.FirebaseProject == "" {
			return fmt.Errorf("FIREBASE_PROJECT_ID is required for firebase auth")
		}
	case AuthJWT:
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required for jwt auth")
		}
	default:
		return fmt.Errorf("unknown AUTH_PROVIDER %q", c.AuthProvider)
	}

	if c.HistoryDefaultLimit <= 0 || c.HistoryMaxLimit < c.HistoryDefaultLimit {
		return fmt.Errorf("invalid history limits: default=%d max=%d", c.HistoryDefaultLimit, c.HistoryMaxLimit)
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		intValue, err := strconv.Atoi(value)
		if err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		boolValue, err := strconv.ParseBool(value)
		if err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	value := getEnv(key, "")
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
