package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPPort        string
	LogLevel        string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	AdminToken      string
	SecureCookies   bool

	// Cart persistence
	StorageBackend string // "redis" or "memory"
	RedisAddr      string
	RedisPassword  string
	CartTTL        time.Duration
	CartIdleTTL    time.Duration

	// Catalog
	CatalogDBPath  string
	MigrationsPath string

	// Orders
	OrderSink    string // "mongo" or "kafka"
	MongoURI     string
	MongoDBName  string
	KafkaBrokers string
	OrdersTopic  string

	// Notifications
	EmailEndpoint       string
	EmailServiceID      string
	EmailUserID         string
	EmailAccessToken    string
	BusinessTemplateID  string
	CustomerTemplateID  string
	BusinessEmail       string
	StoreName           string
	CheckoutStepTimeout time.Duration
	BreakerMaxFailures  int
	BreakerOpenTimeout  time.Duration
}

// LoadConfig reads the environment, after loading an optional .env file.
func LoadConfig() *Config {
	_ = godotenv.Load(getEnv("ENV_FILE", ".env"))

	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		RequestTimeout:  getEnvAsDuration("REQUEST_TIMEOUT", 30*time.Second),
		ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		AdminToken:      getEnv("ADMIN_TOKEN", ""),
		SecureCookies:   getEnvAsBool("COOKIE_SECURE", false),

		StorageBackend: getEnv("STORAGE_BACKEND", "redis"),
		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		CartTTL:        getEnvAsDuration("CART_TTL", 30*24*time.Hour),
		CartIdleTTL:    getEnvAsDuration("CART_IDLE_TTL", 30*time.Minute),

		CatalogDBPath:  getEnv("CATALOG_DB_PATH", "./catalog.db"),
		MigrationsPath: getEnv("MIGRATIONS_PATH", "./internal/catalog/migrations"),

		OrderSink:    getEnv("ORDER_SINK", "mongo"),
		MongoURI:     getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName:  getEnv("MONGO_DB_NAME", "slimeshop"),
		KafkaBrokers: getEnv("KAFKA_BROKERS", "localhost:9092"),
		OrdersTopic:  getEnv("ORDERS_TOPIC", "order-placed"),

		EmailEndpoint:       getEnv("EMAIL_ENDPOINT", "https://api.emailjs.com/api/v1.0/email/send"),
		EmailServiceID:      getEnv("EMAIL_SERVICE_ID", ""),
		EmailUserID:         getEnv("EMAIL_USER_ID", ""),
		EmailAccessToken:    getEnv("EMAIL_ACCESS_TOKEN", ""),
		BusinessTemplateID:  getEnv("EMAIL_BUSINESS_TEMPLATE_ID", ""),
		CustomerTemplateID:  getEnv("EMAIL_CUSTOMER_TEMPLATE_ID", ""),
		BusinessEmail:       getEnv("BUSINESS_EMAIL", "orders@slimeshop.example"),
		StoreName:           getEnv("STORE_NAME", "Slime Shop"),
		CheckoutStepTimeout: getEnvAsDuration("CHECKOUT_STEP_TIMEOUT", 15*time.Second),
		BreakerMaxFailures:  getEnvAsInt("EMAIL_BREAKER_MAX_FAILURES", 5),
		BreakerOpenTimeout:  getEnvAsDuration("EMAIL_BREAKER_OPEN_TIMEOUT", 30*time.Second),
	}
}

const (
	// checkoutBoundedCalls is the side-effect steps of a checkout plus the cart clear.
	checkoutBoundedCalls = 4
	timeoutMargin        = 5 * time.Second
)

// CheckoutTimeout is the route timeout for POST /checkout. It fits every step
// running to its own timeout, so the step policy decides the outcome, not the router.
func (c *Config) CheckoutTimeout() time.Duration {
	if c.CheckoutStepTimeout <= 0 {
		return c.RequestTimeout
	}
	return max(c.RequestTimeout, checkoutBoundedCalls*c.CheckoutStepTimeout+timeoutMargin)
}

// WriteTimeout leaves room for the slowest route to write its response.
func (c *Config) WriteTimeout() time.Duration {
	return max(c.RequestTimeout, c.CheckoutTimeout()) + timeoutMargin
}

// EmailConfigured reports whether enough provider settings exist to send real mail.
func (c *Config) EmailConfigured() bool {
	return c.EmailServiceID != "" && c.EmailUserID != "" &&
		c.BusinessTemplateID != "" && c.CustomerTemplateID != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
