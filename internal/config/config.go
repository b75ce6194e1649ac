package config

import (
	"log"
	"os"
	"time"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Required variables are enforced by must();
// optional integrations (RabbitMQ, MinIO) are disabled when their address
// is left empty.
type Config struct {
	Env            string        // application environment (e.g. "dev", "prod")
	LogLevel       string        // zap level name; empty keeps the env default
	Port           string        // HTTP port to listen on
	DBUser         string        // MySQL username for the users table
	DBPass         string        // MySQL password (optional)
	DBHost         string        // MySQL host address
	DBPort         string        // MySQL port number
	DBName         string        // MySQL database name
	MongoURI       string        // MongoDB connection string
	MongoDB        string        // MongoDB database holding pages and globals
	JWTSecret      string        // secret used to verify access tokens
	RequestTimeout time.Duration // per-request store timeout
	RabbitURL      string        // AMQP URL; empty disables activity events
	ActivityLogDir string        // directory the activity consumer writes to
	RunConsumer    bool          // start the activity consumer in-process
	Media          MediaConfig   // object storage for uploads
}

// MediaConfig configures the S3-compatible store used for uploads.
type MediaConfig struct {
	Endpoint     string // host:port of the object store; empty disables uploads
	AccessKey    string
	SecretKey    string
	Bucket       string
	UseSSL       bool
	PublicURL    string // base URL returned to clients; defaults to the endpoint
	MaxFileBytes int64
}

// Load reads configuration values from environment variables and returns a
// Config.  Missing required values cause the program to exit with a fatal
// log message.
func Load() Config {
	return Config{
		Env:            must("APP_ENV"),
		LogLevel:       os.Getenv("LOG_LEVEL"),
		Port:           must("APP_PORT"),
		DBUser:         must("DB_USER"),
		DBPass:         os.Getenv("DB_PASS"),
		DBHost:         must("DB_HOST"),
		DBPort:         must("DB_PORT"),
		DBName:         must("DB_NAME"),
		MongoURI:       must("MONGO_URI"),
		MongoDB:        envStr("MONGO_DB", "pagebuilder"),
		JWTSecret:      must("JWT_SECRET"),
		RequestTimeout: envDur("REQUEST_TIMEOUT", 5*time.Second),
		RabbitURL:      rabbitURL(),
		ActivityLogDir: envStr("ACTIVITY_LOG_DIR", "logs"),
		RunConsumer:    envBool("ACTIVITY_CONSUMER_ENABLED", true),
		Media:          LoadMediaConfig(),
	}
}

// LoadMediaConfig reads the MINIO_* variables.
func LoadMediaConfig() MediaConfig {
	return MediaConfig{
		Endpoint:     os.Getenv("MINIO_ENDPOINT"),
		AccessKey:    os.Getenv("MINIO_ACCESS_KEY"),
		SecretKey:    os.Getenv("MINIO_SECRET_KEY"),
		Bucket:       envStr("MINIO_BUCKET", "page-media"),
		UseSSL:       envBool("MINIO_USE_SSL", false),
		PublicURL:    os.Getenv("MINIO_PUBLIC_URL"),
		MaxFileBytes: int64(envInt("MEDIA_MAX_FILE_BYTES", 20<<20)),
	}
}

// rabbitURL accepts both RABBITMQ_URL and AMQP_URL.
func rabbitURL() string {
	if v := os.Getenv("RABBITMQ_URL"); v != "" {
		return v
	}
	return os.Getenv("AMQP_URL")
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}
