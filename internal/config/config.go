package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Environment
	Environment string

	// Database
	DatabaseURL    string
	MigrateOnStart bool

	// Redis
	RedisURL   string
	InstanceID string

	// Server
	Port        string
	FrontendURL string

	// Simulation. TickHz is the wall-clock frame rate only: every frame
	// still advances 1/60 s of simulated time, so any rate other than 60
	// runs the tissue faster or slower than real time.
	TickHz              int
	FrameBroadcastEvery int
	SessionIdleMinutes  int
	ExpiryCheckSeconds  int
	InboxSize           int
	EventLogSize        int

	// Export
	HeatmapSize int
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	return &Config{
		// Environment
		Environment: getEnv("APP_ENV", "development"),

		// Database
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		MigrateOnStart: getEnvBool("MIGRATE_ON_START", false),

		// Redis
		RedisURL:   getEnv("REDIS_URL", ""),
		InstanceID: getEnv("INSTANCE_ID", defaultInstanceID()),

		// Server
		Port:        getEnv("APP_PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:5173"),

		// Simulation
		TickHz:              getEnvInt("SIM_TICK_HZ", 60),
		FrameBroadcastEvery: getEnvInt("FRAME_BROADCAST_EVERY", 6),
		SessionIdleMinutes:  getEnvInt("SESSION_IDLE_MINUTES", 30),
		ExpiryCheckSeconds:  getEnvInt("EXPIRY_CHECK_SECONDS", 60),
		InboxSize:           getEnvInt("SESSION_INBOX_SIZE", 256),
		EventLogSize:        getEnvInt("SESSION_EVENT_LOG", 1024),

		// Export
		HeatmapSize: getEnvInt("HEATMAP_SIZE", 256),
	}
}

// TickInterval is the wall-clock period of one simulation frame. It does
// not change the simulated timestep.
func (c *Config) TickInterval() time.Duration {
	hz := c.TickHz
	if hz <= 0 {
		hz = 60
	}
	return time.Second / time.Duration(hz)
}

// TimeScale is simulated seconds per wall-clock second at TickHz.
func (c *Config) TimeScale() float64 {
	if c.TickHz <= 0 {
		return 1
	}
	return float64(c.TickHz) / 60
}

// SessionIdleTimeout is how long a session may go without contacts.
func (c *Config) SessionIdleTimeout() time.Duration {
	return time.Duration(c.SessionIdleMinutes) * time.Minute
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func defaultInstanceID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "tissuesim"
	}
	return host + "-" + strconv.Itoa(os.Getpid())
}
