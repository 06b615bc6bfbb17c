package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for our application
type Config struct {
	Port                      string
	Origin                    string
	Environment               string
	JWTSecret                 string
	JWTRefreshSecret          string
	JWTExpirationMinutes      int
	JWTRefreshExpirationHours int
	Database                  DatabaseConfig
	Redis                     RedisConfig
	MQTT                      MQTTConfig
	Log                       LogConfig
	Clinic                    ClinicConfig
	FirstAdmin                FirstAdminConfig
}

// DatabaseConfig holds database connection details
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     string
	Username string
	Password string
	Name     string
	DSN      string
}

// RedisConfig holds the optional queue cache / reminder stream connection.
// An empty Addr disables Redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// MQTTConfig holds the optional waiting-room display board broker.
// An empty Broker disables MQTT.
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string
	Format string
}

// ClinicConfig holds the queue and penalty rules of the clinic.
type ClinicConfig struct {
	Location               *time.Location
	MinutesPerPatient      int
	NoShowGrace            time.Duration
	NoShowSweepInterval    time.Duration
	NoShowPenaltyThreshold int
	NoShowPenaltyDays      int
	DefaultMaxPatients     int
}

// FirstAdminConfig is the system administrator created by the seed command.
type FirstAdminConfig struct {
	Username string
	Password string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	dbConfig := DatabaseConfig{
		Driver:   getEnv("DB_DRIVER", "mysql"),
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", ""),
		Username: getEnv("DB_USERNAME", "root"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "hospital"),
	}

	switch dbConfig.Driver {
	case "mysql":
		if dbConfig.Port == "" {
			dbConfig.Port = "3306"
		}
		dbConfig.DSN = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			dbConfig.Username, dbConfig.Password, dbConfig.Host, dbConfig.Port, dbConfig.Name)
	case "postgres":
		if dbConfig.Port == "" {
			dbConfig.Port = "5432"
		}
		dbConfig.DSN = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable TimeZone=UTC",
			dbConfig.Host, dbConfig.Port, dbConfig.Username, dbConfig.Password, dbConfig.Name)
	case "memory":
	default:
		return nil, fmt.Errorf("invalid DB_DRIVER %q: want mysql, postgres or memory", dbConfig.Driver)
	}

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	jwtExpMinutes, err := strconv.Atoi(getEnv("JWT_EXPIRATION_MINUTES", "60"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_EXPIRATION_MINUTES: %w", err)
	}

	jwtRefreshExpHours, err := strconv.Atoi(getEnv("JWT_REFRESH_EXPIRATION_HOURS", "168")) // 7 days
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_REFRESH_EXPIRATION_HOURS: %w", err)
	}

	clinic, err := loadClinicConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Port:                      getEnv("PORT", "8000"),
		Origin:                    getEnv("ORIGIN", "http://localhost:5173"),
		Environment:               getEnv("APP_ENV", getEnv("NODE_ENV", "development")),
		JWTSecret:                 getEnv("JWT_SECRET", "default_jwt_secret"),
		JWTRefreshSecret:          getEnv("JWT_REFRESH_SECRET", "default_refresh_secret"),
		JWTExpirationMinutes:      jwtExpMinutes,
		JWTRefreshExpirationHours: jwtRefreshExpHours,
		Database:                  dbConfig,
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		MQTT: MQTTConfig{
			Broker:   getEnv("MQTT_BROKER", ""),
			ClientID: getEnv("MQTT_CLIENT_ID", "hospital-booking-server"),
			Username: getEnv("MQTT_USERNAME", ""),
			Password: getEnv("MQTT_PASSWORD", ""),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Clinic: *clinic,
		FirstAdmin: FirstAdminConfig{
			Username: getEnv("FIRST_ADMIN_USERNAME", "admin"),
			Password: getEnv("FIRST_ADMIN_PASSWORD", "password"),
		},
	}, nil
}

func loadClinicConfig() (*ClinicConfig, error) {
	loc, err := time.LoadLocation(getEnv("CLINIC_TIMEZONE", "Asia/Taipei"))
	if err != nil {
		return nil, fmt.Errorf("invalid CLINIC_TIMEZONE: %w", err)
	}

	ints := map[string]*int{}
	var minutesPerPatient, graceMinutes, sweepSeconds, threshold, penaltyDays, maxPatients int
	ints["MINUTES_PER_PATIENT"] = &minutesPerPatient
	ints["NO_SHOW_GRACE_MINUTES"] = &graceMinutes
	ints["NO_SHOW_SWEEP_SECONDS"] = &sweepSeconds
	ints["NO_SHOW_PENALTY_THRESHOLD"] = &threshold
	ints["NO_SHOW_PENALTY_DAYS"] = &penaltyDays
	ints["DEFAULT_MAX_PATIENTS"] = &maxPatients
	defaults := map[string]string{
		"MINUTES_PER_PATIENT":       "10",
		"NO_SHOW_GRACE_MINUTES":     "3",
		"NO_SHOW_SWEEP_SECONDS":     "60",
		"NO_SHOW_PENALTY_THRESHOLD": "3",
		"NO_SHOW_PENALTY_DAYS":      "180",
		"DEFAULT_MAX_PATIENTS":      "10",
	}
	for key, dst := range ints {
		v, err := strconv.Atoi(getEnv(key, defaults[key]))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = v
	}

	return &ClinicConfig{
		Location:               loc,
		MinutesPerPatient:      minutesPerPatient,
		NoShowGrace:            time.Duration(graceMinutes) * time.Minute,
		NoShowSweepInterval:    time.Duration(sweepSeconds) * time.Second,
		NoShowPenaltyThreshold: threshold,
		NoShowPenaltyDays:      penaltyDays,
		DefaultMaxPatients:     maxPatients,
	}, nil
}

// DefaultClinicConfig returns the clinic rules used when nothing is configured.
func DefaultClinicConfig() ClinicConfig {
	loc, err := time.LoadLocation("Asia/Taipei")
	if err != nil {
		loc = time.FixedZone("CST", 8*60*60)
	}
	return ClinicConfig{
		Location:               loc,
		MinutesPerPatient:      10,
		NoShowGrace:            3 * time.Minute,
		NoShowSweepInterval:    time.Minute,
		NoShowPenaltyThreshold: 3,
		NoShowPenaltyDays:      180,
		DefaultMaxPatients:     10,
	}
}

// IsDevelopment reports whether the server runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// Helper function to get environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
