// Package config loads application configuration from environment
// variables.  A local .env file is honored when present.
package config

import (
	"os"
	"strconv"
	"time"
	_ "time/tzdata" // HOSPITAL_TZ must resolve in slim containers

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.
type Config struct {
	Env            string // application environment (e.g. "dev", "prod")
	Port           string // HTTP port to listen on
	DBUser         string // database username
	DBPass         string // database password (optional)
	DBHost         string // database host address
	DBPort         string // database port number
	DBName         string // database name
	DBAutoMigrate  bool   // create missing tables at startup
	JWTSecret      string // secret used to sign JWTs
	AccessTTLMin   int    // access token time-to-live in minutes
	RefreshTTLDays int    // refresh token time-to-live in days
	BcryptCost     int    // bcrypt cost for password hashing

	HospitalTZ       string        // IANA zone that defines a visit day
	PassAutoApprove  bool          // new guest passes skip admin approval
	PassSessionCap   int           // active approved passes per session
	PassFrequentDays int           // validity of a frequent pass
	AccessTimeout    time.Duration // bound on one access decision
	OTPTTL           time.Duration // lifetime of a login code
	OTPExpose        bool          // return the code in the response (dev only)
	LogLevel         string        // logrus level name
	LogFormat        string        // "json" or "text"
	SuperAdminEmail  string        // bootstrap account, created when missing
	SuperAdminPass   string
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	env := must("APP_ENV")
	return Config{
		Env:            env,
		Port:           must("APP_PORT"),
		DBUser:         must("DB_USER"),
		DBPass:         os.Getenv("DB_PASS"),
		DBHost:         must("DB_HOST"),
		DBPort:         must("DB_PORT"),
		DBName:         must("DB_NAME"),
		DBAutoMigrate:  envBool("DB_AUTO_MIGRATE", env != "prod"),
		JWTSecret:      must("JWT_SECRET"),
		AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"),
		BcryptCost:     mustInt("BCRYPT_COST"),

		HospitalTZ:       envStr("HOSPITAL_TZ", "UTC"),
		PassAutoApprove:  envBool("GUEST_PASS_AUTO_APPROVE", true),
		PassSessionCap:   envInt("GUEST_PASS_SESSION_CAP", 3),
		PassFrequentDays: envInt("GUEST_PASS_FREQUENT_DAYS", 30),
		AccessTimeout:    envDur("ACCESS_TIMEOUT", 5*time.Second),
		OTPTTL:           envDur("OTP_TTL", 5*time.Minute),
		OTPExpose:        envBool("OTP_EXPOSE", false) && env != "prod",
		LogLevel:         envStr("LOG_LEVEL", "info"),
		LogFormat:        envStr("LOG_FORMAT", defaultLogFormat(env)),
		SuperAdminEmail:  os.Getenv("SUPER_ADMIN_EMAIL"),
		SuperAdminPass:   os.Getenv("SUPER_ADMIN_PASSWORD"),
	}
}

func defaultLogFormat(env string) string {
	if env == "prod" {
		return "json"
	}
	return "text"
}

// Location resolves HospitalTZ, falling back to UTC when the zone is
// unknown.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.HospitalTZ)
	if err != nil {
		logrus.WithError(err).Warnf("unknown HOSPITAL_TZ %q, using UTC", c.HospitalTZ)
		return time.UTC
	}
	return loc
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		logrus.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		logrus.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
