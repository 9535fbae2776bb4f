package config

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"

	NotifierLog   = "log"
	NotifierKafka = "kafka"
	NotifierSQS   = "sqs"
)

type Config struct {
	App struct {
		Name            string        `envconfig:"APP_NAME" default:"agri-advance"`
		Port            string        `envconfig:"APP_PORT" default:"8080"`
		LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"`
		ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`
	}

	DB struct {
		Driver      string `envconfig:"DB_DRIVER" default:"mysql"`
		Host        string `envconfig:"DB_HOST" default:"mysql"`
		Port        string `envconfig:"DB_PORT" default:"3306"`
		Name        string `envconfig:"DB_NAME" default:"agri"`
		User        string `envconfig:"DB_USER" default:"agri"`
		Password    string `envconfig:"DB_PASSWORD" default:"agri"`
		AutoMigrate bool   `envconfig:"DB_AUTO_MIGRATE" default:"true"`
	}

	Redis struct {
		Addr           string        `envconfig:"REDIS_ADDR" default:"redis:6379"`
		DB             int           `envconfig:"REDIS_DB" default:"0"`
		IdempotencyTTL time.Duration `envconfig:"IDEMPOTENCY_TTL" default:"5m"`
	}

	Lock struct {
		Distributed bool          `envconfig:"LOCK_DISTRIBUTED" default:"false"`
		Wait        time.Duration `envconfig:"LOCK_WAIT" default:"5s"`
		TTL         time.Duration `envconfig:"LOCK_TTL" default:"10s"`
		Retry       time.Duration `envconfig:"LOCK_RETRY" default:"25ms"`
		Attempts    int           `envconfig:"LOCK_ATTEMPTS" default:"200"`
	}

	Pool struct {
		ID             string          `envconfig:"POOL_ID"`
		SeedCapital    decimal.Decimal `envconfig:"POOL_SEED_CAPITAL" default:"0"`
		Currency       string          `envconfig:"POOL_CURRENCY" default:"KES"`
		ReservationTTL time.Duration   `envconfig:"RESERVATION_TTL" default:"1h"`
		SweepInterval  time.Duration   `envconfig:"SWEEP_INTERVAL" default:"1m"`
		SweepBatch     int             `envconfig:"SWEEP_BATCH" default:"100"`
	}

	Terms struct {
		FeeRate         decimal.Decimal            `envconfig:"FEE_RATE" default:"0.03"`
		DefaultRate     decimal.Decimal            `envconfig:"DEFAULT_INTEREST_RATE" default:"0"`
		TermDays        int                        `envconfig:"TERM_DAYS" default:"90"`
		MaxAdvanceRatio decimal.Decimal            `envconfig:"MAX_ADVANCE_RATIO" default:"0.8"`
		TierFeeRates    map[string]decimal.Decimal `envconfig:"TIER_FEE_RATES"`
		TierTermDays    map[string]int             `envconfig:"TIER_TERM_DAYS"`
	}

	Gate struct {
		URL         string          `envconfig:"ELIGIBILITY_URL"`
		Timeout     time.Duration   `envconfig:"ELIGIBILITY_TIMEOUT" default:"2s"`
		StaticLimit decimal.Decimal `envconfig:"STATIC_CREDIT_LIMIT" default:"0"`
		StaticTier  string          `envconfig:"STATIC_RISK_TIER" default:"B"`
		StaticRate  decimal.Decimal `envconfig:"STATIC_RATE" default:"0"`
	}

	Orders struct {
		URL     string        `envconfig:"ORDERS_URL"`
		File    string        `envconfig:"ORDERS_FILE"`
		Timeout time.Duration `envconfig:"ORDERS_TIMEOUT" default:"2s"`
	}

	Proof struct {
		URL            string        `envconfig:"PROOF_URL"`
		APIKey         string        `envconfig:"PROOF_API_KEY"`
		CallTimeout    time.Duration `envconfig:"PROOF_CALL_TIMEOUT" default:"5s"`
		MaxTries       uint          `envconfig:"PROOF_MAX_TRIES" default:"5"`
		InitialBackoff time.Duration `envconfig:"PROOF_INITIAL_BACKOFF" default:"500ms"`
		MaxBackoff     time.Duration `envconfig:"PROOF_MAX_BACKOFF" default:"30s"`
		QueueSize      int           `envconfig:"PROOF_QUEUE_SIZE" default:"1024"`
		RequeueEvery   time.Duration `envconfig:"PROOF_REQUEUE_INTERVAL" default:"5m"`
	}

	Notify struct {
		Kind         string        `envconfig:"NOTIFIER" default:"log"`
		KafkaBrokers []string      `envconfig:"KAFKA_BROKERS"`
		KafkaTopic   string        `envconfig:"KAFKA_TOPIC" default:"advance-events"`
		SQSQueueURL  string        `envconfig:"SQS_QUEUE_URL"`
		Timeout      time.Duration `envconfig:"NOTIFY_TIMEOUT" default:"3s"`
	}

	Auth struct {
		JWTSecret string `envconfig:"JWT_SECRET"`
		Issuer    string `envconfig:"JWT_ISSUER" default:"agri-advance"`
	}
}

// Load reads .env when present, then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	return &c, nil
}

// ValidateDB checks only what a database-only process (the sweeper) needs.
func (c *Config) ValidateDB() error {
	switch c.DB.Driver {
	case DriverMySQL, DriverPostgres:
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DB.Driver)
	}
	if c.DB.Host == "" || c.DB.Port == "" || c.DB.Name == "" || c.DB.User == "" {
		return errors.New("missing DB config (DB_HOST/PORT/NAME/USER)")
	}
	// ensure port is valid
	if _, err := net.LookupPort("tcp", c.DB.Port); err != nil {
		return fmt.Errorf("invalid DB_PORT %q: %w", c.DB.Port, err)
	}
	return nil
}

func (c *Config) Validate() error {
	if err := c.ValidateDB(); err != nil {
		return err
	}
	if c.App.Port == "" {
		return errors.New("missing APP_PORT")
	}
	if c.Pool.ID == "" {
		return errors.New("missing POOL_ID")
	}
	if c.Pool.ReservationTTL <= 0 || c.Pool.SweepInterval <= 0 {
		return errors.New("RESERVATION_TTL and SWEEP_INTERVAL must be positive")
	}
	if c.Terms.FeeRate.IsNegative() || c.Terms.DefaultRate.IsNegative() || c.Terms.TermDays <= 0 {
		return errors.New("invalid terms: FEE_RATE, DEFAULT_INTEREST_RATE must be >= 0 and TERM_DAYS > 0")
	}
	if c.Lock.Distributed && c.Redis.Addr == "" {
		return errors.New("LOCK_DISTRIBUTED needs REDIS_ADDR")
	}
	switch c.Notify.Kind {
	case NotifierLog:
	case NotifierKafka:
		if len(c.Notify.KafkaBrokers) == 0 {
			return errors.New("NOTIFIER=kafka needs KAFKA_BROKERS")
		}
	case NotifierSQS:
		if c.Notify.SQSQueueURL == "" {
			return errors.New("NOTIFIER=sqs needs SQS_QUEUE_URL")
		}
	default:
		return fmt.Errorf("unsupported NOTIFIER %q", c.Notify.Kind)
	}
	if len(c.Auth.JWTSecret) < 16 {
		return errors.New("JWT_SECRET must be at least 16 characters")
	}
	return nil
}

func (c *Config) dbAddr() string { return net.JoinHostPort(c.DB.Host, c.DB.Port) }

func (c *Config) MySQLDSN() string {
	// parseTime needed for DATETIME
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true&loc=UTC&charset=utf8mb4",
		c.DB.User, c.DB.Password, c.dbAddr(), c.DB.Name)
}

func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable&TimeZone=UTC",
		c.DB.User, c.DB.Password, c.dbAddr(), c.DB.Name)
}

func (c *Config) DSN() string {
	if c.DB.Driver == DriverPostgres {
		return c.PostgresDSN()
	}
	return c.MySQLDSN()
}

func (c *Config) Addr() string { return ":" + c.App.Port }
