package database

import (
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	_ "github.com/lib/pq"
	"github.com/spf13/viper"
)

var (
	initOnce sync.Once
	handle   *sql.DB
	initErr  error
)

// DBConfig holds database configuration
type DBConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// GetConfig returns database configuration with defaults
func GetConfig() *DBConfig {
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", "5432")
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "password")
	viper.SetDefault("database.name", "cardmart")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", time.Minute*5)

	return &DBConfig{
		Host:            viper.GetString("database.host"),
		Port:            viper.GetString("database.port"),
		User:            viper.GetString("database.user"),
		Password:        viper.GetString("database.password"),
		Name:            viper.GetString("database.name"),
		SSLMode:         viper.GetString("database.ssl_mode"),
		MaxOpenConns:    viper.GetInt("database.max_open_conns"),
		MaxIdleConns:    viper.GetInt("database.max_idle_conns"),
		ConnMaxLifetime: viper.GetDuration("database.conn_max_lifetime"),
	}
}

// EnsureInitialized opens the process-wide database handle exactly once and
// returns the same handle on every subsequent call. Callers receive an
// explicit handle rather than reaching for a package global.
func EnsureInitialized() (*sql.DB, error) {
	initOnce.Do(func() {
		handle, initErr = open()
	})
	return handle, initErr
}

func open() (*sql.DB, error) {
	config := GetConfig()

	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.Name, config.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)

	if err := bootstrapSchema(db); err != nil {
		return nil, fmt.Errorf("error bootstrapping schema: %w", err)
	}

	log.Println("Database connection established")
	return db, nil
}

// InitDatabase initializes the database with error handling
func InitDatabase() *sql.DB {
	db, err := EnsureInitialized()
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	return db
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		balance BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
		is_admin BOOLEAN NOT NULL DEFAULT FALSE,
		push_token TEXT,
		version INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS tier_pricing (
		tier TEXT PRIMARY KEY,
		price BIGINT NOT NULL CHECK (price > 0)
	)`,
	`CREATE TABLE IF NOT EXISTS card_records (
		id TEXT PRIMARY KEY,
		number TEXT NOT NULL UNIQUE,
		cvv TEXT NOT NULL,
		expiry TEXT NOT NULL,
		holder_name TEXT NOT NULL,
		holder_tax_id TEXT NOT NULL,
		brand TEXT NOT NULL,
		bank TEXT NOT NULL,
		tier TEXT NOT NULL REFERENCES tier_pricing(tier),
		price BIGINT NOT NULL,
		bin TEXT NOT NULL,
		acquired BOOLEAN NOT NULL DEFAULT FALSE,
		owner_id TEXT REFERENCES accounts(id),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CHECK (acquired = (owner_id IS NOT NULL))
	)`,
	`CREATE TABLE IF NOT EXISTS ledger_entries (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
		kind TEXT NOT NULL CHECK (kind IN ('purchase', 'deposit')),
		amount BIGINT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_ledger_account_created
		ON ledger_entries (account_id, created_at DESC)`,
}

func bootstrapSchema(db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
