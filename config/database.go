package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

var (
	db *gorm.DB
)

func GetDB() *gorm.DB {
	return db
}

// SetDB installs an already opened connection (tests, embedded use).
func SetDB(conn *gorm.DB) {
	db = conn
}

// Dialector builds the gorm dialector for the configured driver.
func Dialector(c *Config) (gorm.Dialector, error) {
	switch strings.ToLower(strings.TrimSpace(c.DBDriver)) {
	case "", "mysql":
		network := "tcp"
		address := fmt.Sprintf("%s:%s", c.DBHost, c.DBPort)
		// Cloud SQL Auth Proxy exposes a unix socket under /cloudsql/<CONNECTION_NAME>.
		if strings.HasPrefix(c.DBHost, "/cloudsql/") {
			network = "unix"
			address = c.DBHost
		}
		dsn := fmt.Sprintf("%s:%s@%s(%s)/%s?multiStatements=true&parseTime=true",
			c.DBUser, c.DBPassword, network, address, c.DBName)
		return mysql.Open(dsn), nil
	case "postgres":
		dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName)
		return postgres.Open(dsn), nil
	case "sqlite":
		return sqlite.Open(sqliteDSN(c.DBPath)), nil
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
}

// every pooled sqlite connection needs WAL and a busy timeout, so they go in the DSN.
// Transactions begin IMMEDIATE, so writers queue on the busy timeout.
func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate"
}

// OpenDatabase opens a connection for the given config without touching the global.
func OpenDatabase(c *Config) (*gorm.DB, error) {
	dialector, err := Dialector(c)
	if err != nil {
		return nil, err
	}
	conn, err := gorm.Open(dialector, initConfig())
	if err != nil {
		return nil, err
	}
	if sqlDB, derr := conn.DB(); derr == nil && sqlDB != nil {
		if c.DBMaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(c.DBMaxOpenConns)
		}
		if c.DBMaxIdleConns >= 0 {
			sqlDB.SetMaxIdleConns(c.DBMaxIdleConns)
		}
		sqlDB.SetConnMaxLifetime(5 * time.Minute)
	}
	return conn, nil
}

// ConnectDatabaseWithRetry connects and sets the global DB.
// Call this from main() AFTER the HTTP server is listening.
func ConnectDatabaseWithRetry() {
	c := Get()
	var attempt int
	for {
		attempt++
		conn, err := OpenDatabase(c)
		if err == nil {
			if pluginErr := conn.Use(otelgorm.NewPlugin()); pluginErr != nil {
				log.Printf("db connected but failed to install otelgorm plugin: %v", pluginErr)
			}
			db = conn
			log.Printf("connected to database (driver=%s attempt=%d)", c.DBDriver, attempt)
			return
		}

		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		log.Printf("failed to connect database (attempt=%d): %v; retrying in %s", attempt, err, sleep)
		time.Sleep(sleep)
	}
}

func initConfig() *gorm.Config {
	return &gorm.Config{
		Logger:         initLog(),
		NamingStrategy: initNamingStrategy(),
	}
}

func initLog() logger.Interface {
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			Colorful:                  false,
			LogLevel:                  logger.Error,
			SlowThreshold:             time.Second,
			IgnoreRecordNotFoundError: true,
		},
	)
}

func initNamingStrategy() *schema.NamingStrategy {
	return &schema.NamingStrategy{
		SingularTable: false,
		TablePrefix:   "",
	}
}
