package db

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite3"
)

type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // mysql | sqlite3
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	Path     string `yaml:"path"` // sqlite3 only

	MaxOpenConns int `yaml:"max_open_conns"`
	MaxIdleConns int `yaml:"max_idle_conns"`
}

// DSN builds the driver specific data source name. extra is appended to the MySQL query string.
func DSN(c DatabaseConfig, extra string) (string, error) {
	switch c.Driver {
	case "", DriverMySQL:
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&tls=false&timeout=3s&readTimeout=5s&writeTimeout=5s&loc=UTC",
			c.Username, c.Password, c.Host, c.Port, c.DBName)
		if extra != "" {
			dsn += "&" + extra
		}
		return dsn, nil
	case DriverSQLite:
		if c.Path == "" {
			return "", fmt.Errorf("database.path is required for sqlite3")
		}
		return fmt.Sprintf("file:%s?_foreign_keys=1&_busy_timeout=5000", c.Path), nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", c.Driver)
	}
}

func DriverName(c DatabaseConfig) string {
	if c.Driver == "" {
		return DriverMySQL
	}
	return c.Driver
}

func Connect(c DatabaseConfig) (*sql.DB, error) {
	const op = "db.Connect"

	dsn, err := DSN(c, "")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	db, err := sql.Open(DriverName(c), dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: open: %w", op, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: ping: %w", op, err)
	}

	if DriverName(c) == DriverSQLite {
		// sqlite は単一ライター
		db.SetMaxOpenConns(1)
		return db, nil
	}

	// 接続プール（合算がMySQLの max_connections を超えないよう配分する）
	maxOpen, maxIdle := c.MaxOpenConns, c.MaxIdleConns
	if maxOpen <= 0 {
		maxOpen = 40
	}
	if maxIdle <= 0 {
		maxIdle = 10
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return db, nil
}
