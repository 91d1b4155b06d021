package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"equipahub-backend/internal/platform/config"
	"equipahub-backend/internal/platform/db"
	"equipahub-backend/migrations"
)

const (
	migrationUp   = "up"
	migrationDown = "down"
)

func mustMigrateUp(m *migrate.Migrate, steps int) {
	var err error
	if steps > 0 {
		err = m.Steps(steps)
	} else {
		err = m.Up()
	}
	if err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			fmt.Println("no migrations to apply")
			return
		}

		panic(err)
	}

	fmt.Println("migrations applied successfully")
}

func mustMigrateDown(m *migrate.Migrate, steps int) {
	var err error
	if steps > 0 {
		err = m.Steps(-steps)
	} else {
		err = m.Down()
	}
	if err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			fmt.Println("no migrations to apply")
			return
		}

		panic(err)
	}

	fmt.Println("migrations downed successfully")
}

func main() {
	var configPath, migrationsTable, migrationType string
	var steps int
	flag.StringVar(&configPath, "config", "", "path to config.yaml")
	flag.StringVar(&migrationType, "migration-type", migrationUp, "migration type (up|down)")
	flag.StringVar(&migrationsTable, "migrations-table", "schema_migrations", "name of migrations table")
	flag.IntVar(&steps, "steps", 0, "apply only n migrations (0 = all)")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	driver := db.DriverName(cfg.DB)
	src, err := iofs.New(migrations.FS, migrations.Dir(driver))
	if err != nil {
		panic(err)
	}

	dbURL, err := dbUrl(cfg.DB, migrationsTable)
	if err != nil {
		panic(err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, dbURL)
	if err != nil {
		panic(err)
	}
	defer m.Close()

	if migrationType == migrationDown {
		mustMigrateDown(m, steps)
		return
	}

	mustMigrateUp(m, steps)
}

func dbUrl(c db.DatabaseConfig, migrationsTable string) (string, error) {
	switch db.DriverName(c) {
	case db.DriverSQLite:
		if c.Path == "" {
			return "", errors.New("database.path is required for sqlite3")
		}
		return fmt.Sprintf("sqlite3://%s?x-migrations-table=%s", c.Path, migrationsTable), nil
	case db.DriverMySQL:
		dsn, err := db.DSN(c, "multiStatements=true&x-migrations-table="+migrationsTable)
		if err != nil {
			return "", err
		}
		return "mysql://" + dsn, nil
	}

	return "", fmt.Errorf("unsupported driver %q", c.Driver)
}
