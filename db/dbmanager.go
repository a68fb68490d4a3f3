package db

import (
	"embed"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

type DBManager struct {
	DB *sqlx.DB
}

// NewDBConnection opens the SQLite database at databasePath and brings its
// schema up to date. Transactions take the write lock on BEGIN so that
// concurrent read-modify-write transactions queue on the busy timeout
// instead of failing with "database is locked".
func NewDBConnection(databasePath string) (*DBManager, error) {
	dbx, err := sqlx.Open("sqlite3", databasePath+"?_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}

	if err := dbx.Ping(); err != nil {
		_ = dbx.Close()
		return nil, errors.Wrap(err, "ping database")
	}

	if err := runMigrations(dbx); err != nil {
		_ = dbx.Close()
		return nil, err
	}

	return &DBManager{
		DB: dbx,
	}, nil
}

func runMigrations(dbx *sqlx.DB) error {
	source, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return errors.Wrap(err, "load migrations")
	}

	driver, err := sqlite3.WithInstance(dbx.DB, &sqlite3.Config{})
	if err != nil {
		return errors.Wrap(err, "migration driver")
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return errors.Wrap(err, "init migrations")
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errors.Wrap(err, "apply migrations")
	}

	return nil
}

func (dbManager *DBManager) Ping() error {
	return dbManager.DB.Ping()
}

func (dbManager *DBManager) Close() error {
	return dbManager.DB.Close()
}
