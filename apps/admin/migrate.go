package main

import (
	"database/sql"

	"github.com/pressly/goose/v3"

	"github.com/trezcool/catechism/storage/database"
)

var gooseRunFunc = goose.Run // mockable

func (cli *commandLine) migrate(args []string) error {
	var db *sql.DB
	if cli.db != nil {
		db = cli.db.DB
	}
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return gooseRunFunc(args[0], db, database.MigrationsDir, args[1:]...)
}
