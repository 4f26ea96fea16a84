package main

import (
	"database/sql"

	"github.com/trezcool/kanisa/storage/database"
)

var migrateCmdFunc = func(command string, db *sql.DB, args ...string) error { // mockable
	return database.MigrateCmd(command, db, args...)
}

func (cli *commandLine) migrate(args []string) error {
	arguments := make([]string, 0)
	if len(args) > 1 {
		arguments = append(arguments, args[1:]...)
	}
	return migrateCmdFunc(args[0], cli.db.DB, arguments...)
}
