package main

import (
	"bufio"
	"fmt"
	"log"
	"os"

	"github.com/trezcool/catechism/core"
	"github.com/trezcool/catechism/core/timetable"
	emailsvc "github.com/trezcool/catechism/services/email"
	exportsvc "github.com/trezcool/catechism/services/export"
	logsvc "github.com/trezcool/catechism/services/logger"
	"github.com/trezcool/catechism/storage/database"
	sqlxrepos "github.com/trezcool/catechism/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()

	sugar, err := logsvc.NewZapLogger(conf)
	if err != nil {
		log.Fatalf("setting up logger: %v", err)
	}
	logger := logsvc.NewRollbarLogger(sugar.Named("admin"), conf)
	logger.Enable(!conf.Debug)

	cli := commandLine{
		conf:   conf,
		logger: logger,
		in:     bufio.NewReader(os.Stdin),
		out:    os.Stdout,
	}

	if needsDB(os.Args) {
		// set up DB
		db, err := database.Open(conf)
		if err != nil {
			logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
		}
		if err = db.Ping(); err != nil {
			logger.Fatal(fmt.Sprintf("pinging database: %v", err), err)
		}
		cli.db = db
		cli.usrRepo = sqlxrepos.NewUserRepository(db)

		var mailSvc core.EmailService
		if conf.Debug {
			mailSvc = emailsvc.NewConsoleService(conf, logger)
		} else {
			mailSvc = emailsvc.NewSendgridService(conf, logger)
		}
		cli.ttSvc = timetable.NewService(db, sqlxrepos.NewTimetableRepository(db), mailSvc, exportsvc.NewXLSXExporter(), logger, conf)
	}

	// start CLI
	err = cli.run(os.Args)
	if cli.db != nil {
		_ = cli.db.Close()
	}
	_ = logger.Sync()
	if err != nil {
		if err != errHelp {
			fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}
