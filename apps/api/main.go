package main

import (
	"context"
	"database/sql"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/jmoiron/sqlx"

	echoapi "github.com/kimaro/shulebook/apps/api/echo"
	"github.com/kimaro/shulebook/core"
	"github.com/kimaro/shulebook/core/activity"
	"github.com/kimaro/shulebook/core/fees"
	"github.com/kimaro/shulebook/core/school"
	"github.com/kimaro/shulebook/core/user"
	emailsvc "github.com/kimaro/shulebook/services/email"
	logsvc "github.com/kimaro/shulebook/services/logger"
	"github.com/kimaro/shulebook/storage/database"
	sqlxrepos "github.com/kimaro/shulebook/storage/database/sqlx"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf, err := core.NewConfig()
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	dbLogger.Enable(!conf.Debug)

	// set up DB
	db, err := setUpDB(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			dbLogger.Fatal("Failed to close", err)
		}
	}()
	sdb := sqlx.NewDb(db, "postgres")

	// set up repos
	yearRepo := sqlxrepos.NewAcademicYearRepository(sdb)
	classRepo := sqlxrepos.NewClassRepository(sdb)
	batchRepo := sqlxrepos.NewBatchRepository(sdb)
	studentRepo := sqlxrepos.NewStudentRepository(sdb)
	structRepo := sqlxrepos.NewFeeStructureRepository(sdb)
	paymentRepo := sqlxrepos.NewFeePaymentRepository(sdb)
	reminderRepo := sqlxrepos.NewReminderRepository(sdb)
	usrRepo := sqlxrepos.NewUserRepository(sdb)
	actRepo := sqlxrepos.NewActivityRepository(sdb)

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}
	actSvc := activity.NewService(actRepo, logger)
	usrSvc := user.NewService(conf, usrRepo, mailSvc, logger)
	schoolSvc := school.NewService(yearRepo, classRepo, batchRepo, studentRepo, structRepo, logger)
	feeSvc := fees.NewService(structRepo, paymentRepo, reminderRepo, studentRepo, batchRepo, classRepo, actSvc, mailSvc, logger)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate, translator := core.NewValidator()
	core.InitValidators(validate, translator)
	user.RegisterValidators(validate, translator)

	core.InitMail(conf)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err = http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:        conf,
			Logger:      logger,
			UserSvc:     usrSvc,
			SchoolSvc:   schoolSvc,
			FeeSvc:      feeSvc,
			ActivitySvc: actSvc,
			Validate:    validate,
			Translator:  translator,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func setUpDB(conf *core.Config) (*sql.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}
