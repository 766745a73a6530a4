package main

import (
	"flag"
	"os"

	"github.com/NordCoder/campauth/internal/obs"
	"github.com/NordCoder/campauth/migrations"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

func main() {
	down := flag.Bool("down", false, "roll back the latest migration")
	flag.Parse()

	logger, err := obs.NewLogger(obs.LogConfig{Level: "info", App: "campauth/migrator"})
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	dbURL := os.Getenv("DB_DSN")
	if dbURL == "" {
		logger.Fatal("DB_DSN is empty")
	}

	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(zap.NewStdLog(logger))
	if err := goose.SetDialect("postgres"); err != nil {
		logger.Fatal("set dialect", zap.Error(err))
	}
	db, err := goose.OpenDBWithDriver("pgx", dbURL)
	if err != nil {
		logger.Fatal("open db", zap.Error(err))
	}
	defer db.Close()

	if *down {
		if err := goose.Down(db, "."); err != nil {
			logger.Fatal("migrate down", zap.Error(err))
		}
		logger.Info("migrations: down OK")
		return
	}
	if err := goose.Up(db, "."); err != nil {
		logger.Fatal("migrate up", zap.Error(err))
	}
	logger.Info("migrations: up OK")
}
