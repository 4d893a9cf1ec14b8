package main

import (
	"log"
	"os"

	"github.com/avstrong/hotel/internal/app"
	"github.com/avstrong/hotel/internal/config"
	"github.com/avstrong/hotel/internal/logger"
)

func main() {
	conf, err := config.Load()
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		os.Exit(1)
	}

	l, err := logger.New(conf.LogLevel)
	if err != nil {
		log.Printf("Failed to init logger: %v", err)
		os.Exit(1)
	}

	var exitCode int

	if err := app.Run(l, conf); err != nil {
		l.LogErrorf("Failed to run app: %v", err.Error())

		exitCode = 1
	}

	_ = l.Sync()

	os.Exit(exitCode)
}
