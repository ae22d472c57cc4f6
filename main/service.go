package main

import (
	"flag"

	"pointstream/common"
	"pointstream/config"
	"pointstream/server"
	"pointstream/version"

	"github.com/apex/log"
	"github.com/joho/godotenv"
)

func main() {
	flag.Parse()

	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Warn("Warning: .env file not found, using system environment variables")
	}

	cfg := config.Load()
	common.SetupLogging(cfg.LogLevel, cfg.LogFormat)

	info := version.Get("pointstream")
	log.WithFields(log.Fields{
		"version": info.Version,
		"git_sha": info.GitSHA,
	}).Info("Starting the point stream service...")

	if err := server.StartService(cfg); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
	log.Info("Bye!")
}
