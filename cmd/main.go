package main

import (
	"fmt"
	"geohost/internal/cmd"
	"geohost/internal/config"
	"geohost/logger"
	"os"
)

func main() {
	cfg := config.New()
	if err := logger.InitLogger(cfg.LogMode); err != nil {
		fmt.Printf("Error initializing logger: %v\n", err)
		os.Exit(1)
	}

	err := cmd.New(cfg).Execute()
	logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}
