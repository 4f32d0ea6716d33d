package main

import (
	"context"
	"log"

	"github.com/opsbookhq/opsbook/internal/cli"
	"github.com/opsbookhq/opsbook/internal/config"
)

func main() {
	cfg := config.LoadConfig()

	app, err := cli.NewApp(cfg)
	if err != nil {
		log.Fatalf("%v", err)
		return
	}

	app.Run(context.Background())
}
