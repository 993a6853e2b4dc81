package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/gophauth/internal/server"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
)

func main() {

	ctx := context.Background()

	cfg, err := config.LoadConfig(ctx)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	app, err := server.NewApp(ctx, cfg, os.Stdout)
	if err != nil {
		log.Fatalf("%v", err)
	}

	app.Run(ctx)

}
