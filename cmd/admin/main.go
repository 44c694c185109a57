package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/remindsafe/internal/admincli"
	"github.com/dmitrijs2005/remindsafe/internal/config"
)

func main() {
	ctx := context.Background()
	cfg := config.LoadConfig()

	a, err := admincli.NewApp(ctx, cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer a.Close()

	if err := a.Run(ctx, os.Args[1:]); err != nil {
		log.Fatalf("%v", err)
	}
}
