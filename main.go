package main

import (
	"context"
	"log"

	"github.com/busly/routafare/core/cmd"
	coreconfig "github.com/busly/routafare/core/config"
	"github.com/busly/routafare/internal/app"
)

func main() {
	err := cmd.Run(cmd.Options{
		Bootstrap: func(ctx context.Context, cfg *coreconfig.Config) (cmd.TelegramApp, error) {
			return app.New(ctx, cfg)
		},
	})
	if err != nil {
		log.Fatalf("routafare: %v", err)
	}
}
