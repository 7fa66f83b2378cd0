package main

import (
	"context"
	"os"

	"reallynicca-backend/infrastructure/config"
	"reallynicca-backend/infrastructure/di"
)

func main() {
	cli := &app{
		in:  os.Stdin,
		out: os.Stdout,
		newContainer: func(ctx context.Context) (*di.Container, func(), error) {
			cfg, err := config.LoadConfig()
			if err != nil {
				return nil, nil, err
			}
			return di.InitializeContainer(ctx, cfg)
		},
	}

	if err := cli.rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
