package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/y-murata/kasa/weather"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the weather MCP server on stdio",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return weather.Serve()
		},
	}
}
