package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/wolfeidau/assetpack/cmd/assetpack/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Build    commands.BuildCmd    `cmd:"" default:"withargs" help:"Bundle the entry module"`
		Validate commands.ValidateCmd `cmd:"" help:"Validate a descriptor"`
		Print    commands.PrintCmd    `cmd:"" help:"Print the normalised descriptor"`
		Init     commands.InitCmd     `cmd:"" help:"Write a starter descriptor"`
		Debug    bool                 `help:"Enable debug mode." env:"ASSETPACK_DEBUG"`
		Version  kong.VersionFlag
	}
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := kong.Parse(&cli,
		kong.Name("assetpack"),
		kong.Description("Bundle scripts and stylesheets from a build descriptor."),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Version: version, Stdout: os.Stdout})
	cmd.FatalIfErrorf(err)
}
