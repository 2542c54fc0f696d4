package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/cnosuke/link-preview/config"
	"github.com/cnosuke/link-preview/logger"
	"github.com/cnosuke/link-preview/server"
	"github.com/cockroachdb/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

var (
	// Version and Revision are replaced when building.
	// To set specific version, edit Makefile.
	Version  = "0.0.1"
	Revision = "xxx"

	Name  = "link-preview"
	Usage = "Link preview API with Open Graph metadata and Google sign-in"
)

func main() {
	app := cli.NewApp()
	app.Version = fmt.Sprintf("%s (%s)", Version, Revision)
	app.Name = Name
	app.Usage = Usage

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Value:   "config.yml",
			Usage:   "path to the configuration file",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "override log.level (debug, info, warn, error)",
		},
	}

	app.Commands = []*cli.Command{
		{
			Name:  "serve",
			Usage: "Start the HTTP server",
			Action: withConfig(func(c *cli.Context, cfg *config.Config) error {
				return server.Run(cfg, Name, Version)
			}),
		},
		{
			Name:  "mcp",
			Usage: "Serve the link_preview tool over MCP stdio",
			Action: withConfig(func(c *cli.Context, cfg *config.Config) error {
				return server.RunMCP(cfg, Name, Version, Revision)
			}),
		},
		{
			Name:      "preview",
			Usage:     "Print the link preview of a URL as JSON",
			ArgsUsage: "<url>",
			Action: withConfig(func(c *cli.Context, cfg *config.Config) error {
				svc, err := server.NewPreviewService(cfg)
				if err != nil {
					return err
				}
				result, err := svc.Get(context.Background(), c.Args().First())
				if err != nil {
					return cli.Exit(err.Error(), 1)
				}
				enc := json.NewEncoder(c.App.Writer)
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// withConfig loads configuration and installs the global logger before
// running action.
func withConfig(action func(*cli.Context, *config.Config) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		cfg, err := config.LoadConfig(c.String("config"))
		if err != nil {
			return errors.Wrap(err, "failed to load configuration file")
		}
		if lvl := c.String("log-level"); lvl != "" {
			cfg.Log.Level = lvl
		}

		// stdout carries the MCP protocol and the preview output, so logs
		// must stay on stderr or in a file.
		cleanup, err := logger.Init(&logger.Config{
			Level:       cfg.Log.Level,
			Development: cfg.Log.Development,
			File:        cfg.Log.File,
			MaxSizeMB:   cfg.Log.MaxSizeMB,
			MaxBackups:  cfg.Log.MaxBackups,
			MaxAgeDays:  cfg.Log.MaxAgeDays,
		})
		if err != nil {
			return errors.Wrap(err, "failed to initialize logger")
		}
		defer cleanup()

		zap.S().Debugw("configuration loaded", "config", c.String("config"))
		return action(c, cfg)
	}
}
