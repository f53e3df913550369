package main

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/sarchip/internal/chipserver"
	"github.com/samcharles93/sarchip/internal/logger"
)

func serveCmd() *cli.Command {
	var (
		inPaths      []string
		addr         string
		readTimeout  time.Duration
		noMmap       bool
		maxChipBytes int64
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve chips of .rcf images over HTTP",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "in", Aliases: []string{"i"}, Usage: "path to .rcf file (repeatable)", Destination: &inPaths, Required: true},
			&cli.StringFlag{Name: "addr", Usage: "listen address", Value: "127.0.0.1:8080", Destination: &addr},
			&cli.DurationFlag{Name: "read-timeout", Usage: "read header timeout", Value: 30 * time.Second, Destination: &readTimeout},
			&cli.BoolFlag{Name: "no-mmap", Usage: "read with file I/O instead of memory mapping", Destination: &noMmap},
			&cli.Int64Flag{Name: "max-chip-bytes", Usage: "largest chip served", Value: chipserver.DefaultMaxChipBytes, Destination: &maxChipBytes},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			log := logger.FromContext(ctx)
			applyServeConfig(c, settings, &addr, &noMmap)

			server, err := chipserver.New(inPaths, chipserver.Options{
				NoMmap:       noMmap,
				MaxChipBytes: maxChipBytes,
				Logger:       log,
			})
			if err != nil {
				return err
			}
			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			server.Register(e)
			log.Info("starting server", "address", addr, "images", len(inPaths))
			sc := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(srv *http.Server) error {
					srv.ReadHeaderTimeout = readTimeout
					return nil
				},
			}
			return sc.Start(ctx, e)
		},
	}
}
