package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/sarchip/internal/chipstats"
	"github.com/samcharles93/sarchip/internal/imagestore"
	"github.com/samcharles93/sarchip/internal/layoutfile"
	"github.com/samcharles93/sarchip/internal/logger"
	"github.com/samcharles93/sarchip/pkg/bip"
)

// chipSource names where a chip is read from: an .rcf container, or a raw
// file described by a layout manifest.
type chipSource struct {
	container string
	raw       string
	layout    string
}

func (s chipSource) open(noMmap bool, log logger.Logger) (bip.Reader, error) {
	switch {
	case s.container != "" && (s.raw != "" || s.layout != ""):
		return nil, errors.New("--in cannot be combined with --raw or --layout")
	case s.container != "":
		img, err := imagestore.Open(s.container)
		if err != nil {
			return nil, err
		}
		return img.Reader(imagestore.AccessOptions{NoMmap: noMmap, Logger: log})
	case s.raw != "" && s.layout != "":
		m, err := layoutfile.Load(s.layout)
		if err != nil {
			return nil, err
		}
		return layoutfile.Open(s.raw, m, noMmap, log)
	default:
		return nil, errors.New("either --in or both --raw and --layout are required")
	}
}

func chipCmd() *cli.Command {
	var (
		src     chipSource
		rowSel  string
		colSel  string
		noMmap  bool
		outPath string
	)

	return &cli.Command{
		Name:  "chip",
		Usage: "Read a chip and print magnitude statistics",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "in", Aliases: []string{"i"}, Usage: "path to .rcf file", Destination: &src.container},
			&cli.StringFlag{Name: "raw", Usage: "path to a raw BIP file", Destination: &src.raw},
			&cli.StringFlag{Name: "layout", Usage: "layout manifest (.yaml) for --raw", Destination: &src.layout},
			&cli.StringFlag{Name: "rows", Usage: "row selection start:stop:step", Value: ":", Destination: &rowSel},
			&cli.StringFlag{Name: "cols", Usage: "column selection start:stop:step", Value: ":", Destination: &colSel},
			&cli.BoolFlag{Name: "no-mmap", Usage: "read with file I/O instead of memory mapping", Destination: &noMmap},
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "write the chip samples (host byte order) to this file", Destination: &outPath},
		},
		Action: func(ctx context.Context, c *cli.Command) (err error) {
			log := logger.FromContext(ctx)
			applyAccessConfig(c, settings, &noMmap)

			rows, err := bip.ParseRange(rowSel)
			if err != nil {
				return fmt.Errorf("--rows: %w", err)
			}
			cols, err := bip.ParseRange(colSel)
			if err != nil {
				return fmt.Errorf("--cols: %w", err)
			}

			r, err := src.open(noMmap, log)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := r.Close(); err == nil {
					err = cerr
				}
			}()

			chip, err := r.Read(rows, cols)
			if err != nil {
				return err
			}
			n, m, b := r.Shape()
			log.Debug("read chip", "image", fmt.Sprintf("%dx%dx%d", n, m, b), "rows", rows, "cols", cols)
			chipstats.Summarize(chip).Print(os.Stdout)

			if outPath != "" {
				if err := os.WriteFile(outPath, chip.Bytes(), 0o644); err != nil {
					return err
				}
				log.Info("wrote chip", "path", outPath, "bytes", len(chip.Bytes()))
			}
			return nil
		},
	}
}
