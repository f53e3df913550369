package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/sarchip/internal/imagestore"
	"github.com/samcharles93/sarchip/pkg/rcf"
)

type inspectReport struct {
	Path     string          `json:"path"`
	Size     int64           `json:"size"`
	Version  string          `json:"version"`
	Flags    []string        `json:"flags"`
	Sections []sectionReport `json:"sections"`
	Image    rcf.ImageInfo   `json:"image"`
	Segments []segmentReport `json:"segments"`
}

type sectionReport struct {
	Type    string `json:"type"`
	Version uint32 `json:"version"`
	Offset  uint64 `json:"offset"`
	Size    uint64 `json:"size"`
}

type segmentReport struct {
	Rows   [2]uint64 `json:"rows"`
	Cols   [2]uint64 `json:"cols"`
	Offset uint64    `json:"offset"`
	Size   uint64    `json:"size"`
}

func inspectCmd() *cli.Command {
	var (
		inPath  string
		asJSON  bool
		maxRows int
	)

	return &cli.Command{
		Name:  "inspect",
		Usage: "Inspect the contents of an .rcf container",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "in", Aliases: []string{"i"}, Usage: "path to .rcf file", Destination: &inPath, Required: true},
			&cli.BoolFlag{Name: "json", Usage: "print the report as JSON", Destination: &asJSON},
			&cli.IntFlag{Name: "segments-limit", Usage: "limit segment listing (0 = no limit)", Value: 50, Destination: &maxRows},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			st, err := os.Stat(inPath)
			if err != nil {
				return fmt.Errorf("stat %q: %w", inPath, err)
			}
			img, err := imagestore.Open(inPath)
			if err != nil {
				return fmt.Errorf("open rcf: %w", err)
			}
			report := buildReport(img, st.Size())
			if asJSON {
				return writeJSON(os.Stdout, report)
			}
			printReport(os.Stdout, report, maxRows)
			return nil
		},
	}
}

func buildReport(img *imagestore.Image, size int64) inspectReport {
	h := img.Header()
	r := inspectReport{
		Path:    img.Path(),
		Size:    size,
		Version: fmt.Sprintf("%d.%d", h.Major, h.Minor),
		Flags:   []string{},
		Image:   img.Info(),
	}
	if h.Flags&rcf.FlagSegmentsAligned != 0 {
		r.Flags = append(r.Flags, "segments_aligned64")
	}
	for _, s := range img.Sections() {
		r.Sections = append(r.Sections, sectionReport{
			Type:    rcf.SectionType(s.Type).String(),
			Version: s.Version,
			Offset:  s.Offset,
			Size:    s.Size,
		})
	}
	for _, s := range img.Segments() {
		r.Segments = append(r.Segments, segmentReport{
			Rows:   [2]uint64{s.RowStart, s.RowEnd},
			Cols:   [2]uint64{s.ColStart, s.ColEnd},
			Offset: s.DataOff,
			Size:   s.DataSize,
		})
	}
	return r
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printReport(w io.Writer, r inspectReport, limit int) {
	fmt.Fprintf(w, "RCF Inspect: %s\n", r.Path)
	flags := "none"
	if len(r.Flags) > 0 {
		flags = strings.Join(r.Flags, ", ")
	}
	fmt.Fprintf(w, "RCF Header: v%s sections=%d size=%s flags=%s\n",
		r.Version, len(r.Sections), formatBytes(uint64(r.Size)), flags)

	section(w, "Image")
	row(w, "id", r.Image.ID)
	row(w, "name", r.Image.Name)
	row(w, "dtype", r.Image.DataType)
	row(w, "shape", fmt.Sprintf("%d x %d x %d", r.Image.Rows, r.Image.Cols, r.Image.Bands))
	row(w, "complex", r.Image.Complex)
	if s := r.Image.Symmetry; s.FlipRows || s.FlipCols || s.Transpose {
		row(w, "symmetry", fmt.Sprintf("flip_rows=%t flip_cols=%t transpose=%t", s.FlipRows, s.FlipCols, s.Transpose))
	}
	row(w, "created_by", r.Image.CreatedBy)

	section(w, "Sections")
	for _, s := range r.Sections {
		fmt.Fprintf(w, "%-16s v%-2d off=%-10d size=%s\n", s.Type, s.Version, s.Offset, formatBytes(s.Size))
	}

	section(w, fmt.Sprintf("Segments (%d)", len(r.Segments)))
	for i, s := range r.Segments {
		if limit > 0 && i == limit {
			fmt.Fprintf(w, "... %d more\n", len(r.Segments)-limit)
			break
		}
		fmt.Fprintf(w, "%4d rows=[%d, %d) cols=[%d, %d) off=%-10d size=%s\n",
			i, s.Rows[0], s.Rows[1], s.Cols[0], s.Cols[1], s.Offset, formatBytes(s.Size))
	}
}

func section(w io.Writer, title string) {
	line := strings.Repeat("-", len(title)+8)
	fmt.Fprintf(w, "\n%s\n--- %s ---\n%s\n", line, title, line)
}

func row(w io.Writer, label, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(w, "%-24s %s\n", label+":", value)
}

func formatBytes(b uint64) string {
	const (
		kb = 1024
		mb = 1024 * kb
		gb = 1024 * mb
		tb = 1024 * gb
	)
	switch {
	case b >= tb:
		return fmt.Sprintf("%.2f TiB", float64(b)/float64(tb))
	case b >= gb:
		return fmt.Sprintf("%.2f GiB", float64(b)/float64(gb))
	case b >= mb:
		return fmt.Sprintf("%.2f MiB", float64(b)/float64(mb))
	case b >= kb:
		return fmt.Sprintf("%.2f KiB", float64(b)/float64(kb))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
