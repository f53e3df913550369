// Package chipserver serves chips of .rcf images over HTTP.
//
//	GET /v1/images                          list images
//	GET /v1/images/:image                   image info and segment table
//	GET /v1/images/:image/chip?rows=&cols=  chip statistics, or raw samples with format=raw
//
// :image is the file name without extension or the image ID.
package chipserver

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v5"

	"github.com/samcharles93/sarchip/internal/chipstats"
	"github.com/samcharles93/sarchip/internal/imagestore"
	"github.com/samcharles93/sarchip/internal/logger"
	"github.com/samcharles93/sarchip/pkg/bip"
	"github.com/samcharles93/sarchip/pkg/rcf"
)

// DefaultMaxChipBytes caps the decoded size of one chip.
const DefaultMaxChipBytes = 256 << 20

// Response headers describing a raw chip body.
const (
	HeaderChipShape = "X-Chip-Shape"
	HeaderChipKind  = "X-Chip-Kind"
	HeaderChipOrder = "X-Chip-Byte-Order"
)

type Options struct {
	NoMmap       bool
	MaxChipBytes int64
	Logger       logger.Logger
}

// Server holds the metadata of a fixed set of images. Every chip request
// opens its own reader, so concurrent requests never share a backing.
type Server struct {
	images map[string]*imagestore.Image
	byID   map[string]string
	names  []string
	opts   Options
}

func New(paths []string, opts Options) (*Server, error) {
	if opts.MaxChipBytes <= 0 {
		opts.MaxChipBytes = DefaultMaxChipBytes
	}
	if opts.Logger == nil {
		opts.Logger = logger.Default()
	}
	s := &Server{
		images: make(map[string]*imagestore.Image, len(paths)),
		byID:   make(map[string]string, len(paths)),
		opts:   opts,
	}
	for _, path := range paths {
		img, err := imagestore.Open(path)
		if err != nil {
			return nil, err
		}
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		if _, dup := s.images[name]; dup {
			return nil, fmt.Errorf("duplicate image name %q (%s)", name, path)
		}
		s.images[name] = img
		s.names = append(s.names, name)
		if id, err := uuid.Parse(img.Info().ID); err == nil {
			s.byID[id.String()] = name
		}
	}
	sort.Strings(s.names)
	return s, nil
}

func (s *Server) Register(e *echo.Echo) {
	e.GET("/v1/images", s.handleListImages)
	e.GET("/v1/images/:image", s.handleGetImage)
	e.GET("/v1/images/:image/chip", s.handleChip)
}

type ImageSummary struct {
	Name     string `json:"name"`
	ID       string `json:"id,omitempty"`
	DataType string `json:"data_type"`
	Rows     int    `json:"rows"`
	Cols     int    `json:"cols"`
	Bands    int    `json:"bands"`
	Complex  string `json:"complex"`
	Segments int    `json:"segments"`
}

type SegmentBounds struct {
	Rows   [2]uint64 `json:"rows"`
	Cols   [2]uint64 `json:"cols"`
	Offset uint64    `json:"offset"`
	Size   uint64    `json:"size"`
}

type ImageDetail struct {
	Name     string          `json:"name"`
	Info     rcf.ImageInfo   `json:"info"`
	Segments []SegmentBounds `json:"segments"`
}

type ChipResponse struct {
	Image string          `json:"image"`
	Rows  string          `json:"rows"`
	Cols  string          `json:"cols"`
	Stats chipstats.Stats `json:"stats"`
}

func summary(name string, img *imagestore.Image) ImageSummary {
	info := img.Info()
	return ImageSummary{
		Name:     name,
		ID:       info.ID,
		DataType: info.DataType,
		Rows:     info.Rows,
		Cols:     info.Cols,
		Bands:    info.Bands,
		Complex:  info.Complex,
		Segments: len(img.Segments()),
	}
}

func (s *Server) lookup(key string) (string, *imagestore.Image, bool) {
	if img, ok := s.images[key]; ok {
		return key, img, true
	}
	if id, err := uuid.Parse(key); err == nil {
		if name, ok := s.byID[id.String()]; ok {
			return name, s.images[name], true
		}
	}
	return "", nil, false
}

func (s *Server) handleListImages(c *echo.Context) error {
	data := make([]ImageSummary, 0, len(s.names))
	for _, name := range s.names {
		data = append(data, summary(name, s.images[name]))
	}
	return c.JSON(http.StatusOK, map[string]any{"data": data})
}

func (s *Server) handleGetImage(c *echo.Context) error {
	name, img, ok := s.lookup(c.Param("image"))
	if !ok {
		return writeNotFound(c, fmt.Sprintf("image %q not found", c.Param("image")))
	}
	detail := ImageDetail{Name: name, Info: img.Info()}
	for _, seg := range img.Segments() {
		detail.Segments = append(detail.Segments, SegmentBounds{
			Rows:   [2]uint64{seg.RowStart, seg.RowEnd},
			Cols:   [2]uint64{seg.ColStart, seg.ColEnd},
			Offset: seg.DataOff,
			Size:   seg.DataSize,
		})
	}
	return c.JSON(http.StatusOK, detail)
}

func (s *Server) handleChip(c *echo.Context) error {
	name, img, ok := s.lookup(c.Param("image"))
	if !ok {
		return writeNotFound(c, fmt.Sprintf("image %q not found", c.Param("image")))
	}
	rows, err := bip.ParseRange(c.QueryParam("rows"))
	if err != nil {
		return writeBadRequest(c, "rows: "+err.Error())
	}
	cols, err := bip.ParseRange(c.QueryParam("cols"))
	if err != nil {
		return writeBadRequest(c, "cols: "+err.Error())
	}
	raw := false
	switch format := c.QueryParam("format"); format {
	case "", "stats":
	case "raw":
		raw = true
	default:
		return writeBadRequest(c, fmt.Sprintf("unknown format %q (want stats or raw)", format))
	}

	size, err := chipBytes(img, rows, cols)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	if size > s.opts.MaxChipBytes {
		return writeError(c, http.StatusRequestEntityTooLarge, "chip_too_large",
			fmt.Sprintf("chip of %d bytes exceeds the limit of %d", size, s.opts.MaxChipBytes))
	}

	log := s.opts.Logger.With("image", name)
	r, err := img.Reader(imagestore.AccessOptions{NoMmap: s.opts.NoMmap, Logger: log})
	if err != nil {
		return writeError(c, http.StatusInternalServerError, "server_error", err.Error())
	}
	defer func() {
		if cerr := r.Close(); cerr != nil {
			log.Warn("closing reader", "error", cerr)
		}
	}()

	chip, err := r.Read(rows, cols)
	if err != nil {
		if errors.Is(err, bip.ErrOutOfRange) {
			return writeBadRequest(c, err.Error())
		}
		return writeError(c, http.StatusInternalServerError, "server_error", err.Error())
	}
	log.Debug("served chip", "rows", rows, "cols", cols, "bytes", len(chip.Bytes()), "raw", raw)

	if raw {
		h := c.Response().Header()
		h.Set(HeaderChipShape, fmt.Sprintf("%d,%d,%d", chip.Rows, chip.Cols, chip.Bands))
		h.Set(HeaderChipKind, chip.Kind.String())
		h.Set(HeaderChipOrder, hostOrder())
		return c.Blob(http.StatusOK, echo.MIMEOctetStream, chip.Bytes())
	}
	return c.JSON(http.StatusOK, ChipResponse{
		Image: name,
		Rows:  rows.String(),
		Cols:  cols.String(),
		Stats: chipstats.Summarize(chip),
	})
}

// chipBytes is the decoded size of the selection, computed before reading.
func chipBytes(img *imagestore.Image, rows, cols bip.Range) (int64, error) {
	info := img.Info()
	nr, err := rows.Count(info.Rows)
	if err != nil {
		return 0, err
	}
	nc, err := cols.Count(info.Cols)
	if err != nil {
		return 0, err
	}
	elem := img.DataType().Size()
	if info.Complex == rcf.ComplexPaired {
		elem = bip.Complex64.Size()
	}
	return int64(nr) * int64(nc) * int64(info.Bands) * int64(elem), nil
}

func hostOrder() string {
	var probe [2]byte
	binary.NativeEndian.PutUint16(probe[:], 1)
	if probe[0] == 1 {
		return "little"
	}
	return "big"
}

func writeBadRequest(c *echo.Context, msg string) error {
	return writeError(c, http.StatusBadRequest, "invalid_request_error", msg)
}

func writeNotFound(c *echo.Context, msg string) error {
	return writeError(c, http.StatusNotFound, "not_found_error", msg)
}

func writeError(c *echo.Context, status int, errType, msg string) error {
	return c.JSON(status, map[string]any{
		"error": map[string]string{
			"message": msg,
			"type":    errType,
			"code":    strconv.Itoa(status),
		},
	})
}
