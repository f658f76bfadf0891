package server

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/kiesman99/imslice/internal/api"
	"github.com/kiesman99/imslice/internal/imageops"
	"github.com/kiesman99/imslice/internal/joiner"
	"github.com/kiesman99/imslice/internal/logging"
	"github.com/kiesman99/imslice/internal/slicer"
	"github.com/kiesman99/imslice/pkg/tile"
)

// DefaultMaxUploadBytes bounds request bodies when Options leaves it unset.
const DefaultMaxUploadBytes = 64 << 20

// Options configures a Server
type Options struct {
	Slicer *slicer.Slicer
	Joiner *joiner.Joiner
	// Ops encodes tiles and joined images. Defaults to imageops.Default().
	Ops            imageops.Ops
	Logger         *slog.Logger
	MaxUploadBytes int64
}

// Server implements api.ServerInterface
type Server struct {
	startTime time.Time
	version   string

	slicer    *slicer.Slicer
	joiner    *joiner.Joiner
	ops       imageops.Ops
	logger    *slog.Logger
	maxUpload int64
}

// NewServer creates a new server instance
func NewServer(version string, opts *Options) *Server {
	if opts == nil {
		opts = &Options{}
	}

	s := &Server{
		startTime: time.Now(),
		version:   version,
		slicer:    opts.Slicer,
		joiner:    opts.Joiner,
		ops:       opts.Ops,
		logger:    logging.OrNop(opts.Logger).With("comp", "server"),
		maxUpload: opts.MaxUploadBytes,
	}
	if s.slicer == nil {
		s.slicer = slicer.New(&slicer.Options{Logger: opts.Logger})
	}
	if s.joiner == nil {
		s.joiner = joiner.New(&joiner.Options{Logger: opts.Logger})
	}
	if s.ops == nil {
		s.ops = imageops.Default()
	}
	if s.maxUpload <= 0 {
		s.maxUpload = DefaultMaxUploadBytes
	}
	return s
}

// GetHealth implements the health check endpoint
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	uptime := int(time.Since(s.startTime).Seconds())

	response := api.HealthResponse{
		Status:    api.Healthy,
		Timestamp: time.Now(),
		Uptime:    &uptime,
		Version:   &s.version,
	}

	s.writeJSON(w, http.StatusOK, response)
}

// GetPlan resolves the grid for an image size without touching any pixels
func (s *Server) GetPlan(w http.ResponseWriter, r *http.Request, params api.GetPlanParams) {
	requestID := generateRequestID()

	tmpl, ok := s.parseTemplate(w, params.Format, true, &requestID)
	if !ok {
		return
	}

	dims := tile.Dimensions{Width: params.Width, Height: params.Height}
	spec := gridSpec(params.Columns, params.Rows, params.Count, params.TileWidth, params.TileHeight)

	response, err := Plan(tmpl, dims, spec)
	if err != nil {
		s.handleTileError(w, err, &requestID)
		return
	}

	w.Header().Set("X-Request-ID", requestID)
	s.writeJSON(w, http.StatusOK, response)
}

// CreateTiles slices the uploaded image and responds with a zip of the tiles
func (s *Server) CreateTiles(w http.ResponseWriter, r *http.Request, params api.CreateTilesParams) {
	requestID := generateRequestID()

	tmpl, ok := s.parseTemplate(w, params.Format, true, &requestID)
	if !ok {
		return
	}

	spec := gridSpec(params.Columns, params.Rows, params.Count, params.TileWidth, params.TileHeight)
	if err := spec.Validate(); err != nil {
		s.handleTileError(w, err, &requestID)
		return
	}

	data, ok := s.readBody(w, r, &requestID)
	if !ok {
		return
	}

	img, err := imageops.Decode(bytes.NewReader(data))
	if err != nil {
		s.handleTileError(w, fmt.Errorf("%w: %w", tile.ErrSourceUnreadable, err), &requestID)
		return
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	geom, err := s.slicer.Generate(r.Context(), slicer.FromImage(img), spec, func(t slicer.Tile) error {
		name := tmpl.Format(t.Row, t.Col)
		fw, err := zw.Create(name)
		if err != nil {
			return err
		}
		return s.ops.Encode(fw, t.Image, name)
	})
	if err != nil {
		s.handleTileError(w, err, &requestID)
		return
	}
	if err := zw.Close(); err != nil {
		s.handleTileError(w, err, &requestID)
		return
	}

	s.logger.Info("sliced upload", "request_id", requestID, "columns", geom.Columns, "rows", geom.Rows,
		"bytes", buf.Len())

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="tiles.zip"`)
	w.Header().Set("X-Request-ID", requestID)
	w.Header().Set("X-Tile-Columns", strconv.Itoa(geom.Columns))
	w.Header().Set("X-Tile-Rows", strconv.Itoa(geom.Rows))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))

	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		s.logger.Error("writing response", "request_id", requestID, "err", err)
	}
}

// JoinTiles reassembles the tiles of an uploaded zip into a PNG image
func (s *Server) JoinTiles(w http.ResponseWriter, r *http.Request, params api.JoinTilesParams) {
	requestID := generateRequestID()

	tmpl, ok := s.parseTemplate(w, params.Format, false, &requestID)
	if !ok {
		return
	}

	data, ok := s.readBody(w, r, &requestID)
	if !ok {
		return
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		s.writeValidationErrorResponse(w, "body", "request body is not a zip archive", &requestID)
		return
	}

	img, err := s.joiner.Assemble(r.Context(), zr, tmpl)
	if err != nil {
		s.handleTileError(w, err, &requestID)
		return
	}

	var buf bytes.Buffer
	if err := s.ops.Encode(&buf, img, "joined.png"); err != nil {
		s.handleTileError(w, err, &requestID)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("X-Request-ID", requestID)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))

	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		s.logger.Error("writing response", "request_id", requestID, "err", err)
	}
}

// ParamError reports malformed query parameters in the API's error format.
// It is installed as the ErrorHandlerFunc of the generated router.
func (s *Server) ParamError(w http.ResponseWriter, r *http.Request, err error) {
	field := "query"
	var pe *api.InvalidParamFormatError
	if errors.As(err, &pe) {
		field = pe.ParamName
	}
	requestID := generateRequestID()
	s.writeValidationErrorResponse(w, field, err.Error(), &requestID)
}

// parseTemplate validates the optional naming template, writing a
// validation error when it is malformed. Templates for files the server
// writes must also carry an encodable extension.
func (s *Server) parseTemplate(w http.ResponseWriter, format *string, encodable bool, requestID *string) (tile.Template, bool) {
	raw := tile.DefaultTemplate
	if format != nil && *format != "" {
		raw = *format
	}

	tmpl, err := tile.ParseTemplate(raw)
	if err != nil {
		s.writeValidationErrorResponse(w, "format", err.Error(), requestID)
		return tile.Template{}, false
	}
	if !encodable {
		return tmpl, true
	}
	if err := imageops.CheckFormat(tmpl.Format(0, 0)); err != nil {
		s.writeValidationErrorResponse(w, "format", err.Error(), requestID)
		return tile.Template{}, false
	}
	return tmpl, true
}

func gridSpec(columns, rows, count, tileWidth, tileHeight *int) tile.GridSpec {
	var spec tile.GridSpec
	if count != nil {
		spec = tile.ByCount(*count)
	}
	if columns != nil {
		spec.Columns = *columns
	}
	if rows != nil {
		spec.Rows = *rows
	}
	if tileWidth != nil {
		spec.TileWidth = *tileWidth
	}
	if tileHeight != nil {
		spec.TileHeight = *tileHeight
	}
	return spec
}

// errorKinds maps tile errors to HTTP statuses and API error codes
var errorKinds = []struct {
	err    error
	status int
	code   string
}{
	{tile.ErrInvalidSpecification, http.StatusBadRequest, "INVALID_SPECIFICATION"},
	{tile.ErrInvalidTileCount, http.StatusBadRequest, "INVALID_TILE_COUNT"},
	{tile.ErrUngriddableCount, http.StatusBadRequest, "UNGRIDDABLE_COUNT"},
	{tile.ErrInvalidTemplate, http.StatusBadRequest, "VALIDATION_ERROR"},
	{tile.ErrSourceUnreadable, http.StatusBadRequest, "SOURCE_UNREADABLE"},
	{tile.ErrNoTilesFound, http.StatusUnprocessableEntity, "NO_TILES_FOUND"},
	{tile.ErrMissingTiles, http.StatusUnprocessableEntity, "MISSING_TILES"},
	{tile.ErrIncompatibleTiles, http.StatusUnprocessableEntity, "INCOMPATIBLE_TILES"},
	{tile.ErrDuplicateTiles, http.StatusUnprocessableEntity, "DUPLICATE_TILES"},
	{tile.ErrTooManyTiles, http.StatusUnprocessableEntity, "TOO_MANY_TILES"},
}

// handleTileError handles errors from slicing and joining
func (s *Server) handleTileError(w http.ResponseWriter, err error, requestID *string) {
	var details map[string]interface{}

	var missing *tile.MissingTilesError
	if errors.As(err, &missing) {
		details = map[string]interface{}{"missing": missing.Missing, "missing_count": missing.Total}
	}
	if errors.Is(err, tile.ErrTooManyTiles) {
		details = map[string]interface{}{"max_tiles": tile.MaxTiles}
	}
	var ungriddable *tile.UngriddableCountError
	if errors.As(err, &ungriddable) {
		details = map[string]interface{}{"count": ungriddable.Count}
	}

	for _, kind := range errorKinds {
		if errors.Is(err, kind.err) {
			s.writeErrorResponse(w, kind.status, kind.code, err.Error(), requestID, details)
			return
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		s.writeErrorResponse(w, http.StatusGatewayTimeout, "TIMEOUT",
			"Request timed out", requestID, nil)
		return
	}

	s.logger.Error("request failed", "request_id", *requestID, "err", err)
	s.writeErrorResponse(w, http.StatusInternalServerError, "INTERNAL_ERROR",
		"Internal server error", requestID, nil)
}

// readBody reads the whole request body up to the upload limit.
func (s *Server) readBody(w http.ResponseWriter, r *http.Request, requestID *string) ([]byte, bool) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxUpload))
	if err == nil {
		return data, true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		s.writeErrorResponse(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE",
			"Request body exceeds the upload limit", requestID, map[string]interface{}{
				"max_bytes": s.maxUpload,
			})
		return nil, false
	}
	s.writeErrorResponse(w, http.StatusBadRequest, "INVALID_REQUEST",
		"Could not read request body", requestID, nil)
	return nil, false
}

// writeErrorResponse writes a standard error response
func (s *Server) writeErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string, requestID *string, details map[string]interface{}) {
	response := api.ErrorResponse{
		Error:     errorCode,
		Message:   message,
		RequestId: requestID,
	}

	if details != nil {
		response.Details = &details
	}

	s.writeJSON(w, statusCode, response)
}

// writeValidationErrorResponse writes a validation error response
func (s *Server) writeValidationErrorResponse(w http.ResponseWriter, field, message string, requestID *string) {
	response := api.ValidationErrorResponse{
		Error:     api.VALIDATIONERROR,
		Message:   message,
		RequestId: requestID,
		ValidationErrors: []struct {
			Code    *string `json:"code,omitempty"`
			Field   string  `json:"field"`
			Message string  `json:"message"`
		}{
			{
				Field:   field,
				Message: message,
			},
		},
	}

	s.writeJSON(w, http.StatusBadRequest, response)
}

func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encoding response", "err", err)
	}
}

// generateRequestID generates a unique request ID
func generateRequestID() string {
	return uuid.NewString()
}
