// Package api declares the HTTP API types and the chi routing glue for the
// imslice server. The layout follows oapi-codegen's chi-server output so the
// handlers in internal/server only implement ServerInterface.
package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

// Defines values for HealthResponseStatus.
const (
	Healthy HealthResponseStatus = "healthy"
)

// Defines values for ValidationErrorResponseError.
const (
	VALIDATIONERROR ValidationErrorResponseError = "VALIDATION_ERROR"
)

// ErrorResponse defines model for ErrorResponse.
type ErrorResponse struct {
	Details   *map[string]interface{} `json:"details,omitempty"`
	Error     string                  `json:"error"`
	Message   string                  `json:"message"`
	RequestId *string                 `json:"request_id,omitempty"`
}

// HealthResponse defines model for HealthResponse.
type HealthResponse struct {
	Status    HealthResponseStatus `json:"status"`
	Timestamp time.Time            `json:"timestamp"`
	Uptime    *int                 `json:"uptime,omitempty"`
	Version   *string              `json:"version,omitempty"`
}

// HealthResponseStatus defines model for HealthResponse.Status.
type HealthResponseStatus string

// ImageSize defines model for ImageSize.
type ImageSize struct {
	Height int `json:"height"`
	Width  int `json:"width"`
}

// TileGeometry defines model for TileGeometry.
type TileGeometry struct {
	Columns    int `json:"columns"`
	Rows       int `json:"rows"`
	TileHeight int `json:"tile_height"`
	TileWidth  int `json:"tile_width"`
}

// TileRegion defines model for TileRegion.
type TileRegion struct {
	Height int `json:"height"`
	Left   int `json:"left"`
	Top    int `json:"top"`
	Width  int `json:"width"`
}

// PlannedTile defines model for PlannedTile.
type PlannedTile struct {
	Col      int        `json:"col"`
	Filename string     `json:"filename"`
	Region   TileRegion `json:"region"`
	Row      int        `json:"row"`
}

// PlanResponse defines model for PlanResponse.
type PlanResponse struct {
	Format   string        `json:"format"`
	Geometry TileGeometry  `json:"geometry"`
	Image    ImageSize     `json:"image"`
	Tiles    []PlannedTile `json:"tiles"`
}

// ValidationErrorResponse defines model for ValidationErrorResponse.
type ValidationErrorResponse struct {
	Error            ValidationErrorResponseError `json:"error"`
	Message          string                       `json:"message"`
	RequestId        *string                      `json:"request_id,omitempty"`
	ValidationErrors []struct {
		Code    *string `json:"code,omitempty"`
		Field   string  `json:"field"`
		Message string  `json:"message"`
	} `json:"validation_errors"`
}

// ValidationErrorResponseError defines model for ValidationErrorResponse.Error.
type ValidationErrorResponseError string

// GetPlanParams defines parameters for GetPlan.
type GetPlanParams struct {
	Width      int     `form:"width" json:"width"`
	Height     int     `form:"height" json:"height"`
	// Grid hints. A tile_width and tile_height pair wins, then a positive
	// count, then columns and rows. A count of zero or less is ignored when
	// columns and rows are given and rejected as INVALID_TILE_COUNT otherwise.
	Columns    *int    `form:"columns,omitempty" json:"columns,omitempty"`
	Rows       *int    `form:"rows,omitempty" json:"rows,omitempty"`
	Count      *int    `form:"count,omitempty" json:"count,omitempty"`
	TileWidth  *int    `form:"tile_width,omitempty" json:"tile_width,omitempty"`
	TileHeight *int    `form:"tile_height,omitempty" json:"tile_height,omitempty"`
	Format     *string `form:"format,omitempty" json:"format,omitempty"`
}

// CreateTilesParams defines parameters for CreateTiles.
type CreateTilesParams struct {
	// Grid hints. A tile_width and tile_height pair wins, then a positive
	// count, then columns and rows. A count of zero or less is ignored when
	// columns and rows are given and rejected as INVALID_TILE_COUNT otherwise.
	Columns    *int    `form:"columns,omitempty" json:"columns,omitempty"`
	Rows       *int    `form:"rows,omitempty" json:"rows,omitempty"`
	Count      *int    `form:"count,omitempty" json:"count,omitempty"`
	TileWidth  *int    `form:"tile_width,omitempty" json:"tile_width,omitempty"`
	TileHeight *int    `form:"tile_height,omitempty" json:"tile_height,omitempty"`
	Format     *string `form:"format,omitempty" json:"format,omitempty"`
}

// JoinTilesParams defines parameters for JoinTiles.
type JoinTilesParams struct {
	Format *string `form:"format,omitempty" json:"format,omitempty"`
}

// ServerInterface represents all server handlers.
type ServerInterface interface {
	// Health check
	// (GET /health)
	GetHealth(w http.ResponseWriter, r *http.Request)
	// Compute the tile grid for an image size
	// (GET /plan)
	GetPlan(w http.ResponseWriter, r *http.Request, params GetPlanParams)
	// Slice an uploaded image into a zip of tiles
	// (POST /slice)
	CreateTiles(w http.ResponseWriter, r *http.Request, params CreateTilesParams)
	// Join a zip of tiles into one image
	// (POST /join)
	JoinTiles(w http.ResponseWriter, r *http.Request, params JoinTilesParams)
}

// ServerInterfaceWrapper converts contexts to parameters.
type ServerInterfaceWrapper struct {
	Handler            ServerInterface
	HandlerMiddlewares []MiddlewareFunc
	ErrorHandlerFunc   func(w http.ResponseWriter, r *http.Request, err error)
}

type MiddlewareFunc func(http.Handler) http.Handler

// queryParam describes one query parameter bound by the wrapper.
type queryParam struct {
	name     string
	required bool
	dest     interface{}
}

func (siw *ServerInterfaceWrapper) bind(w http.ResponseWriter, r *http.Request, params []queryParam) bool {
	query := r.URL.Query()
	for _, p := range params {
		if err := runtime.BindQueryParameter("form", true, p.required, p.name, query, p.dest); err != nil {
			siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: p.name, Err: err})
			return false
		}
	}
	return true
}

func (siw *ServerInterfaceWrapper) serve(w http.ResponseWriter, r *http.Request, h http.HandlerFunc) {
	handler := http.Handler(h)
	for _, middleware := range siw.HandlerMiddlewares {
		handler = middleware(handler)
	}
	handler.ServeHTTP(w, r)
}

// GetHealth operation middleware
func (siw *ServerInterfaceWrapper) GetHealth(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.GetHealth)
}

// GetPlan operation middleware
func (siw *ServerInterfaceWrapper) GetPlan(w http.ResponseWriter, r *http.Request) {
	var params GetPlanParams
	if !siw.bind(w, r, []queryParam{
		{"width", true, &params.Width},
		{"height", true, &params.Height},
		{"columns", false, &params.Columns},
		{"rows", false, &params.Rows},
		{"count", false, &params.Count},
		{"tile_width", false, &params.TileWidth},
		{"tile_height", false, &params.TileHeight},
		{"format", false, &params.Format},
	}) {
		return
	}

	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.GetPlan(w, r, params)
	})
}

// CreateTiles operation middleware
func (siw *ServerInterfaceWrapper) CreateTiles(w http.ResponseWriter, r *http.Request) {
	var params CreateTilesParams
	if !siw.bind(w, r, []queryParam{
		{"columns", false, &params.Columns},
		{"rows", false, &params.Rows},
		{"count", false, &params.Count},
		{"tile_width", false, &params.TileWidth},
		{"tile_height", false, &params.TileHeight},
		{"format", false, &params.Format},
	}) {
		return
	}

	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.CreateTiles(w, r, params)
	})
}

// JoinTiles operation middleware
func (siw *ServerInterfaceWrapper) JoinTiles(w http.ResponseWriter, r *http.Request) {
	var params JoinTilesParams
	if !siw.bind(w, r, []queryParam{
		{"format", false, &params.Format},
	}) {
		return
	}

	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.JoinTiles(w, r, params)
	})
}

// InvalidParamFormatError is passed to ErrorHandlerFunc when a query
// parameter is missing or malformed.
type InvalidParamFormatError struct {
	ParamName string
	Err       error
}

func (e *InvalidParamFormatError) Error() string {
	return fmt.Sprintf("Invalid format for parameter %s: %s", e.ParamName, e.Err.Error())
}

func (e *InvalidParamFormatError) Unwrap() error {
	return e.Err
}

type ChiServerOptions struct {
	BaseURL          string
	BaseRouter       chi.Router
	Middlewares      []MiddlewareFunc
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

// HandlerWithOptions creates http.Handler with additional options
func HandlerWithOptions(si ServerInterface, options ChiServerOptions) http.Handler {
	r := options.BaseRouter

	if r == nil {
		r = chi.NewRouter()
	}
	if options.ErrorHandlerFunc == nil {
		options.ErrorHandlerFunc = func(w http.ResponseWriter, r *http.Request, err error) {
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
	}
	wrapper := ServerInterfaceWrapper{
		Handler:            si,
		HandlerMiddlewares: options.Middlewares,
		ErrorHandlerFunc:   options.ErrorHandlerFunc,
	}

	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/health", wrapper.GetHealth)
	})
	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/plan", wrapper.GetPlan)
	})
	r.Group(func(r chi.Router) {
		r.Post(options.BaseURL+"/slice", wrapper.CreateTiles)
	})
	r.Group(func(r chi.Router) {
		r.Post(options.BaseURL+"/join", wrapper.JoinTiles)
	})

	return r
}
