package server

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"image/color"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/disintegration/imaging"

	"github.com/kiesman99/imslice/internal/api"
	"github.com/kiesman99/imslice/pkg/tile"
)

// Test server setup
func setupTestServer(opts *Options) *httptest.Server {
	apiServer := NewServer("2.0.0-test", opts)
	return httptest.NewServer(NewRouter(apiServer, 30*time.Second))
}

// encodePNG returns a w x h PNG with a horizontal gradient
func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := imaging.New(w, h, color.Black)
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 9, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		t.Fatalf("Failed to encode PNG: %v", err)
	}
	return buf.Bytes()
}

// zipTiles builds an archive holding one w x h tile per name
func zipTiles(t *testing.T, w, h int, names ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		fw, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if err := imaging.Encode(fw, imaging.New(w, h, color.White), imaging.PNG); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func decodeError(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	var errorResp map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&errorResp); err != nil {
		t.Fatalf("Failed to decode error response: %v", err)
	}
	return errorResp
}

func TestHealthEndpoint(t *testing.T) {
	server := setupTestServer(nil)
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/v1/health")
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType != "application/json" {
		t.Errorf("Expected Content-Type application/json, got %s", contentType)
	}

	var healthResp api.HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&healthResp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if healthResp.Status != api.Healthy {
		t.Errorf("Expected status 'healthy', got %s", healthResp.Status)
	}

	if healthResp.Version == nil || *healthResp.Version != "2.0.0-test" {
		t.Errorf("Expected version '2.0.0-test', got %v", healthResp.Version)
	}

	if healthResp.Uptime == nil || *healthResp.Uptime < 0 {
		t.Errorf("Expected valid uptime, got %v", healthResp.Uptime)
	}

	if time.Since(healthResp.Timestamp) > time.Minute {
		t.Errorf("Timestamp seems too old: %v", healthResp.Timestamp)
	}
}

func TestHealthRedirect(t *testing.T) {
	server := setupTestServer(nil)
	defer server.Close()

	resp, err := http.Get(server.URL + "/health")
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200 after redirect, got %d", resp.StatusCode)
	}
	if resp.Request.URL.Path != "/api/v1/health" {
		t.Errorf("Expected redirect to /api/v1/health, got %s", resp.Request.URL.Path)
	}
}

func TestPlanEndpoint(t *testing.T) {
	server := setupTestServer(nil)
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/v1/plan?width=100&height=85&columns=3&rows=3")
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("Expected status 200, got %d. Body: %s", resp.StatusCode, string(body))
	}

	var plan api.PlanResponse
	if err := json.NewDecoder(resp.Body).Decode(&plan); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	expected := api.TileGeometry{Columns: 3, Rows: 3, TileWidth: 34, TileHeight: 29}
	if plan.Geometry != expected {
		t.Errorf("Expected geometry %+v, got %+v", expected, plan.Geometry)
	}
	if plan.Format != tile.DefaultTemplate {
		t.Errorf("Expected default format, got %s", plan.Format)
	}
	if len(plan.Tiles) != 9 {
		t.Fatalf("Expected 9 tiles, got %d", len(plan.Tiles))
	}

	last := plan.Tiles[8]
	if last.Row != 2 || last.Col != 2 || last.Filename != "tile_2_2.png" {
		t.Errorf("Unexpected last tile %+v", last)
	}
	if last.Region != (api.TileRegion{Left: 68, Top: 58, Width: 32, Height: 27}) {
		t.Errorf("Expected partial edge region, got %+v", last.Region)
	}
}

func TestPlanEndpoint_Errors(t *testing.T) {
	server := setupTestServer(nil)
	defer server.Close()

	testCases := []struct {
		name           string
		query          string
		expectedStatus int
		expectedError  string
	}{
		{
			name:           "Missing width",
			query:          "height=85&columns=2&rows=2",
			expectedStatus: http.StatusBadRequest,
			expectedError:  "VALIDATION_ERROR",
		},
		{
			name:           "Malformed count",
			query:          "width=100&height=85&count=many",
			expectedStatus: http.StatusBadRequest,
			expectedError:  "VALIDATION_ERROR",
		},
		{
			name:           "No grid hints",
			query:          "width=100&height=85",
			expectedStatus: http.StatusBadRequest,
			expectedError:  "INVALID_SPECIFICATION",
		},
		{
			name:           "Zero width",
			query:          "width=0&height=85&columns=2&rows=2",
			expectedStatus: http.StatusBadRequest,
			expectedError:  "INVALID_SPECIFICATION",
		},
		{
			name:           "Zero count",
			query:          "width=100&height=85&count=0",
			expectedStatus: http.StatusBadRequest,
			expectedError:  "INVALID_TILE_COUNT",
		},
		{
			name:           "Count above limit",
			query:          "width=100&height=85&count=10000",
			expectedStatus: http.StatusBadRequest,
			expectedError:  "INVALID_TILE_COUNT",
		},
		{
			name:           "Pixel tiles on a huge image",
			query:          "width=2000000000&height=2000000000&tile_width=1&tile_height=1",
			expectedStatus: http.StatusBadRequest,
			expectedError:  "INVALID_SPECIFICATION",
		},
		{
			name:           "Max int width",
			query:          "width=9223372036854775807&height=10&tile_width=2&tile_height=10",
			expectedStatus: http.StatusBadRequest,
			expectedError:  "INVALID_SPECIFICATION",
		},
		{
			name:           "Prime count",
			query:          "width=100&height=85&count=7",
			expectedStatus: http.StatusBadRequest,
			expectedError:  "UNGRIDDABLE_COUNT",
		},
		{
			name:           "Template without column",
			query:          "width=100&height=85&count=4&format=tile_{row}.png",
			expectedStatus: http.StatusBadRequest,
			expectedError:  "VALIDATION_ERROR",
		},
		{
			name:           "Template with unsupported extension",
			query:          "width=100&height=85&count=4&format=tile_{row}_{col}.webp",
			expectedStatus: http.StatusBadRequest,
			expectedError:  "VALIDATION_ERROR",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := http.Get(server.URL + "/api/v1/plan?" + tc.query)
			if err != nil {
				t.Fatalf("Failed to make request: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tc.expectedStatus {
				t.Errorf("Expected status %d, got %d", tc.expectedStatus, resp.StatusCode)
			}

			errorResp := decodeError(t, resp)
			if errorCode, ok := errorResp["error"].(string); !ok || errorCode != tc.expectedError {
				t.Errorf("Expected error code %s, got %v", tc.expectedError, errorResp["error"])
			}
			if _, ok := errorResp["request_id"].(string); !ok {
				t.Error("Expected request_id in error response")
			}
		})
	}
}

func TestPlanEndpoint_NonPositiveCountWithGrid(t *testing.T) {
	server := setupTestServer(nil)
	defer server.Close()

	for _, count := range []string{"0", "-3"} {
		resp, err := http.Get(server.URL + "/api/v1/plan?width=100&height=85&columns=2&rows=3&count=" + count)
		if err != nil {
			t.Fatalf("Failed to make request: %v", err)
		}

		var plan api.PlanResponse
		err = json.NewDecoder(resp.Body).Decode(&plan)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("count=%s: expected status 200, got %d", count, resp.StatusCode)
		}
		if err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if plan.Geometry.Columns != 2 || plan.Geometry.Rows != 3 {
			t.Errorf("count=%s: expected 2 columns x 3 rows, got %+v", count, plan.Geometry)
		}
	}
}

func TestPlanEndpoint_UngriddableDetails(t *testing.T) {
	server := setupTestServer(nil)
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/v1/plan?width=100&height=85&count=13")
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	defer resp.Body.Close()

	var errorResp api.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errorResp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if errorResp.Details == nil {
		t.Fatal("Expected details")
	}
	if count, ok := (*errorResp.Details)["count"].(float64); !ok || count != 13 {
		t.Errorf("Expected count 13 in details, got %v", *errorResp.Details)
	}
}

func TestSliceEndpoint_Success(t *testing.T) {
	server := setupTestServer(nil)
	defer server.Close()

	resp, err := http.Post(
		server.URL+"/api/v1/slice?columns=2&rows=3&format=part_{row}_{col}.png",
		"image/png",
		bytes.NewReader(encodePNG(t, 100, 85)),
	)
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("Expected status 200, got %d. Body: %s", resp.StatusCode, string(body))
	}

	if ct := resp.Header.Get("Content-Type"); ct != "application/zip" {
		t.Errorf("Expected Content-Type application/zip, got %s", ct)
	}
	if resp.Header.Get("X-Tile-Columns") != "2" || resp.Header.Get("X-Tile-Rows") != "3" {
		t.Errorf("Unexpected grid headers %s x %s", resp.Header.Get("X-Tile-Columns"), resp.Header.Get("X-Tile-Rows"))
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("Expected X-Request-ID header")
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response body: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("Response is not a zip archive: %v", err)
	}

	if len(zr.File) != 6 {
		t.Fatalf("Expected 6 tiles, got %d", len(zr.File))
	}
	expectedNames := []string{"part_0_0.png", "part_0_1.png", "part_1_0.png", "part_1_1.png", "part_2_0.png", "part_2_1.png"}
	for i, f := range zr.File {
		if f.Name != expectedNames[i] {
			t.Errorf("Entry %d = %s, expected %s", i, f.Name, expectedNames[i])
		}
	}

	// bottom row is the partial one: 85 = 29 + 29 + 27
	f, err := zr.Open("part_2_1.png")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := imaging.Decode(f)
	if err != nil {
		t.Fatalf("Failed to decode tile: %v", err)
	}
	if img.Bounds().Dx() != 50 || img.Bounds().Dy() != 27 {
		t.Errorf("Expected 50x27 tile, got %v", img.Bounds())
	}
}

func TestSliceEndpoint_Errors(t *testing.T) {
	server := setupTestServer(&Options{MaxUploadBytes: 4096})
	defer server.Close()

	testCases := []struct {
		name           string
		query          string
		body           []byte
		expectedStatus int
		expectedError  string
	}{
		{
			name:           "Not an image",
			query:          "count=4",
			body:           []byte("plain text"),
			expectedStatus: http.StatusBadRequest,
			expectedError:  "SOURCE_UNREADABLE",
		},
		{
			name:           "No grid hints",
			query:          "",
			body:           encodePNG(t, 10, 10),
			expectedStatus: http.StatusBadRequest,
			expectedError:  "INVALID_SPECIFICATION",
		},
		{
			name:           "Prime count",
			query:          "count=11",
			body:           encodePNG(t, 10, 10),
			expectedStatus: http.StatusBadRequest,
			expectedError:  "UNGRIDDABLE_COUNT",
		},
		{
			name:           "Body too large",
			query:          "count=4",
			body:           bytes.Repeat([]byte{0x89}, 8192),
			expectedStatus: http.StatusRequestEntityTooLarge,
			expectedError:  "PAYLOAD_TOO_LARGE",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := http.Post(server.URL+"/api/v1/slice?"+tc.query, "application/octet-stream", bytes.NewReader(tc.body))
			if err != nil {
				t.Fatalf("Failed to make request: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tc.expectedStatus {
				t.Errorf("Expected status %d, got %d", tc.expectedStatus, resp.StatusCode)
			}
			errorResp := decodeError(t, resp)
			if errorCode, ok := errorResp["error"].(string); !ok || errorCode != tc.expectedError {
				t.Errorf("Expected error code %s, got %v", tc.expectedError, errorResp["error"])
			}
		})
	}
}

func TestJoinEndpoint_Success(t *testing.T) {
	server := setupTestServer(nil)
	defer server.Close()

	body := zipTiles(t, 20, 15,
		"tile_0_0.png", "tile_0_1.png", "tile_0_2.png",
		"tile_1_0.png", "tile_1_1.png", "tile_1_2.png",
		"README.txt",
	)

	resp, err := http.Post(server.URL+"/api/v1/join", "application/zip", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		t.Fatalf("Expected status 200, got %d. Body: %s", resp.StatusCode, string(data))
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("Expected Content-Type image/png, got %s", ct)
	}

	imageData, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response body: %v", err)
	}
	if len(imageData) < 8 || !bytes.Equal(imageData[:8], []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}) {
		t.Fatal("Response does not appear to be a valid PNG file")
	}

	img, err := imaging.Decode(bytes.NewReader(imageData))
	if err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if img.Bounds().Dx() != 60 || img.Bounds().Dy() != 30 {
		t.Errorf("Expected 60x30 image, got %v", img.Bounds())
	}
}

func TestJoinEndpoint_Errors(t *testing.T) {
	server := setupTestServer(nil)
	defer server.Close()

	testCases := []struct {
		name           string
		body           []byte
		expectedStatus int
		expectedError  string
	}{
		{
			name:           "Not a zip",
			body:           []byte("definitely not a zip"),
			expectedStatus: http.StatusBadRequest,
			expectedError:  "VALIDATION_ERROR",
		},
		{
			name:           "No matching tiles",
			body:           zipTiles(t, 5, 5, "photo.png"),
			expectedStatus: http.StatusUnprocessableEntity,
			expectedError:  "NO_TILES_FOUND",
		},
		{
			name:           "Missing tile",
			body:           zipTiles(t, 5, 5, "tile_0_0.png", "tile_1_1.png"),
			expectedStatus: http.StatusUnprocessableEntity,
			expectedError:  "MISSING_TILES",
		},
		{
			name:           "Tile far outside any sane grid",
			body:           zipTiles(t, 2, 2, "tile_0_0.png", "tile_3000_3000.png"),
			expectedStatus: http.StatusUnprocessableEntity,
			expectedError:  "TOO_MANY_TILES",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := http.Post(server.URL+"/api/v1/join", "application/zip", bytes.NewReader(tc.body))
			if err != nil {
				t.Fatalf("Failed to make request: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tc.expectedStatus {
				t.Errorf("Expected status %d, got %d", tc.expectedStatus, resp.StatusCode)
			}
			errorResp := decodeError(t, resp)
			if errorCode, ok := errorResp["error"].(string); !ok || errorCode != tc.expectedError {
				t.Errorf("Expected error code %s, got %v", tc.expectedError, errorResp["error"])
			}
		})
	}
}

func TestJoinEndpoint_MissingDetails(t *testing.T) {
	server := setupTestServer(nil)
	defer server.Close()

	body := zipTiles(t, 5, 5, "tile_0_0.png", "tile_1_1.png")
	resp, err := http.Post(server.URL+"/api/v1/join", "application/zip", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	defer resp.Body.Close()

	var errorResp api.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errorResp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if errorResp.Details == nil {
		t.Fatal("Expected details")
	}
	missing, ok := (*errorResp.Details)["missing"].([]interface{})
	if !ok || len(missing) != 2 {
		t.Fatalf("Expected two missing coordinates, got %v", *errorResp.Details)
	}
	first, _ := missing[0].(map[string]interface{})
	if first["row"] != float64(0) || first["col"] != float64(1) {
		t.Errorf("Expected (0, 1) first, got %v", first)
	}
	if total, ok := (*errorResp.Details)["missing_count"].(float64); !ok || total != 2 {
		t.Errorf("Expected missing_count 2, got %v", (*errorResp.Details)["missing_count"])
	}
}

func TestJoinEndpoint_MissingListIsCapped(t *testing.T) {
	server := setupTestServer(nil)
	defer server.Close()

	body := zipTiles(t, 2, 2, "tile_0_0.png", "tile_98_98.png")
	resp, err := http.Post(server.URL+"/api/v1/join", "application/zip", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("Expected status 422, got %d", resp.StatusCode)
	}
	var errorResp api.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errorResp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if errorResp.Details == nil {
		t.Fatal("Expected details")
	}
	missing, _ := (*errorResp.Details)["missing"].([]interface{})
	if len(missing) != tile.MaxListedMissing {
		t.Errorf("Expected %d listed coordinates, got %d", tile.MaxListedMissing, len(missing))
	}
	if total, _ := (*errorResp.Details)["missing_count"].(float64); total != float64(tile.MaxTiles-2) {
		t.Errorf("Expected missing_count %d, got %v", tile.MaxTiles-2, total)
	}
}

func TestSliceThenJoin(t *testing.T) {
	server := setupTestServer(nil)
	defer server.Close()

	source := encodePNG(t, 64, 48)
	resp, err := http.Post(server.URL+"/api/v1/slice?count=6", "image/png", bytes.NewReader(source))
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	tiles, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("Slice failed: status %d, err %v", resp.StatusCode, err)
	}

	resp, err = http.Post(server.URL+"/api/v1/join", "application/zip", bytes.NewReader(tiles))
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("Expected status 200, got %d. Body: %s", resp.StatusCode, string(body))
	}

	got, err := imaging.Decode(resp.Body)
	if err != nil {
		t.Fatalf("Failed to decode joined image: %v", err)
	}
	want, err := imaging.Decode(bytes.NewReader(source))
	if err != nil {
		t.Fatal(err)
	}
	if got.Bounds() != want.Bounds() {
		t.Fatalf("Expected bounds %v, got %v", want.Bounds(), got.Bounds())
	}
	for _, p := range [][2]int{{0, 0}, {21, 23}, {22, 24}, {63, 47}} {
		wr, wg, wb, _ := want.At(p[0], p[1]).RGBA()
		gr, gg, gb, _ := got.At(p[0], p[1]).RGBA()
		if wr != gr || wg != gg || wb != gb {
			t.Errorf("Pixel %v differs after round trip", p)
		}
	}
}

func TestCORSHeaders(t *testing.T) {
	server := setupTestServer(nil)
	defer server.Close()

	req, err := http.NewRequest("OPTIONS", server.URL+"/api/v1/slice", nil)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	defer resp.Body.Close()

	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Error("Expected Access-Control-Allow-Origin: *")
	}

	if !strings.Contains(resp.Header.Get("Access-Control-Allow-Methods"), "POST") {
		t.Error("Expected Access-Control-Allow-Methods to include POST")
	}

	if !strings.Contains(resp.Header.Get("Access-Control-Allow-Headers"), "Content-Type") {
		t.Error("Expected Access-Control-Allow-Headers to include Content-Type")
	}
}
