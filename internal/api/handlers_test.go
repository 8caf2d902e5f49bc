package api

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"cardvault/internal/cardref"
	"cardvault/internal/database"
	"cardvault/internal/match"
	"cardvault/internal/ocr"
	"cardvault/internal/pipeline"
	"cardvault/internal/storage"
)

type stubOCRClient struct {
	result *ocr.Result
	err    error
}

func (s *stubOCRClient) ProcessImage(ctx context.Context, imageData []byte) (*ocr.Result, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

type stubCardClient struct {
	cards []cardref.Card
}

func (s *stubCardClient) Search(ctx context.Context, q cardref.Query) ([]cardref.Card, error) {
	return s.cards, nil
}

func newTestRouter(t *testing.T) (http.Handler, *stubOCRClient, *stubCardClient) {
	t.Helper()

	db, err := database.Open(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store, err := storage.NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}

	ocrClient := &stubOCRClient{result: &ocr.Result{Text: "line", Confidence: 90}}
	cardClient := &stubCardClient{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	matcher, err := match.New(cardClient, match.Config{
		Weights:       match.DefaultWeights(),
		MinConfidence: 0.4,
	}, logger)
	if err != nil {
		t.Fatalf("failed to create matcher: %v", err)
	}

	svc := pipeline.NewService(
		database.NewScanRepository(db),
		database.NewStitchedImageRepository(db),
		store, ocrClient, matcher,
		pipeline.Config{MaxConcurrency: 2, LabelCropRatio: 0.25, LabelWidth: 100},
		logger,
	)

	app := NewApp(svc, 32<<20, logger)
	return NewRouter(app), ocrClient, cardClient
}

func testPNG(t *testing.T, fill color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 100, 200))
	for y := 0; y < 200; y++ {
		for x := 0; x < 100; x++ {
			img.Set(x, y, fill)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

func multipartUpload(t *testing.T, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for name, data := range files {
		part, err := writer.CreateFormFile("images", name)
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}
		part.Write(data)
	}
	writer.Close()
	return body, writer.FormDataContentType()
}

func doJSON(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(dst); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

func TestPing(t *testing.T) {
	router, _, _ := newTestRouter(t)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "pong" {
		t.Errorf("unexpected ping response: %d %q", rec.Code, rec.Body.String())
	}
}

func TestUploadHandler(t *testing.T) {
	router, _, _ := newTestRouter(t)

	body, contentType := multipartUpload(t, map[string][]byte{
		"card.png": testPNG(t, color.RGBA{255, 0, 0, 255}),
	})
	req := httptest.NewRequest(http.MethodPost, "/api/scans/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var result pipeline.UploadResult
	decodeBody(t, rec, &result)
	if result.Successful != 1 || len(result.ScanIDs) != 1 {
		t.Errorf("unexpected upload result: %+v", result)
	}
}

func TestUploadHandlerRequiresFiles(t *testing.T) {
	router, _, _ := newTestRouter(t)

	body, contentType := multipartUpload(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/scans/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty upload, got %d", rec.Code)
	}
}

func TestExtractHandlerValidation(t *testing.T) {
	router, _, _ := newTestRouter(t)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{`},
		{"missing field", `{}`},
		{"empty list", `{"scan_ids": []}`},
		{"blank id", `{"scan_ids": [""]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, router, http.MethodPost, "/api/scans/extract", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestStitchHandlerErrors(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/scans/stitch", `{"image_hashes": ["unknown"]}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown member, got %d: %s", rec.Code, rec.Body.String())
	}

	// Upload but skip extraction: the member is not stitchable yet.
	body, contentType := multipartUpload(t, map[string][]byte{
		"card.png": testPNG(t, color.RGBA{0, 0, 255, 255}),
	})
	req := httptest.NewRequest(http.MethodPost, "/api/scans/upload", body)
	req.Header.Set("Content-Type", contentType)
	upRec := httptest.NewRecorder()
	router.ServeHTTP(upRec, req)

	var scans struct {
		Scans []struct {
			ContentHash string `json:"content_hash"`
		} `json:"scans"`
	}
	listRec := doJSON(t, router, http.MethodGet, "/api/scans/", "")
	decodeBody(t, listRec, &scans)
	if len(scans.Scans) != 1 {
		t.Fatalf("expected 1 scan, got %d", len(scans.Scans))
	}

	rec = doJSON(t, router, http.MethodPost, "/api/scans/stitch",
		`{"image_hashes": ["`+scans.Scans[0].ContentHash+`"]}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 for unextracted member, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestPipelineEndToEndOverHTTP(t *testing.T) {
	router, ocrClient, cardClient := newTestRouter(t)

	body, contentType := multipartUpload(t, map[string][]byte{
		"card.png": testPNG(t, color.RGBA{255, 0, 0, 255}),
	})
	req := httptest.NewRequest(http.MethodPost, "/api/scans/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var up pipeline.UploadResult
	decodeBody(t, rec, &up)

	idsJSON, _ := json.Marshal(map[string]any{"scan_ids": up.ScanIDs})
	rec = doJSON(t, router, http.MethodPost, "/api/scans/extract", string(idsJSON))
	if rec.Code != http.StatusOK {
		t.Fatalf("extract failed: %d %s", rec.Code, rec.Body.String())
	}

	var list struct {
		Scans []struct {
			ContentHash string `json:"content_hash"`
		} `json:"scans"`
	}
	decodeBody(t, doJSON(t, router, http.MethodGet, "/api/scans/", ""), &list)
	hash := list.Scans[0].ContentHash
	hashesJSON, _ := json.Marshal(map[string]any{"image_hashes": []string{hash}})

	rec = doJSON(t, router, http.MethodPost, "/api/scans/stitch", string(hashesJSON))
	if rec.Code != http.StatusOK {
		t.Fatalf("stitch failed: %d %s", rec.Code, rec.Body.String())
	}
	var stitched pipeline.StitchOutcome
	decodeBody(t, rec, &stitched)

	ocrClient.result = &ocr.Result{Text: "2002 POKEMON EXPEDITION\nCHARIZARD\n#40", Confidence: 92}
	rec = doJSON(t, router, http.MethodPost, "/api/scans/distribute", string(hashesJSON))
	if rec.Code != http.StatusOK {
		t.Fatalf("distribute failed: %d %s", rec.Code, rec.Body.String())
	}

	cardClient.cards = []cardref.Card{
		{ID: "ex1-40", Name: "Charizard", Number: "40", SetName: "Expedition", Year: 2002},
	}
	rec = doJSON(t, router, http.MethodPost, "/api/scans/match", string(hashesJSON))
	if rec.Code != http.StatusOK {
		t.Fatalf("match failed: %d %s", rec.Code, rec.Body.String())
	}
	var matches pipeline.MatchBatchResult
	decodeBody(t, rec, &matches)
	if matches.SuccessfulMatches != 1 {
		t.Errorf("expected 1 successful match, got %+v", matches)
	}

	var report pipeline.StatusReport
	decodeBody(t, doJSON(t, router, http.MethodGet, "/api/scans/status", ""), &report)
	if report.Total != 1 || report.Matched != 1 || report.CompletionRate != 1 {
		t.Errorf("unexpected status report: %+v", report)
	}

	// The composite is downloadable and deletable.
	getRec := httptest.NewRecorder()
	router.ServeHTTP(getRec, httptest.NewRequest(http.MethodGet, "/api/stitched/"+stitched.ContentHash, nil))
	if getRec.Code != http.StatusOK || getRec.Header().Get("Content-Type") != "image/png" {
		t.Errorf("expected composite image, got %d", getRec.Code)
	}

	rec = doJSON(t, router, http.MethodDelete, "/api/stitched/"+stitched.ContentHash, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("delete stitched failed: %d", rec.Code)
	}
	var del pipeline.DeleteStitchedResult
	decodeBody(t, rec, &del)
	if !del.Deleted || del.ScansReset != 1 {
		t.Errorf("unexpected delete result: %+v", del)
	}
}

func TestSelectMatchHandlerUnknownScan(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/scans/match/select",
		`{"image_hash": "nope", "card_id": "card-1"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestSelectMatchHandlerRejectsUnknownCard(t *testing.T) {
	router, _, _ := newTestRouter(t)

	body, contentType := multipartUpload(t, map[string][]byte{
		"card.png": testPNG(t, color.RGBA{255, 0, 0, 255}),
	})
	req := httptest.NewRequest(http.MethodPost, "/api/scans/upload", body)
	req.Header.Set("Content-Type", contentType)
	upRec := httptest.NewRecorder()
	router.ServeHTTP(upRec, req)

	var list struct {
		Scans []struct {
			ContentHash string `json:"content_hash"`
		} `json:"scans"`
	}
	decodeBody(t, doJSON(t, router, http.MethodGet, "/api/scans/", ""), &list)
	if len(list.Scans) != 1 {
		t.Fatalf("expected 1 scan, got %d", len(list.Scans))
	}

	// The scan exists but the card id is known to neither the scan's
	// candidates nor the reference database.
	rec := doJSON(t, router, http.MethodPost, "/api/scans/match/select",
		`{"image_hash": "`+list.Scans[0].ContentHash+`", "card_id": "totally-made-up"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for unknown card id, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestConfirmHandlerRejectsBadStatus(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/scans/confirm",
		`{"image_hash": "h", "status": "auto_matched"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for non-confirmation status, got %d", rec.Code)
	}
}

func TestGetScanHandlerUnknownID(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/scans/no-such-id", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestDeleteStitchedHandlerIdempotent(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodDelete, "/api/stitched/never-existed", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var del pipeline.DeleteStitchedResult
	decodeBody(t, rec, &del)
	if del.Deleted {
		t.Errorf("expected no-op delete, got %+v", del)
	}
}
