package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"cardvault/internal/database"
	"cardvault/internal/models"
	"cardvault/internal/ocr"
	"cardvault/internal/pipeline"
)

func PingHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("pong"))
}

// App holds the wired dependencies for the HTTP handlers.
type App struct {
	Pipeline      *pipeline.Service
	MaxUploadSize int64
	Validate      *validator.Validate
	Logger        *slog.Logger
}

func NewApp(svc *pipeline.Service, maxUploadSize int64, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	return &App{
		Pipeline:      svc,
		MaxUploadSize: maxUploadSize,
		Validate:      validator.New(),
		Logger:        logger,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (app *App) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		app.Logger.Error("failed to encode response", "error", err)
	}
}

func (app *App) writeError(w http.ResponseWriter, status int, message string) {
	app.writeJSON(w, status, errorResponse{Error: message})
}

// writeServiceError maps pipeline errors onto HTTP statuses: validation
// and batch-fatal conditions are client errors, unknown records are 404,
// everything else is a 500.
func (app *App) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pipeline.ErrEmptyBatch):
		app.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, pipeline.ErrNotStitchable), errors.Is(err, pipeline.ErrNoComposite):
		app.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, pipeline.ErrUnknownCard):
		app.writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, database.ErrNotFound):
		app.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, database.ErrInvalidTransition):
		app.writeError(w, http.StatusConflict, err.Error())
	default:
		app.Logger.Error("request failed", "error", err)
		app.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// decodeAndValidate parses a JSON request body into dst and runs struct
// validation. A false return means a response has already been written.
func (app *App) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		app.writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	if err := app.Validate.Struct(dst); err != nil {
		app.writeError(w, http.StatusBadRequest, "validation failed: "+err.Error())
		return false
	}
	return true
}

func (app *App) UploadHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, app.MaxUploadSize)
	if err := r.ParseMultipartForm(app.MaxUploadSize); err != nil {
		app.writeError(w, http.StatusBadRequest, "failed to parse upload: "+err.Error())
		return
	}

	headers := r.MultipartForm.File["images"]
	if len(headers) == 0 {
		app.writeError(w, http.StatusBadRequest, "no files in 'images' field")
		return
	}

	files := make([]pipeline.UploadFile, 0, len(headers))
	for _, header := range headers {
		f, err := header.Open()
		if err != nil {
			app.writeError(w, http.StatusBadRequest, "failed to read "+header.Filename)
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			app.writeError(w, http.StatusBadRequest, "failed to read "+header.Filename)
			return
		}
		files = append(files, pipeline.UploadFile{
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Data:        data,
		})
	}

	result, err := app.Pipeline.Upload(r.Context(), files)
	if err != nil {
		app.writeServiceError(w, err)
		return
	}
	app.writeJSON(w, http.StatusOK, result)
}

type extractRequest struct {
	ScanIDs []string `json:"scan_ids" validate:"required,min=1,dive,required"`
}

func (app *App) ExtractHandler(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if !app.decodeAndValidate(w, r, &req) {
		return
	}
	result, err := app.Pipeline.Extract(r.Context(), req.ScanIDs)
	if err != nil {
		app.writeServiceError(w, err)
		return
	}
	app.writeJSON(w, http.StatusOK, result)
}

type stitchRequest struct {
	ImageHashes []string `json:"image_hashes" validate:"required,min=1,dive,required"`
}

func (app *App) StitchHandler(w http.ResponseWriter, r *http.Request) {
	var req stitchRequest
	if !app.decodeAndValidate(w, r, &req) {
		return
	}
	result, err := app.Pipeline.Stitch(r.Context(), req.ImageHashes)
	if err != nil {
		app.writeServiceError(w, err)
		return
	}
	app.writeJSON(w, http.StatusOK, result)
}

type ocrRequest struct {
	ImageHashes  []string `json:"image_hashes" validate:"required_without=StitchedPath,dive,required"`
	StitchedPath string   `json:"stitched_path,omitempty"`
}

func (app *App) OCRHandler(w http.ResponseWriter, r *http.Request) {
	var req ocrRequest
	if !app.decodeAndValidate(w, r, &req) {
		return
	}
	result, err := app.Pipeline.RunOCR(r.Context(), req.ImageHashes, req.StitchedPath)
	if err != nil {
		app.writeServiceError(w, err)
		return
	}
	app.writeJSON(w, http.StatusOK, result)
}

type distributeRequest struct {
	ImageHashes []string    `json:"image_hashes" validate:"required,min=1,dive,required"`
	OCRResult   *ocr.Result `json:"ocr_result,omitempty"`
}

func (app *App) DistributeHandler(w http.ResponseWriter, r *http.Request) {
	var req distributeRequest
	if !app.decodeAndValidate(w, r, &req) {
		return
	}
	result, err := app.Pipeline.Distribute(r.Context(), req.ImageHashes, req.OCRResult)
	if err != nil {
		app.writeServiceError(w, err)
		return
	}
	app.writeJSON(w, http.StatusOK, result)
}

type matchRequest struct {
	ImageHashes []string `json:"image_hashes" validate:"required,min=1,dive,required"`
}

func (app *App) MatchHandler(w http.ResponseWriter, r *http.Request) {
	var req matchRequest
	if !app.decodeAndValidate(w, r, &req) {
		return
	}
	result, err := app.Pipeline.Match(r.Context(), req.ImageHashes)
	if err != nil {
		app.writeServiceError(w, err)
		return
	}
	app.writeJSON(w, http.StatusOK, result)
}

type selectMatchRequest struct {
	ImageHash string `json:"image_hash" validate:"required"`
	CardID    string `json:"card_id" validate:"required"`
}

func (app *App) SelectMatchHandler(w http.ResponseWriter, r *http.Request) {
	var req selectMatchRequest
	if !app.decodeAndValidate(w, r, &req) {
		return
	}
	result, err := app.Pipeline.SelectCardMatch(r.Context(), req.ImageHash, req.CardID)
	if err != nil {
		app.writeServiceError(w, err)
		return
	}
	app.writeJSON(w, http.StatusOK, result)
}

type confirmRequest struct {
	ImageHash string `json:"image_hash" validate:"required"`
	Status    string `json:"status" validate:"required,oneof=confirmed psa_created"`
}

func (app *App) ConfirmHandler(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if !app.decodeAndValidate(w, r, &req) {
		return
	}
	status, ok := models.ParseMatchingStatus(req.Status)
	if !ok {
		app.writeError(w, http.StatusBadRequest, "unknown matching status")
		return
	}
	result, err := app.Pipeline.Confirm(r.Context(), req.ImageHash, status)
	if err != nil {
		app.writeServiceError(w, err)
		return
	}
	app.writeJSON(w, http.StatusOK, result)
}

func (app *App) StatusHandler(w http.ResponseWriter, r *http.Request) {
	report, err := app.Pipeline.Status(r.Context())
	if err != nil {
		app.writeServiceError(w, err)
		return
	}
	app.writeJSON(w, http.StatusOK, report)
}

func (app *App) ListScansHandler(w http.ResponseWriter, r *http.Request) {
	scans, err := app.Pipeline.ListScans(r.Context())
	if err != nil {
		app.writeServiceError(w, err)
		return
	}
	app.writeJSON(w, http.StatusOK, map[string]any{"scans": scans, "total": len(scans)})
}

func (app *App) GetScanHandler(w http.ResponseWriter, r *http.Request) {
	scan, err := app.Pipeline.GetScan(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		app.writeServiceError(w, err)
		return
	}
	app.writeJSON(w, http.StatusOK, scan)
}

type deleteScansRequest struct {
	ScanIDs []string `json:"scan_ids" validate:"required,min=1,dive,required"`
}

func (app *App) DeleteScansHandler(w http.ResponseWriter, r *http.Request) {
	var req deleteScansRequest
	if !app.decodeAndValidate(w, r, &req) {
		return
	}
	deleted, err := app.Pipeline.DeleteScans(r.Context(), req.ScanIDs)
	if err != nil {
		app.writeServiceError(w, err)
		return
	}
	app.writeJSON(w, http.StatusOK, map[string]any{"deleted": deleted})
}

func (app *App) GetStitchedHandler(w http.ResponseWriter, r *http.Request) {
	_, data, err := app.Pipeline.GetStitched(r.Context(), chi.URLParam(r, "hash"))
	if err != nil {
		app.writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(data)
}

func (app *App) DeleteStitchedHandler(w http.ResponseWriter, r *http.Request) {
	result, err := app.Pipeline.DeleteStitched(r.Context(), chi.URLParam(r, "hash"))
	if err != nil {
		app.writeServiceError(w, err)
		return
	}
	app.writeJSON(w, http.StatusOK, result)
}
