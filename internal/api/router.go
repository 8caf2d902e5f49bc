package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(app *App) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/ping", PingHandler)

	r.Route("/api", func(r chi.Router) {
		r.Route("/scans", func(r chi.Router) {
			r.Get("/", app.ListScansHandler)
			r.Delete("/", app.DeleteScansHandler)
			r.Get("/status", app.StatusHandler)
			r.Post("/upload", app.UploadHandler)
			r.Post("/extract", app.ExtractHandler)
			r.Post("/stitch", app.StitchHandler)
			r.Post("/ocr", app.OCRHandler)
			r.Post("/distribute", app.DistributeHandler)
			r.Post("/match", app.MatchHandler)
			r.Post("/match/select", app.SelectMatchHandler)
			r.Post("/confirm", app.ConfirmHandler)
			r.Get("/{id}", app.GetScanHandler)
		})
		r.Route("/stitched", func(r chi.Router) {
			r.Get("/{hash}", app.GetStitchedHandler)
			r.Delete("/{hash}", app.DeleteStitchedHandler)
		})
	})

	return r
}
