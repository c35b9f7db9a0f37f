package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter mounts the publishing API under /v1.
func NewRouter(h *Handler, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Route("/v1", func(r chi.Router) {
		r.Route("/datasets", func(r chi.Router) {
			r.Post("/", h.CreateDataset)
			r.Get("/", h.ListDatasets)
			r.Route("/{datasetID}", func(r chi.Router) {
				r.Get("/", h.GetDataset)
				r.Delete("/", h.DeleteDataset)
				r.Post("/revisions", h.UploadRevision)
				r.Get("/columns", h.ListColumns)
				r.Post("/classify", h.Classify)
				r.Post("/cube", h.RebuildCube)
				r.Get("/cube", h.CubeStatus)
			})
		})
		r.Get("/revisions/{revisionID}/dimensions", h.ListDimensions)
		r.Route("/dimensions/{dimensionID}", func(r chi.Router) {
			r.Post("/bind", h.Bind)
			r.Post("/reset", h.ResetBinding)
			r.Post("/lookup", h.UploadLookup)
			r.Get("/preview", h.PreviewDimension)
		})
	})

	return r
}
