// Package api exposes the publishing workflow over HTTP: dataset and
// revision management, column classification, dimension binding, previews,
// and cube rebuilds. Handlers stay thin; the services own the semantics.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"statcube/internal/app"
	"statcube/internal/domain"
	"statcube/internal/service/cube"
)

// maxUploadBytes caps fact-table and lookup uploads.
const maxUploadBytes = 512 << 20

type Handler struct {
	services  app.Services
	repos     app.Repositories
	blobs     domain.BlobStore
	assembler *cube.Assembler
	logger    *slog.Logger
}

func NewHandler(a *app.App, logger *slog.Logger) *Handler {
	return &Handler{
		services:  a.Services,
		repos:     a.Repos,
		blobs:     a.Blobs,
		assembler: a.Assembler,
		logger:    logger.With("component", "api"),
	}
}

func (h *Handler) respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		if err := json.NewEncoder(w).Encode(body); err != nil {
			h.logger.Error("encode response", "error", err)
		}
	}
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	status := httpStatusFromDomainError(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "error", err)
	}
	h.respond(w, status, errorBodyFrom(err))
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return domain.ErrValidation("invalid request body: %v", err)
	}
	return nil
}

// === Datasets ===

type createDatasetRequest struct {
	Title string `json:"title"`
}

func (h *Handler) CreateDataset(w http.ResponseWriter, r *http.Request) {
	var req createDatasetRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, err)
		return
	}
	if req.Title == "" {
		h.respondError(w, domain.ErrValidation("title is required"))
		return
	}
	ds, err := h.repos.Datasets.Create(r.Context(), &domain.Dataset{Title: req.Title})
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respond(w, http.StatusCreated, datasetJSON(ds))
}

func (h *Handler) GetDataset(w http.ResponseWriter, r *http.Request) {
	ds, err := h.repos.Datasets.GetByID(r.Context(), chi.URLParam(r, "datasetID"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respond(w, http.StatusOK, datasetJSON(ds))
}

func (h *Handler) ListDatasets(w http.ResponseWriter, r *http.Request) {
	page := domain.PageRequest{}
	if v := r.URL.Query().Get("max_results"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			page.MaxResults = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			page.Offset = n
		}
	}
	datasets, total, err := h.repos.Datasets.List(r.Context(), page)
	if err != nil {
		h.respondError(w, err)
		return
	}
	items := make([]any, len(datasets))
	for i := range datasets {
		items[i] = datasetJSON(&datasets[i])
	}
	h.respond(w, http.StatusOK, map[string]any{"items": items, "total": total})
}

// DeleteDataset drops the dataset's cube tables before removing its rows.
// A dataset that never assembled a cube has nothing to drop.
func (h *Handler) DeleteDataset(w http.ResponseWriter, r *http.Request) {
	datasetID := chi.URLParam(r, "datasetID")
	var notFound *domain.NotFoundError
	if err := h.assembler.Drop(r.Context(), datasetID); err != nil && !errors.As(err, &notFound) {
		h.respondError(w, err)
		return
	}
	if err := h.repos.Datasets.Delete(r.Context(), datasetID); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func datasetJSON(ds *domain.Dataset) map[string]any {
	out := map[string]any{
		"id":         ds.ID,
		"title":      ds.Title,
		"created_at": ds.CreatedAt,
		"updated_at": ds.UpdatedAt,
	}
	if ds.StartDate != nil {
		out["start_date"] = ds.StartDate
	}
	if ds.EndDate != nil {
		out["end_date"] = ds.EndDate
	}
	return out
}

// === Revisions and fact-table upload ===

// UploadRevision stores the request body as the next fact-table revision
// and snapshots its columns.
func (h *Handler) UploadRevision(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	datasetID := chi.URLParam(r, "datasetID")
	filename := r.URL.Query().Get("filename")
	if filename == "" {
		h.respondError(w, &domain.MissingParameterError{Parameter: "filename"})
		return
	}
	fileType, err := parseFileType(r.URL.Query().Get("file_type"))
	if err != nil {
		h.respondError(w, err)
		return
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes))
	if err != nil {
		h.respondError(w, domain.ErrValidation("read upload: %v", err))
		return
	}
	if len(data) == 0 {
		h.respondError(w, domain.ErrValidation("empty upload"))
		return
	}

	if _, err := h.repos.Datasets.GetByID(ctx, datasetID); err != nil {
		h.respondError(w, err)
		return
	}
	if err := h.blobs.SaveBuffer(ctx, datasetID, filename, data); err != nil {
		h.respondError(w, err)
		return
	}

	index := 1
	if latest, err := h.repos.Datasets.LatestRevision(ctx, datasetID); err == nil {
		index = latest.RevisionIndex + 1
	}
	rev, err := h.repos.Datasets.CreateRevision(ctx, &domain.Revision{
		DatasetID:         datasetID,
		RevisionIndex:     index,
		FactTableFilename: filename,
		FileType:          fileType,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	columns, err := h.services.Classify.DetectColumns(ctx, rev.ID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respond(w, http.StatusCreated, map[string]any{
		"revision": revisionJSON(rev),
		"columns":  columnsJSON(columns),
	})
}

func revisionJSON(rev *domain.Revision) map[string]any {
	return map[string]any{
		"id":                  rev.ID,
		"dataset_id":          rev.DatasetID,
		"revision_index":      rev.RevisionIndex,
		"fact_table_filename": rev.FactTableFilename,
		"file_type":           rev.FileType,
		"created_at":          rev.CreatedAt,
	}
}

func parseFileType(s string) (domain.FileType, error) {
	switch domain.FileType(s) {
	case domain.FileTypeCSV, "":
		return domain.FileTypeCSV, nil
	case domain.FileTypeParquet:
		return domain.FileTypeParquet, nil
	default:
		return "", domain.ErrValidation("unsupported file_type %q", s)
	}
}

// === Columns and classification ===

func (h *Handler) ListColumns(w http.ResponseWriter, r *http.Request) {
	columns, err := h.repos.FactColumns.ListForDataset(r.Context(), chi.URLParam(r, "datasetID"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respond(w, http.StatusOK, map[string]any{"columns": columnsJSON(columns)})
}

func columnsJSON(columns []domain.FactColumn) []map[string]any {
	out := make([]map[string]any, len(columns))
	for i, c := range columns {
		out[i] = map[string]any{
			"id":                c.ID,
			"name":              c.Name,
			"ordinal_index":     c.OrdinalIndex,
			"inferred_datatype": c.InferredDatatype,
			"role":              c.Role,
			"excluded":          c.Excluded,
		}
	}
	return out
}

type classifyRequest struct {
	Assignments []struct {
		Column string `json:"column"`
		Role   string `json:"role"`
	} `json:"assignments"`
}

func (h *Handler) Classify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, err)
		return
	}
	assignments := make([]domain.ColumnAssignment, len(req.Assignments))
	for i, a := range req.Assignments {
		assignments[i] = domain.ColumnAssignment{
			ColumnName: a.Column,
			Role:       domain.ColumnRole(a.Role),
		}
	}
	part, err := h.services.Classify.Classify(r.Context(), chi.URLParam(r, "datasetID"), assignments)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respond(w, http.StatusOK, partitionJSON(part))
}

func partitionJSON(part *domain.SourcePartition) map[string]any {
	name := func(c *domain.FactColumn) any {
		if c == nil {
			return nil
		}
		return c.Name
	}
	dims := make([]string, len(part.Dimensions))
	for i, d := range part.Dimensions {
		dims[i] = d.Name
	}
	ignored := make([]string, len(part.Ignored))
	for i, c := range part.Ignored {
		ignored[i] = c.Name
	}
	return map[string]any{
		"data_values": name(part.DataValues),
		"measure":     name(part.Measure),
		"note_codes":  name(part.NoteCodes),
		"dimensions":  dims,
		"ignored":     ignored,
	}
}

// === Dimensions and binding ===

func (h *Handler) ListDimensions(w http.ResponseWriter, r *http.Request) {
	dims, err := h.repos.Dimensions.ListForRevision(r.Context(), chi.URLParam(r, "revisionID"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]map[string]any, len(dims))
	for i := range dims {
		j, err := dimensionJSON(&dims[i])
		if err != nil {
			h.respondError(w, err)
			return
		}
		out[i] = j
	}
	h.respond(w, http.StatusOK, map[string]any{"dimensions": out})
}

// Bind reads the extractor envelope from the body and applies it.
func (h *Handler) Bind(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		h.respondError(w, domain.ErrValidation("read body: %v", err))
		return
	}
	ext, err := domain.UnmarshalExtractor(body)
	if err != nil {
		h.respondError(w, domain.ErrValidation("%v", err))
		return
	}
	dim, err := h.services.Binder.Bind(r.Context(), chi.URLParam(r, "dimensionID"), ext)
	if err != nil {
		h.respondError(w, err)
		return
	}
	j, err := dimensionJSON(dim)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respond(w, http.StatusOK, j)
}

func (h *Handler) ResetBinding(w http.ResponseWriter, r *http.Request) {
	dim, err := h.services.Binder.Reset(r.Context(), chi.URLParam(r, "dimensionID"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	j, err := dimensionJSON(dim)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respond(w, http.StatusOK, j)
}

func (h *Handler) UploadLookup(w http.ResponseWriter, r *http.Request) {
	filename := r.URL.Query().Get("filename")
	if filename == "" {
		h.respondError(w, &domain.MissingParameterError{Parameter: "filename"})
		return
	}
	fileType, err := parseFileType(r.URL.Query().Get("file_type"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes))
	if err != nil {
		h.respondError(w, domain.ErrValidation("read upload: %v", err))
		return
	}
	lt, err := h.services.Binder.UploadLookupTable(r.Context(), chi.URLParam(r, "dimensionID"), filename, fileType, data)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respond(w, http.StatusCreated, map[string]any{
		"id":           lt.ID,
		"dimension_id": lt.DimensionID,
		"filename":     lt.Filename,
		"file_type":    lt.FileType,
	})
}

func (h *Handler) PreviewDimension(w http.ResponseWriter, r *http.Request) {
	res, err := h.services.Preview.Preview(r.Context(), chi.URLParam(r, "dimensionID"), r.URL.Query().Get("lang"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respond(w, http.StatusOK, res)
}

func dimensionJSON(dim *domain.Dimension) (map[string]any, error) {
	out := map[string]any{
		"id":                dim.ID,
		"dataset_id":        dim.DatasetID,
		"revision_id":       dim.RevisionID,
		"fact_table_column": dim.FactTableColumn,
		"type":              dim.Type,
	}
	if dim.JoinColumn != "" {
		out["join_column"] = dim.JoinColumn
	}
	if dim.LookupTableID != "" {
		out["lookup_table_id"] = dim.LookupTableID
	}
	if dim.Extractor != nil {
		raw, err := domain.MarshalExtractor(dim.Extractor)
		if err != nil {
			return nil, err
		}
		out["extractor"] = json.RawMessage(raw)
	}
	return out, nil
}

// === Cube ===

// RebuildCube kicks off an asynchronous rebuild and reports its handle.
func (h *Handler) RebuildCube(w http.ResponseWriter, r *http.Request) {
	datasetID := chi.URLParam(r, "datasetID")
	if _, err := h.repos.Datasets.GetByID(r.Context(), datasetID); err != nil {
		h.respondError(w, err)
		return
	}
	handle := h.services.Cubes.Rebuild(r.Context(), datasetID)
	status, _ := handle.Status()
	h.respond(w, http.StatusAccepted, map[string]any{
		"dataset_id": datasetID,
		"status":     status,
		"started_at": handle.StartedAt,
	})
}

func (h *Handler) CubeStatus(w http.ResponseWriter, r *http.Request) {
	datasetID := chi.URLParam(r, "datasetID")
	if _, err := h.repos.Datasets.GetByID(r.Context(), datasetID); err != nil {
		h.respondError(w, err)
		return
	}
	h.respond(w, http.StatusOK, map[string]any{
		"dataset_id": datasetID,
		"running":    h.services.Cubes.Running(datasetID),
	})
}
