package handlers

import (
	"context"
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/docstore"
	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/models"
	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/violation"
)

const maxReportBody = 32 << 20

type ViolationHandler struct {
	violations *violation.Service
}

func NewViolationHandler(v *violation.Service) *ViolationHandler {
	return &ViolationHandler{violations: v}
}

// Submit accepts a resident report as multipart/form-data with optional
// "photos" file parts.
func (h *ViolationHandler) Submit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxReportBody)
	if err := r.ParseMultipartForm(maxReportBody); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	sub := violation.Submission{
		Type:          r.FormValue("type"),
		Address:       r.FormValue("address"),
		Description:   r.FormValue("description"),
		ReporterEmail: r.FormValue("reporterEmail"),
		ReporterPhone: r.FormValue("reporterPhone"),
	}

	headers := r.MultipartForm.File["photos"]
	if len(headers) > violation.MaxPhotos {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("at most %d photos allowed", violation.MaxPhotos))
		return
	}
	files := make([]multipart.File, 0, len(headers))
	defer func() {
		for _, f := range files {
			f.Close()
		}
	}()
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, "unreadable photo")
			return
		}
		files = append(files, f)
		sub.Photos = append(sub.Photos, violation.Photo{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        f,
		})
	}

	v, err := h.violations.Submit(r.Context(), chi.URLParam(r, "slug"), sub)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (h *ViolationHandler) List(w http.ResponseWriter, r *http.Request) {
	status := models.ViolationStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		writeError(w, http.StatusBadRequest, "unknown status")
		return
	}

	list, err := h.violations.List(r.Context(), chi.URLParam(r, "slug"), status)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"violations": list, "count": len(list)})
}

// Stream pushes the full violation list as a server-sent event whenever it
// changes.
func (h *ViolationHandler) Stream(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	streamSnapshots(w, r, "violations",
		func(ctx context.Context) (*docstore.Subscription, error) {
			return h.violations.Subscribe(ctx, slug)
		},
		violation.DecodeList,
	)
}

func (h *ViolationHandler) Update(w http.ResponseWriter, r *http.Request) {
	var upd violation.Update
	if !decodeJSON(w, r, &upd) {
		return
	}
	v, err := h.violations.Update(r.Context(), chi.URLParam(r, "slug"), chi.URLParam(r, "id"), upd)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *ViolationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.violations.Delete(r.Context(), chi.URLParam(r, "slug"), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ViolationHandler) Notify(w http.ResponseWriter, r *http.Request) {
	var n violation.Notice
	if !decodeJSON(w, r, &n) {
		return
	}
	if err := h.violations.NotifyResident(r.Context(), chi.URLParam(r, "slug"), chi.URLParam(r, "id"), n); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}
