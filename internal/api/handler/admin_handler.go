package handler

import (
	"io"
	"net/http"
	"strings"

	"codearena/internal/api/middleware"
	"codearena/internal/app/service"
	"codearena/internal/common"

	"github.com/go-chi/chi/v5"
)

// maxCSVUploadBytes caps problem import files at 10 MiB.
const maxCSVUploadBytes = 10 << 20

type AdminHandler struct {
	adminService *service.AdminService
}

func NewAdminHandler(as *service.AdminService) *AdminHandler {
	return &AdminHandler{adminService: as}
}

func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Use(middleware.Authenticator)
	r.Use(middleware.AdminOnly)
	r.Get("/stats", h.dashboardStats)
	r.Post("/problems/import/preview", h.previewCSV)
	r.Post("/problems/import", h.uploadCSV)
}

func (h *AdminHandler) dashboardStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.adminService.DashboardStats(r.Context())
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, stats)
}

// csvBody accepts either a multipart upload under the "file" field or a raw
// text/csv request body.
func csvBody(w http.ResponseWriter, r *http.Request) (io.ReadCloser, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxCSVUploadBytes)
	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxCSVUploadBytes); err != nil {
			return nil, err
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			return nil, err
		}
		return file, nil
	}
	return r.Body, nil
}

func (h *AdminHandler) previewCSV(w http.ResponseWriter, r *http.Request) {
	body, err := csvBody(w, r)
	if err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Missing CSV file: "+err.Error())
		return
	}
	defer body.Close()

	preview, err := h.adminService.ParseCSV(body)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, preview)
}

func (h *AdminHandler) uploadCSV(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}

	body, err := csvBody(w, r)
	if err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Missing CSV file: "+err.Error())
		return
	}
	defer body.Close()

	result, err := h.adminService.UploadCSV(r.Context(), userID, body)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, result)
}
