package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"codearena/internal/api/middleware"
	"codearena/internal/app/service"
	"codearena/internal/common"

	"github.com/go-chi/chi/v5"
)

type POTDHandler struct {
	potdService *service.POTDService
}

func NewPOTDHandler(ps *service.POTDService) *POTDHandler {
	return &POTDHandler{potdService: ps}
}

func (h *POTDHandler) RegisterRoutes(r chi.Router) {
	r.Get("/today", h.today)

	r.Group(func(adminRouter chi.Router) {
		adminRouter.Use(middleware.Authenticator)
		adminRouter.Use(middleware.AdminOnly)
		adminRouter.Get("/schedule", h.listSchedule)
		adminRouter.Post("/schedule", h.schedule)
		adminRouter.Put("/schedule/{entryID}", h.reschedule)
		adminRouter.Post("/schedule/{entryID}/publish", h.forcePublish)
		adminRouter.Delete("/schedule/{entryID}", h.deleteEntry)
	})
}

func (h *POTDHandler) today(w http.ResponseWriter, r *http.Request) {
	entry, err := h.potdService.Today(r.Context())
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, entry)
}

func (h *POTDHandler) listSchedule(w http.ResponseWriter, r *http.Request) {
	// Default window: 30 days back to 60 days ahead.
	now := time.Now().UTC()
	from := now.AddDate(0, 0, -30)
	to := now.AddDate(0, 0, 60)
	if s := r.URL.Query().Get("from"); s != "" {
		parsed, err := time.Parse("2006-01-02", s)
		if err != nil {
			common.RespondWithError(w, http.StatusBadRequest, "Invalid 'from' date, expected YYYY-MM-DD")
			return
		}
		from = parsed
	}
	if s := r.URL.Query().Get("to"); s != "" {
		parsed, err := time.Parse("2006-01-02", s)
		if err != nil {
			common.RespondWithError(w, http.StatusBadRequest, "Invalid 'to' date, expected YYYY-MM-DD")
			return
		}
		to = parsed
	}

	entries, err := h.potdService.ListSchedule(r.Context(), from, to)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, entries)
}

func (h *POTDHandler) schedule(w http.ResponseWriter, r *http.Request) {
	var req service.SchedulePOTDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}
	entry, err := h.potdService.Schedule(r.Context(), req)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, entry)
}

func (h *POTDHandler) reschedule(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProblemID string `json:"problem_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}
	entry, err := h.potdService.Reschedule(r.Context(), chi.URLParam(r, "entryID"), req.ProblemID)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, entry)
}

func (h *POTDHandler) forcePublish(w http.ResponseWriter, r *http.Request) {
	entry, err := h.potdService.ForcePublish(r.Context(), chi.URLParam(r, "entryID"))
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, entry)
}

func (h *POTDHandler) deleteEntry(w http.ResponseWriter, r *http.Request) {
	if err := h.potdService.Delete(r.Context(), chi.URLParam(r, "entryID")); err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "Schedule entry deleted"})
}
