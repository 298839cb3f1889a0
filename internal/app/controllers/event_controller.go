package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/faeln1/go-checkin-api/internal/app/repositories"
	"github.com/faeln1/go-checkin-api/internal/app/services"
)

// EventController serves the /api/Event routes.
type EventController struct {
	attendance services.AttendanceService
	badges     services.BadgeService
	reports    services.ReportService
}

func NewEventController(a services.AttendanceService, b services.BadgeService, r services.ReportService) *EventController {
	return &EventController{attendance: a, badges: b, reports: r}
}

func (c *EventController) ListCommunities(w http.ResponseWriter, r *http.Request) {
	items, err := c.attendance.ListCommunities(r.Context())
	if err != nil {
		writeError(w, mapEventStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (c *EventController) ListPeople(w http.ResponseWriter, r *http.Request, communityID string) {
	id, err := parseID("communityId", communityID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	people, err := c.attendance.ListPeople(r.Context(), id)
	if err != nil {
		writeError(w, mapEventStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, people)
}

func (c *EventController) Summary(w http.ResponseWriter, r *http.Request, communityID string) {
	id, err := parseID("communityId", communityID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	summary, err := c.attendance.Summary(r.Context(), id)
	if err != nil {
		writeError(w, mapEventStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (c *EventController) CheckIn(w http.ResponseWriter, r *http.Request, personID string) {
	id, err := parseID("personId", personID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	person, err := c.attendance.CheckIn(r.Context(), id)
	if err != nil {
		writeError(w, mapEventStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, person)
}

func (c *EventController) CheckOut(w http.ResponseWriter, r *http.Request, personID string) {
	id, err := parseID("personId", personID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	person, err := c.attendance.CheckOut(r.Context(), id)
	if err != nil {
		writeError(w, mapEventStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, person)
}

// Badge writes the QR badge PNG. ?size= overrides the pixel size.
func (c *EventController) Badge(w http.ResponseWriter, r *http.Request, personID string) {
	id, err := parseID("personId", personID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))
	png, err := c.badges.PNG(r.Context(), id, size)
	if err != nil {
		writeError(w, mapEventStatus(err), err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

func (c *EventController) ArchiveReport(w http.ResponseWriter, r *http.Request, communityID string) {
	id, err := parseID("communityId", communityID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	res, err := c.reports.Archive(r.Context(), id)
	if err != nil {
		writeError(w, mapEventStatus(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (c *EventController) ListReports(w http.ResponseWriter, r *http.Request, communityID string) {
	id, err := parseID("communityId", communityID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	objects, err := c.reports.List(r.Context(), id)
	if err != nil {
		writeError(w, mapEventStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, objects)
}

func mapEventStatus(err error) int {
	switch {
	case errors.Is(err, repositories.ErrPersonNotFound), errors.Is(err, repositories.ErrCommunityNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidParam):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrStorageDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
