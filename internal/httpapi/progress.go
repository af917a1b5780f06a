package httpapi

import (
	"bytes"
	"net/http"
	"time"

	"github.com/p-n-ai/pai-progress/internal/progress"
	"github.com/p-n-ai/pai-progress/internal/report"
)

// progressView is a record annotated for display.
type progressView struct {
	progress.Record
	ConceptName string `json:"conceptName,omitempty"`
	Band        string `json:"band"`
}

func (s *Server) handleProgressUpdate(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}

	var o progress.Outcome
	if err := progressUpdateSchema.decode(w, r, &o); err != nil {
		writeError(w, r, err)
		return
	}

	rec, err := s.updater.ApplyOutcome(r.Context(), userID, o)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleProgressList(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}

	recs, err := s.updater.Store().ListByUser(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	views := make([]progressView, 0, len(recs))
	for _, rec := range recs {
		views = append(views, progressView{
			Record:      rec,
			ConceptName: s.catalog.Name(rec.ConceptID),
			Band:        progress.Band(rec.ConfidenceScore),
		})
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleProgressExport(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}

	recs, err := s.updater.Store().ListByUser(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	// Render fully before writing so a failure can still become a 500.
	var buf bytes.Buffer
	if err := report.WriteProgress(&buf, recs, s.catalog.Name); err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition",
		`attachment; filename="progress-`+time.Now().UTC().Format("20060102")+`.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleProgressHistory(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}

	events, err := s.events.History(r.Context(), userID, r.PathValue("conceptId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleProgressFeed(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}
	s.feed.Serve(w, r, userID, s.originPatterns())
}
