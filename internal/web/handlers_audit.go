package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/JonMunkholm/nexusaudit/internal/audit"
	"github.com/JonMunkholm/nexusaudit/internal/importer"
	"github.com/JonMunkholm/nexusaudit/internal/logging"
)

// ErrReportNotFound is returned for unknown or expired report IDs.
var ErrReportNotFound = errors.New("report not found")

// auditInput reads fiscal files and bank statements from the request.
func (s *Server) auditInput(w http.ResponseWriter, r *http.Request) (importer.Input, error) {
	if err := s.parseForm(w, r); err != nil {
		return importer.Input{}, err
	}
	files, err := formFiles(r.MultipartForm, fieldFiles)
	if err != nil {
		return importer.Input{}, err
	}
	bank, err := formFiles(r.MultipartForm, fieldBank)
	if err != nil {
		return importer.Input{}, err
	}
	if len(files) == 0 {
		return importer.Input{}, errNoFile
	}
	return importer.Input{Files: files, Bank: bank}, nil
}

// handleAudit runs the whole pipeline within the request and returns the report.
func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	in, err := s.auditInput(w, r)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	runID := uuid.NewString()
	release, err := s.limiter.Acquire(r.Context(), runID)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	defer release()

	ctx, cancel := context.WithTimeout(logging.WithRunID(r.Context(), runID), s.runTimeout())
	defer cancel()

	report := s.pipeline.Run(ctx, in, nil)
	s.reports.Set(report.ID, report, cache.DefaultExpiration)
	writeJSON(w, r, http.StatusOK, report)
}

// handleStartRun starts the pipeline in the background and returns its run ID.
func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	in, err := s.auditInput(w, r)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	runID := uuid.NewString()
	release, err := s.limiter.Acquire(r.Context(), runID)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	run := s.runs.start(runID, len(in.Files)+len(in.Bank))
	logger := logging.FromContext(r.Context()).With("run_id", runID)
	ctx, cancel := context.WithTimeout(logging.WithRunID(context.Background(), runID), s.runTimeout())

	go func() {
		defer release()
		defer cancel()
		defer s.runs.forget(runID, s.cfg.Cache.ReportTTL)
		defer func() {
			if p := recover(); p != nil {
				logger.Error("panic in audit run", "panic", p)
				run.finish(nil, fmt.Errorf("panic while importing: %v", p))
			}
		}()

		report := s.pipeline.Run(ctx, in, func(completed, total int) {
			run.update(func(p *RunProgress) {
				p.Completed, p.Total = completed, total
			})
		})
		s.reports.Set(report.ID, report, cache.DefaultExpiration)
		run.finish(report, nil)
		logger.Info("audit run stored", "report_id", report.ID)
	}()

	writeJSON(w, r, http.StatusAccepted, map[string]string{"run_id": runID})
}

// handleRunProgress streams run progress as Server-Sent Events. A
// lastEventId query parameter (the last seen percentage) skips events the
// client already has after a reconnect.
func (s *Server) handleRunProgress(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	ch, err := s.runs.subscribe(runID)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, r, errors.New("streaming not supported"), http.StatusInternalServerError)
		return
	}

	last := -1
	if v := r.URL.Query().Get("lastEventId"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			last = n
		}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	for {
		select {
		case p, ok := <-ch:
			if !ok {
				run, err := s.runs.get(runID)
				final := RunProgress{RunID: runID, Phase: PhaseComplete}
				if err == nil {
					final = run.snapshot()
				}
				data, _ := json.Marshal(final)
				fmt.Fprintf(w, "event: complete\ndata: %s\n\n", data)
				flusher.Flush()
				return
			}
			pct := p.Percent()
			if pct <= last && p.Phase == PhaseRunning {
				continue
			}
			last = pct
			data, _ := json.Marshal(p)
			fmt.Fprintf(w, "id: %d\nevent: progress\ndata: %s\n\n", pct, data)
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

// handleRunResult returns the report of a finished run, 202 with the current
// progress while it is running.
func (s *Server) handleRunResult(w http.ResponseWriter, r *http.Request) {
	run, err := s.runs.get(chi.URLParam(r, "runID"))
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	report, progress, done := run.result()
	switch {
	case !done:
		writeJSON(w, r, http.StatusAccepted, progress)
	case report == nil:
		respondError(w, r, errors.New(progress.Error), http.StatusInternalServerError)
	default:
		writeJSON(w, r, http.StatusOK, report)
	}
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "reportID")
	v, ok := s.reports.Get(id)
	if !ok {
		respondError(w, r, fmt.Errorf("%w: %s", ErrReportNotFound, id), http.StatusNotFound)
		return
	}
	writeJSON(w, r, http.StatusOK, v.(*audit.Report))
}
