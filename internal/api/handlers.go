package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path"

	"github.com/go-chi/chi/v5"

	"audiodrop/internal/job"
	"audiodrop/internal/logging"
	"audiodrop/internal/storage"
)

const maxRequestBytes = 64 * 1024

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var req EnqueueRequest
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes))
	if err := decoder.Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "request body must be a JSON object")
		return
	}

	j := job.Job{SourceURL: req.URL, Title: req.Title, Destination: req.Email}
	if err := j.Validate(); err != nil {
		var verr *job.ValidationError
		if errors.As(err, &verr) {
			s.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request", Fields: verr.Fields})
			return
		}
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	body, err := job.Encode(j)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "encode job")
		return
	}
	logger := logging.WithContext(r.Context(), s.logger)
	id, err := s.queue.Send(r.Context(), body)
	if err != nil {
		logging.ErrorWithContext(logger, "enqueue failed", "enqueue_failed", logging.Error(err))
		s.writeError(w, http.StatusServiceUnavailable, "queue unavailable")
		return
	}
	logger.Info("job enqueued",
		logging.String(logging.FieldEventType, "job_enqueued"),
		logging.String(logging.FieldJobID, id),
		logging.String(logging.FieldArtifactKey, j.Key()),
	)
	s.writeJSON(w, http.StatusAccepted, EnqueueResponse{Body: "download started", ID: id, Key: j.Key()})
}

func (s *Server) handleRead(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if !job.ValidKey(key) {
		s.writeError(w, http.StatusBadRequest, "invalid key")
		return
	}
	logger := logging.WithContext(r.Context(), s.logger)

	exists, err := s.store.Exists(r.Context(), key)
	if err != nil {
		logging.ErrorWithContext(logger, "read link lookup failed", "read_link_failed",
			logging.String(logging.FieldArtifactKey, key), logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to generate download URL")
		return
	}
	if !exists {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}
	link, err := s.store.SignedLink(r.Context(), key, s.opts.ReadLinkTTL)
	if err != nil {
		logging.ErrorWithContext(logger, "read link signing failed", "read_link_failed",
			logging.String(logging.FieldArtifactKey, key), logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to generate download URL")
		return
	}
	s.writeJSON(w, http.StatusOK, ReadResponse{Success: true, DownloadURL: link})
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	query := r.URL.Query()
	if err := s.files.Verify(key, query.Get("expires"), query.Get("signature")); err != nil {
		if errors.Is(err, storage.ErrLinkExpired) {
			s.writeError(w, http.StatusGone, "link expired")
			return
		}
		s.writeError(w, http.StatusForbidden, "invalid link")
		return
	}

	info, err := s.files.Stat(r.Context(), key)
	if err != nil {
		s.fileError(w, r, key, err)
		return
	}
	f, err := s.files.Open(key)
	if err != nil {
		s.fileError(w, r, key, err)
		return
	}
	defer f.Close()

	if info.ContentType != "" {
		w.Header().Set("Content-Type", info.ContentType)
	}
	w.Header().Set("Content-Disposition", `attachment; filename="`+path.Base(key)+`"`)
	http.ServeContent(w, r, key, info.UpdatedAt, f)
}

func (s *Server) fileError(w http.ResponseWriter, r *http.Request, key string, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}
	logging.ErrorWithContext(logging.WithContext(r.Context(), s.logger), "serving artifact failed", "file_serve_failed",
		logging.String(logging.FieldArtifactKey, key), logging.Error(err))
	s.writeError(w, http.StatusInternalServerError, "failed to read artifact")
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, ErrorResponse{Error: message})
}
