package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"strings"

	"vidgrabber/internal/core/domain"
	"vidgrabber/internal/logging"
	"vidgrabber/internal/service"
)

const maxRequestBody = 64 * 1024

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

type infoResponse struct {
	Title             string `json:"title"`
	Thumbnail         string `json:"thumbnail,omitempty"`
	Uploader          string `json:"uploader,omitempty"`
	Duration          string `json:"duration,omitempty"`
	HasVideo          bool   `json:"has_video"`
	HasAudio          bool   `json:"has_audio"`
	Downloadable      bool   `json:"downloadable"`
	SuggestedFilename string `json:"suggested_filename"`
}

type downloadRequest struct {
	URL string `json:"url"`
}

// StatusFor maps an error kind to the HTTP status the request layer returns.
func StatusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindBadInput:
		return http.StatusBadRequest
	case domain.KindNotFound, domain.KindStreamsUnavailable:
		return http.StatusNotFound
	case domain.KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// ValidateReference accepts absolute http(s) URLs with a host.
func ValidateReference(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("missing url")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", errors.New("url is not parseable")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", errors.New("url must use http or https")
	}
	if u.Host == "" {
		return "", errors.New("url has no host")
	}
	return u.String(), nil
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		s.writeError(w, http.StatusNotFound, "not_found", "no such endpoint")
		return
	}
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "vidgrabber is running"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	reference, err := ValidateReference(r.URL.Query().Get("url"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, string(domain.KindBadInput), err.Error())
		return
	}

	res, err := s.pipeline.Describe(r.Context(), reference)
	if err != nil {
		failure := service.Classify(err)
		s.logger.Warn("info lookup failed",
			logging.String("reference", reference),
			logging.String("kind", string(failure.Kind)),
			logging.Error(err),
			logging.Event("info_failed"),
		)
		s.writeFailure(w, failure)
		return
	}

	ext, _ := domain.ContainerFor(res.Video, res.Audio)
	s.writeJSON(w, http.StatusOK, infoResponse{
		Title:             res.Title,
		Thumbnail:         res.Thumbnail,
		Uploader:          res.Uploader,
		Duration:          res.Duration,
		HasVideo:          res.Video != nil,
		HasAudio:          res.Audio != nil,
		Downloadable:      res.Video != nil && res.Audio != nil,
		SuggestedFilename: res.DownloadFilename(ext),
	})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	var raw string
	switch r.Method {
	case http.MethodGet:
		raw = r.URL.Query().Get("url")
	case http.MethodPost:
		var req downloadRequest
		body := http.MaxBytesReader(w, r.Body, maxRequestBody)
		if err := json.NewDecoder(body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			s.writeError(w, http.StatusBadRequest, string(domain.KindBadInput), "request body must be JSON with a url field")
			return
		}
		raw = req.URL
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	reference, err := ValidateReference(raw)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, string(domain.KindBadInput), err.Error())
		return
	}

	outcome, cleanup := s.pipeline.Run(r.Context(), reference)
	defer cleanup.Run()

	w.Header().Set("X-Request-ID", outcome.RequestID)
	if !outcome.Succeeded() {
		s.writeFailure(w, *outcome.Failure)
		return
	}
	s.deliver(w, r, outcome)
}

// deliver streams the artifact. The deferred cleanup in the caller removes
// it after the body has been written.
func (s *Server) deliver(w http.ResponseWriter, r *http.Request, outcome domain.Outcome) {
	success := outcome.Success
	f, err := os.Open(success.OutputPath)
	if err != nil {
		s.logger.Error("artifact vanished before delivery",
			logging.String(logging.FieldRequestID, outcome.RequestID),
			logging.String("path", success.OutputPath),
			logging.Error(err),
		)
		s.writeFailure(w, service.Classify(err))
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		s.writeFailure(w, service.Classify(err))
		return
	}

	w.Header().Set("Content-Type", success.ContentType)
	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": success.SuggestedFilename})
	if disposition == "" {
		disposition = "attachment"
	}
	w.Header().Set("Content-Disposition", disposition)
	http.ServeContent(w, r, success.SuggestedFilename, info.ModTime(), f)

	s.logger.Info("artifact delivered",
		logging.String(logging.FieldRequestID, outcome.RequestID),
		logging.String("filename", success.SuggestedFilename),
		logging.Int64("bytes", info.Size()),
		logging.Event("artifact_delivered"),
	)
}

func (s *Server) writeFailure(w http.ResponseWriter, failure domain.Failure) {
	s.writeError(w, StatusFor(failure.Kind), string(failure.Kind), failure.Message)
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

func (s *Server) writeError(w http.ResponseWriter, status int, kind, message string) {
	s.writeJSON(w, status, errorResponse{Error: kind, Detail: message})
}
