// Package server exposes the dashboard session over HTTP: read endpoints for
// the rendered views and mutation endpoints that forward into the session
// coordinator. All request and response bodies are JSON except document
// uploads, which arrive as multipart form data.
package server

import (
	"encoding/json"
	"io"
	"net/http"

	"sigap-dashboard/internal/aggregate"
	apperrors "sigap-dashboard/internal/common/errors"
	"sigap-dashboard/internal/common/logger"
	"sigap-dashboard/internal/models"
	"sigap-dashboard/internal/session"
)

// maxUploadBytes caps document uploads at 20 MiB.
const maxUploadBytes = 20 << 20

type Server struct {
	session *session.Session
	log     logger.Logger
}

func New(sess *session.Session, log logger.Logger) *Server {
	return &Server{session: sess, log: log}
}

// Routes builds the API mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/dashboard", s.handleDashboard)
	mux.HandleFunc("GET /api/alerts", s.handleAlerts)
	mux.HandleFunc("GET /api/properties", s.handleListProperties)
	mux.HandleFunc("POST /api/properties", s.handleCreateProperty)
	mux.HandleFunc("GET /api/properties/{id}", s.handleSelectProperty)
	mux.HandleFunc("DELETE /api/properties/{id}", s.handleDeleteProperty)
	mux.HandleFunc("GET /api/properties/{id}/parties", s.handleContractParties)
	mux.HandleFunc("POST /api/properties/{id}/documents", s.handleUploadDocument)
	mux.HandleFunc("PUT /api/documents/{id}", s.handleReplaceDocument)
	mux.HandleFunc("DELETE /api/documents/{id}", s.handleDeleteDocument)
	mux.HandleFunc("GET /api/documents/{id}/download", s.handleDownloadDocument)
	mux.HandleFunc("POST /api/reload", s.handleReload)
	mux.HandleFunc("POST /api/seed", s.handleSeed)
	mux.HandleFunc("POST /api/logout", s.handleLogout)

	return mux
}

func filterFromQuery(r *http.Request) aggregate.Filter {
	q := r.URL.Query()
	return aggregate.Filter{
		State:  q.Get("estado"),
		Type:   q.Get("tipo"),
		Comuna: q.Get("comuna"),
	}
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Dashboard(filterFromQuery(r)))
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Alerts())
}

func (s *Server) handleListProperties(w http.ResponseWriter, r *http.Request) {
	props := filterFromQuery(r).Apply(s.session.Properties())
	writeJSON(w, http.StatusOK, props)
}

func (s *Server) handleSelectProperty(w http.ResponseWriter, r *http.Request) {
	detail, err := s.session.SelectProperty(r.Context(), r.PathValue("id"))
	if err != nil {
		// A stale cached detail still renders; surface it with the error noted.
		if detail.ID != "" {
			w.Header().Set("X-Detail-Stale", "true")
			writeJSON(w, http.StatusOK, detail)
			return
		}
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

type createRequest struct {
	Code        string   `json:"codigo"`
	AddressLine string   `json:"direccion_linea1"`
	Type        string   `json:"tipo"`
	RentValue   *float64 `json:"valor_arriendo,omitempty"`
	SaleValue   *float64 `json:"valor_venta,omitempty"`
}

func (s *Server) handleCreateProperty(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, apperrors.NewMutationFailedError("create-property", http.StatusBadRequest, "invalid JSON body"))
		return
	}

	created, err := s.session.CreateProperty(r.Context(), session.CreateInput{
		Code:        req.Code,
		AddressLine: req.AddressLine,
		Type:        req.Type,
		RentValue:   req.RentValue,
		SaleValue:   req.SaleValue,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleDeleteProperty(w http.ResponseWriter, r *http.Request) {
	if err := s.session.DeleteProperty(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleContractParties(w http.ResponseWriter, r *http.Request) {
	tenant, owner := s.session.ContractParties(r.Context(), r.PathValue("id"))
	writeJSON(w, http.StatusOK, map[string]*models.Party{
		"arrendatario": tenant,
		"propietario":  owner,
	})
}

func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	upload, err := s.uploadFromForm(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	upload.EntityID = r.PathValue("id")

	if err := s.session.UploadDocument(r.Context(), upload); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) handleReplaceDocument(w http.ResponseWriter, r *http.Request) {
	upload, err := s.uploadFromForm(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	upload.ReplacesID = r.PathValue("id")
	upload.EntityID = r.FormValue("propiedad_id")

	if err := s.session.ReplaceDocument(r.Context(), upload); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	propertyID := r.URL.Query().Get("propiedad_id")
	if err := s.session.DeleteDocument(r.Context(), r.PathValue("id"), propertyID); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDownloadDocument(w http.ResponseWriter, r *http.Request) {
	raw, err := s.session.DownloadDocument(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Load(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"properties": len(s.session.Properties())})
}

func (s *Server) handleSeed(w http.ResponseWriter, r *http.Request) {
	if err := s.session.SeedDemo(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"properties": len(s.session.Properties())})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.session.Logout(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) uploadFromForm(r *http.Request) (models.DocumentUpload, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return models.DocumentUpload{}, apperrors.NewMutationFailedError("upload-document", http.StatusBadRequest, "invalid multipart body")
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return models.DocumentUpload{}, apperrors.NewMutationFailedError("upload-document", http.StatusBadRequest, "missing file part")
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		return models.DocumentUpload{}, apperrors.NewMutationFailedError("upload-document", http.StatusBadRequest, "unreadable file part")
	}

	return models.DocumentUpload{
		Category: r.FormValue("categoria"),
		Filename: header.Filename,
		Content:  content,
		TenantID: r.FormValue("arrendatario_id"),
		OwnerID:  r.FormValue("propietario_id"),
	}, nil
}

// writeError maps the error taxonomy onto HTTP statuses: the carried backend
// status when present, otherwise by code.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	std := apperrors.Normalize(err)

	status := std.Status
	if status == 0 {
		switch std.Code {
		case apperrors.ErrCodeUnauthorized:
			status = http.StatusUnauthorized
		case apperrors.ErrCodeNotFound:
			status = http.StatusNotFound
		case apperrors.ErrCodeFetchFailed, apperrors.ErrCodeMalformedResponse, apperrors.ErrCodeMutationFailed:
			status = http.StatusBadGateway
		default:
			status = http.StatusInternalServerError
		}
	}

	s.log.Debug("request failed", map[string]interface{}{
		"code":   string(std.Code),
		"status": status,
		"detail": std.Details,
	})
	writeJSON(w, status, map[string]interface{}{
		"code":    std.Code,
		"message": std.Message,
		"detail":  std.Details,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
