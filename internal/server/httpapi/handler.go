package httpapi

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/dmitrijs2005/gophvault/internal/server/models"
	"github.com/dmitrijs2005/gophvault/internal/server/services"
	"github.com/go-chi/chi/v5"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type secondFactorRequest struct {
	PrincipalID string `json:"principal_id"`
	Code        string `json:"code"`
}

type sessionResponse struct {
	PrincipalID string    `json:"principal_id"`
	Token       string    `json:"token,omitempty"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type pendingResponse struct {
	PrincipalID         string `json:"principal_id"`
	SecondFactorPending bool   `json:"second_factor_required"`
}

type enrollmentResponse struct {
	Secret    string `json:"secret"`
	URI       string `json:"uri"`
	QRDataURL string `json:"qr_data_url"`
}

type secondFactorStatus struct {
	Enabled bool `json:"enabled"`
}

type objectView struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	OwnerID          string            `json:"owner_id"`
	Title            string            `json:"title"`
	Description      string            `json:"description"`
	Visibility       models.Visibility `json:"visibility"`
	Size             int64             `json:"size"`
	Version          int               `json:"version"`
	PreviousVersions []string          `json:"previous_versions"`
	LatestVersion    string            `json:"latest_version,omitempty"`
	Superseded       bool              `json:"superseded"`
	DownloadCount    int64             `json:"download_count"`
	CreatedAt        time.Time         `json:"created_at"`
}

type uploadResponse struct {
	Object       objectView `json:"object"`
	IsNewVersion bool       `json:"is_new_version"`
}

type updateRequest struct {
	Name        *string            `json:"name"`
	Title       *string            `json:"title"`
	Description *string            `json:"description"`
	Visibility  *models.Visibility `json:"visibility"`
}

func toView(o *models.StoredObject) objectView {
	prev := o.PreviousVersions
	if prev == nil {
		prev = []string{}
	}
	return objectView{
		ID:               o.ID,
		Name:             o.Name,
		OwnerID:          o.OwnerID,
		Title:            o.Title,
		Description:      o.Description,
		Visibility:       o.Visibility,
		Size:             o.Size,
		Version:          o.Version,
		PreviousVersions: prev,
		LatestVersion:    o.LatestVersion,
		Superseded:       o.IsSuperseded(),
		DownloadCount:    o.DownloadCount,
		CreatedAt:        o.CreatedAt,
	}
}

func toViews(list []*models.StoredObject) []objectView {
	out := make([]objectView, 0, len(list))
	for _, o := range list {
		out = append(out, toView(o))
	}
	return out
}

func (s *Server) writeSession(w http.ResponseWriter, code int, a *services.Authenticated) {
	setTokenCookie(w, a.Assertion)
	writeJSON(w, code, sessionResponse{PrincipalID: a.PrincipalID, Token: a.Assertion.Token, ExpiresAt: a.Assertion.ExpiresAt})
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	a, err := s.sessions.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.logger.Info(r.Context(), "Registered", "principal_id", a.PrincipalID)
	s.writeSession(w, http.StatusCreated, a)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.sessions.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	switch v := res.(type) {
	case services.Authenticated:
		s.writeSession(w, http.StatusOK, &v)
	case services.PendingSecondFactor:
		writeJSON(w, http.StatusOK, pendingResponse{PrincipalID: v.PrincipalID, SecondFactorPending: true})
	default:
		s.writeError(w, r, fmt.Errorf("%w: unexpected login result %T", common.ErrorInternal, res))
	}
}

func (s *Server) verifySecondFactor(w http.ResponseWriter, r *http.Request) {
	var req secondFactorRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	a, err := s.sessions.VerifySecondFactor(r.Context(), req.PrincipalID, req.Code)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeSession(w, http.StatusOK, a)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	a := s.sessions.Logout()
	setTokenCookie(w, a)
	writeJSON(w, http.StatusOK, sessionResponse{ExpiresAt: a.ExpiresAt})
}

func (s *Server) verify(w http.ResponseWriter, r *http.Request) {
	v := sessionFromContext(r.Context())
	writeJSON(w, http.StatusOK, sessionResponse{PrincipalID: v.PrincipalID, ExpiresAt: v.ExpiresAt})
}

func (s *Server) enableSecondFactor(w http.ResponseWriter, r *http.Request) {
	e, err := s.sessions.EnableSecondFactor(r.Context(), principalID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, enrollmentResponse{Secret: e.Secret, URI: e.URI, QRDataURL: e.QRDataURL})
}

func (s *Server) disableSecondFactor(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.DisableSecondFactor(r.Context(), principalID(r)); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, secondFactorStatus{Enabled: false})
}

func (s *Server) secondFactorStatus(w http.ResponseWriter, r *http.Request) {
	enabled, err := s.sessions.HasSecondFactor(r.Context(), principalID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, secondFactorStatus{Enabled: enabled})
}

// formValue returns nil for missing or empty fields so the service keeps the
// inherited value.
func formValue(r *http.Request, key string) *string {
	v := r.FormValue(key)
	if v == "" {
		return nil
	}
	return &v
}

// multipartOverhead is the body allowance on top of the file limit for
// boundaries, part headers and the metadata fields.
const multipartOverhead = 1 << 20

func writeTooLarge(w http.ResponseWriter) {
	writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "upload too large"})
}

func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadSize+multipartOverhead)
	if err := r.ParseMultipartForm(s.maxUploadSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeTooLarge(w)
			return
		}
		s.writeError(w, r, fmt.Errorf("%w: %v", common.ErrorValidation, err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: no file uploaded", common.ErrorValidation))
		return
	}
	defer file.Close()

	if header.Size > s.maxUploadSize {
		writeTooLarge(w)
		return
	}
	payload, err := io.ReadAll(io.LimitReader(file, s.maxUploadSize+1))
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: read upload: %v", common.ErrorValidation, err))
		return
	}
	if int64(len(payload)) > s.maxUploadSize {
		writeTooLarge(w)
		return
	}

	req := services.PutRequest{
		OwnerID:     principalID(r),
		Name:        header.Filename,
		Payload:     payload,
		Title:       formValue(r, "title"),
		Description: formValue(r, "description"),
	}
	if v := formValue(r, "visibility"); v != nil {
		vis, err := models.ParseVisibility(*v)
		if err != nil {
			s.writeError(w, r, fmt.Errorf("%w: %v", common.ErrorValidation, err))
			return
		}
		req.Visibility = &vis
	}

	o, err := s.objects.Put(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, uploadResponse{Object: toView(o), IsNewVersion: o.Version > 1})
}

func (s *Server) listPublic(w http.ResponseWriter, r *http.Request) {
	list, err := s.objects.ListPublic(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toViews(list))
}

func (s *Server) listOwned(w http.ResponseWriter, r *http.Request) {
	list, err := s.objects.ListOwned(r.Context(), principalID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toViews(list))
}

func (s *Server) listDownloaded(w http.ResponseWriter, r *http.Request) {
	list, err := s.objects.ListDownloaded(r.Context(), principalID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toViews(list))
}

func (s *Server) download(w http.ResponseWriter, r *http.Request) {
	o, payload, err := s.objects.Get(r.Context(), chi.URLParam(r, "id"), principalID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "application/octet-stream")
	h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": o.Name}))
	h.Set("Content-Length", strconv.Itoa(len(payload)))
	h.Set("X-Object-Version", strconv.Itoa(o.Version))
	h.Set("X-Download-Count", strconv.FormatInt(o.DownloadCount, 10))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

func (s *Server) update(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	o, err := s.objects.Update(r.Context(), chi.URLParam(r, "id"), principalID(r), models.ObjectPatch{
		Name:        req.Name,
		Title:       req.Title,
		Description: req.Description,
		Visibility:  req.Visibility,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toView(o))
}

func (s *Server) remove(w http.ResponseWriter, r *http.Request) {
	if err := s.objects.Delete(r.Context(), chi.URLParam(r, "id"), principalID(r)); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
