package api

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"sxbin-backend/internal/models"
	"sxbin-backend/internal/service"
)

const multipartMemory = 32 << 20

type FileHandler struct {
	files     *service.FileService
	baseURL   string
	maxUpload int64
	logger    *zap.Logger
}

func NewFileHandler(files *service.FileService, baseURL string, maxUpload int64, logger *zap.Logger) *FileHandler {
	return &FileHandler{
		files:     files,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		maxUpload: maxUpload,
		logger:    logger.Named("files"),
	}
}

func (h *FileHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read file")
		return
	}

	in := service.UploadInput{
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
		Password:    r.FormValue("password"),
	}
	if v := r.FormValue("expiresIn"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil || days <= 0 {
			handleError(w, r, h.logger, service.ErrInvalidExpiry)
			return
		}
		in.ExpiresInDays = days
	}

	p, authenticated := PrincipalFrom(r.Context())
	if authenticated {
		in.UserID = &p.UserID
	}

	rec, err := h.files.Upload(r.Context(), in)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	shortURL := requestBaseURL(r, h.baseURL) + "/" + rec.ShortID
	if authenticated && p.ViaKey {
		writeJSON(w, http.StatusOK, models.ShortURLResponse{URL: shortURL})
		return
	}

	writeJSON(w, http.StatusOK, models.UploadResponse{
		Success:           true,
		FileID:            rec.ID,
		ShortID:           rec.ShortID,
		ShortURL:          shortURL,
		URL:               rec.PublicURL,
		ExpiresAt:         rec.ExpiresAt,
		Filename:          rec.FileName,
		FileSize:          rec.FileSize,
		PasswordProtected: rec.IsProtected(),
		IsAuthenticated:   authenticated,
	})
}

func (h *FileHandler) Info(w http.ResponseWriter, r *http.Request) {
	rec, err := h.files.Info(r.Context(), chi.URLParam(r, "shortId"), r.URL.Query().Get("password"))
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rec.Info())
}

// Raw serves the file inline with its stored content type.
func (h *FileHandler) Raw(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "inline")
}

func (h *FileHandler) Download(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "attachment")
}

func (h *FileHandler) serve(w http.ResponseWriter, r *http.Request, disposition string) {
	rec, obj, err := h.files.Open(r.Context(), chi.URLParam(r, "shortId"), r.URL.Query().Get("password"))
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	contentType := obj.ContentType
	if contentType == "" {
		contentType = rec.ContentType
	}
	writeFile(w, disposition, rec.FileName, contentType, obj.Data)
}

func (h *FileHandler) Contents(w http.ResponseWriter, r *http.Request) {
	c, err := h.files.Contents(r.Context(), chi.URLParam(r, "shortId"), r.URL.Query().Get("password"))
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, models.ContentsResponse{
		FileName:    c.File.FileName,
		ContentType: c.File.ContentType,
		Contents:    c.Entries,
		Tree:        c.Tree,
	})
}

func (h *FileHandler) Extract(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	out, err := h.files.Extract(r.Context(), chi.URLParam(r, "shortId"), q.Get("password"), q.Get("path"))
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	disposition := "inline"
	if q.Get("download") == "true" {
		disposition = "attachment"
	}
	writeFile(w, disposition, out.Name, out.ContentType, out.Data)
}

func (h *FileHandler) SetPassword(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())

	var req models.PasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Password == nil {
		writeError(w, http.StatusBadRequest, "Password field is required")
		return
	}

	rec, err := h.files.SetPassword(r.Context(), chi.URLParam(r, "shortId"), p.UserID, *req.Password)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, models.PasswordResponse{Success: true, PasswordProtected: rec.IsProtected()})
}

func (h *FileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())

	if err := h.files.Delete(r.Context(), chi.URLParam(r, "shortId"), p.UserID); err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *FileHandler) UserFiles(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())

	files, err := h.files.ListForUser(r.Context(), p.UserID)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, models.UserFilesResponse{Files: files})
}

func writeFile(w http.ResponseWriter, disposition, name, contentType string, data []byte) {
	h := w.Header()
	h.Set("Content-Type", contentType)
	h.Set("Content-Disposition", mime.FormatMediaType(disposition, map[string]string{"filename": name}))
	h.Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// requestBaseURL prefers the configured base URL, then the Origin header,
// then the scheme and host the request arrived on.
func requestBaseURL(r *http.Request, configured string) string {
	if configured != "" {
		return configured
	}
	if origin := r.Header.Get("Origin"); origin != "" {
		if u, err := url.Parse(origin); err == nil && u.Scheme != "" && u.Host != "" {
			return u.Scheme + "://" + u.Host
		}
	}

	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}
