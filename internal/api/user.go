package api

import (
	"mime"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"sxbin-backend/internal/models"
	"sxbin-backend/internal/service"
)

const shareXVersion = "15.0.0"

type UserHandler struct {
	users   *service.UserService
	baseURL string
	logger  *zap.Logger
}

func NewUserHandler(users *service.UserService, baseURL string, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		users:   users,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger.Named("user"),
	}
}

func (h *UserHandler) GetAPIKey(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())

	key, err := h.users.APIKey(r.Context(), p.UserID)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, models.APIKeyResponse{APIKey: key})
}

func (h *UserHandler) RotateAPIKey(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())

	key, err := h.users.RotateAPIKey(r.Context(), p.UserID)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, models.APIKeyResponse{APIKey: key})
}

// ShareXConfig returns a ready-to-import .sxcu uploader definition.
func (h *UserHandler) ShareXConfig(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())

	key, err := h.users.APIKey(r.Context(), p.UserID)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	base := requestBaseURL(r, h.baseURL)
	name := base
	if u, err := url.Parse(base); err == nil && u.Host != "" {
		name = u.Host
	}

	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name + ".sxcu"}))
	writeJSON(w, http.StatusOK, models.ShareXConfig{
		Version:         shareXVersion,
		Name:            name,
		DestinationType: "ImageUploader, TextUploader, FileUploader",
		RequestMethod:   "POST",
		RequestURL:      base + "/api/upload",
		Headers:         map[string]string{"Authorization": key},
		Body:            "MultipartFormData",
		FileFormName:    "file",
		ResponseType:    "Text",
		URL:             "$json:url$",
	})
}
