package models

import "time"

type LoginRequest struct {
	UsernameOrEmail string `json:"usernameOrEmail"`
	Password        string `json:"password"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Success bool     `json:"success"`
	User    UserInfo `json:"user"`
}

type ErrorResponse struct {
	Error             string `json:"error"`
	PasswordProtected bool   `json:"passwordProtected,omitempty"`
}

type UploadResponse struct {
	Success           bool      `json:"success"`
	FileID            string    `json:"fileId"`
	ShortID           string    `json:"shortId"`
	ShortURL          string    `json:"shortUrl"`
	URL               string    `json:"url"`
	ExpiresAt         time.Time `json:"expiresAt"`
	Filename          string    `json:"filename"`
	FileSize          int64     `json:"fileSize"`
	PasswordProtected bool      `json:"passwordProtected"`
	IsAuthenticated   bool      `json:"isAuthenticated"`
}

// ShortURLResponse is what API-key clients such as ShareX receive.
type ShortURLResponse struct {
	URL string `json:"url"`
}

type ContentsResponse struct {
	FileName    string         `json:"fileName"`
	ContentType string         `json:"contentType"`
	Contents    []ArchiveEntry `json:"contents"`
	Tree        []*TreeNode    `json:"tree"`
}

type PasswordRequest struct {
	Password *string `json:"password"`
}

type PasswordResponse struct {
	Success           bool `json:"success"`
	PasswordProtected bool `json:"passwordProtected"`
}

type UserFilesResponse struct {
	Files []FileInfo `json:"files"`
}

type APIKeyResponse struct {
	APIKey string `json:"apiKey"`
}

// ShareXConfig is the .sxcu custom uploader document.
type ShareXConfig struct {
	Version         string            `json:"Version"`
	Name            string            `json:"Name"`
	DestinationType string            `json:"DestinationType"`
	RequestMethod   string            `json:"RequestMethod"`
	RequestURL      string            `json:"RequestURL"`
	Headers         map[string]string `json:"Headers"`
	Body            string            `json:"Body"`
	FileFormName    string            `json:"FileFormName"`
	ResponseType    string            `json:"ResponseType"`
	URL             string            `json:"URL"`
}

type MeResponse struct {
	User UserInfo `json:"user"`
}

type SuccessResponse struct {
	Success bool `json:"success"`
}
