// Package dto provides Data Transfer Objects for API requests and responses.
package dto

// ErrorResponse is the error body for every endpoint.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// QuotaErrorResponse is returned with 429 when an account's budget is spent.
type QuotaErrorResponse struct {
	Error     string `json:"error"`
	CallsMade int    `json:"callsMade"`
	MaxCalls  int    `json:"maxCalls"`
}

// CheckKeyRequest is the body of POST /api/user/check-key.
type CheckKeyRequest struct {
	UserKey string `json:"userKey"`
	// ReturnAPIKey is accepted for compatibility; the secret is never returned.
	ReturnAPIKey bool `json:"returnApiKey"`
}

// CheckKeyResponse reports whether a key exists. APIKey is only present
// (as null) when the caller asked for it.
type CheckKeyResponse struct {
	Exists bool         `json:"exists"`
	APIKey *nullOnWrite `json:"apiKey,omitempty"`
}

// nullOnWrite always marshals as JSON null.
type nullOnWrite struct{}

func (nullOnWrite) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// NewCheckKeyResponse builds the check-key body.
func NewCheckKeyResponse(exists, echoAPIKey bool) CheckKeyResponse {
	resp := CheckKeyResponse{Exists: exists}
	if echoAPIKey {
		resp.APIKey = &nullOnWrite{}
	}
	return resp
}

// GenerationResponse is returned by a successful gemini-call.
type GenerationResponse struct {
	Success        bool `json:"success"`
	Response       any  `json:"response"`
	CallsMade      int  `json:"callsMade"`
	CallsRemaining int  `json:"callsRemaining"`
}

// ResetRequest is the body of POST /api/admin/user/{key}/reset.
type ResetRequest struct {
	AdminKey string `json:"adminKey"`
}

// ResetResponse is returned by a successful reset.
type ResetResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
