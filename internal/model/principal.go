package model

// Principal is the authenticated caller, derived per request from a verified
// bearer token. It is never persisted.
type Principal struct {
	ID       string `json:"id"`
	Email    string `json:"email,omitempty"`
	IsAdmin  bool   `json:"is_admin"`
	Provider string `json:"provider,omitempty"`
}
