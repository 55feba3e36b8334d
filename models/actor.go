package models

// Actor is the authenticated identity attached to every request by the auth
// middleware. The core trusts this as already verified.
type Actor struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}
