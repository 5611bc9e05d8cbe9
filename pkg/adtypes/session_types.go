// Package adtypes defines authentication and session types for adsdash.
package adtypes

// User is the identity returned by the backend on a successful login.
type User struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

// Session holds the bearer token and the identity it belongs to.
// A zero Session means nobody is logged in.
type Session struct {
	Token string `json:"token,omitempty"`
	User  *User  `json:"user,omitempty"`
}

// Authenticated reports whether the session carries a token.
func (s Session) Authenticated() bool {
	return s.Token != ""
}

// LoginResult is the outcome of a login attempt.
// Message is only set when Success is false.
type LoginResult struct {
	Success bool
	Message string
}

// LoginResponse is the JSON body returned by POST /api/login.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Username    string `json:"username"`
	Role        string `json:"role"`
}
