package editor

import (
	"crypto/subtle"
	"net/http"
	"strconv"
)

// DefaultRealm is sent in the Basic challenge when none is configured.
const DefaultRealm = "Login Required"

// Credentials is the username/password pair the editor accepts.
// Both empty disables authentication.
type Credentials struct {
	Username string
	Password string
}

// Enabled reports whether requests must authenticate.
func (c Credentials) Enabled() bool {
	return c.Username != "" || c.Password != ""
}

// Matches compares the pair in constant time. Both halves are always
// compared so timing does not reveal which one was wrong.
func (c Credentials) Matches(username, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(c.Username))
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(c.Password))
	return userOK&passOK == 1
}

// authenticate evaluates the Basic credentials of r. Nothing is cached
// between requests.
func (h *Handler) authenticate(r *http.Request) bool {
	if !h.credentials.Enabled() {
		return true
	}
	username, password, ok := r.BasicAuth()
	if !ok {
		return false
	}
	return h.credentials.Matches(username, password)
}

// challenge answers 401 with a Basic challenge.
func (h *Handler) challenge(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Basic realm="+strconv.Quote(h.config.Realm))
	writeError(w, ErrUnauthorized)
}
