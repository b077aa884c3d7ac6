package web

import (
	"net/http"

	"golang.org/x/crypto/bcrypt"
)

// authUser is the basic auth user name expected by api
const authUser = "randlist"

// authMiddleware checks basic auth credentials against the bcrypt hash
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		if ok && username == authUser {
			if err := bcrypt.CompareHashAndPassword([]byte(s.authHash), []byte(password)); err == nil {
				next.ServeHTTP(w, r)
				return
			}
		}
		w.Header().Set("WWW-Authenticate", `Basic realm="randlist"`)
		s.writeJSONError(w, http.StatusUnauthorized, "unauthorized")
	})
}
