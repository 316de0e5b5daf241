package tddf

import (
	"crypto/subtle"
	"net/http"
	"os"
	"strings"

	"MerchantMMS/api"
)

// requireAPIKey gates mutating and reporting endpoints behind the shared key
// in MMS_API_KEY. When the variable is unset the check is disabled, which
// keeps local development friction-free.
func requireAPIKey(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		want := strings.TrimSpace(os.Getenv("MMS_API_KEY"))
		if want == "" {
			next(w, r)
			return
		}
		got := strings.TrimSpace(r.Header.Get("X-API-Key"))
		if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
			api.RespondWithError(w, http.StatusUnauthorized, "invalid or missing API key")
			return
		}
		next(w, r)
	}
}
