package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/charter-notify/internal/tenancy"
)

// RequireSite copies the {siteID} route parameter into the request context, rejecting malformed ids.
func RequireSite(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		siteID, err := tenancy.ParseSiteID(chi.URLParam(r, "siteID"))
		if err != nil {
			http.Error(w, "invalid site id", http.StatusBadRequest)
			return
		}
		next.ServeHTTP(w, r.WithContext(tenancy.WithSiteID(r.Context(), siteID)))
	})
}
