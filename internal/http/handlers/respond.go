// Package handlers exposes the dispatch service over HTTP.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/wolfman30/charter-notify/internal/dispatch"
	"github.com/wolfman30/charter-notify/internal/tenancy"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeJSON reads a bounded JSON body and rejects unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body required")
		}
		return err
	}
	return nil
}

func siteID(r *http.Request) string {
	id, _ := tenancy.SiteIDFromContext(r.Context())
	return id
}

func queryBool(r *http.Request, key string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(r.URL.Query().Get(key)))
	return err == nil && v
}

// resultView is the wire form of a dispatch result.
type resultView struct {
	dispatch.Result
	AuditWarning string `json:"audit_warning,omitempty"`
}

func viewOf(res dispatch.Result) resultView {
	v := resultView{Result: res}
	if res.AuditWarning != nil {
		v.AuditWarning = res.AuditWarning.Error()
	}
	return v
}
