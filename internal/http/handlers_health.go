package httpx

import "net/http"

// healthHandler reports process liveness. It does not touch the
// directory; a degraded directory still serves cached decisions.
func healthHandler(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
