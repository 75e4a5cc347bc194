package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"introchat/pkg/auth"
	"introchat/pkg/realtime"
	"introchat/pkg/utils"
)

// RegisterWS registers the websocket subscribe endpoint.
func RegisterWS(r *mux.Router) {
	r.HandleFunc("/threads/{id}/ws", serveThreadWS).Methods(http.MethodGet)
}

// serveThreadWS handles GET /threads/{id}/ws: upgrades to a websocket
// carrying the thread's message, status and typing events. Participants
// only; inbound frames are limited to typing signals.
func serveThreadWS(w http.ResponseWriter, r *http.Request) {
	userID, code, msg := auth.ResolveUserFromRequest(r)
	if code != 0 {
		utils.JSONError(w, code, msg)
		return
	}
	threadID := mux.Vars(r)["id"]
	if _, err := deps.Threads.Get(r.Context(), threadID, userID); err != nil {
		writeErr(w, err)
		return
	}
	realtime.ServeThread(deps.Broker, w, r, threadID, userID)
}
