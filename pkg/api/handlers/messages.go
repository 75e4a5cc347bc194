package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"introchat/pkg/auth"
	"introchat/pkg/errs"
	"introchat/pkg/models"
	"introchat/pkg/store"
	"introchat/pkg/thread"
	"introchat/pkg/utils"
)

// RegisterMessages registers message-scoped routes to the provided router.
func RegisterMessages(r *mux.Router) {
	r.HandleFunc("/messages/{id}", getMessage).Methods(http.MethodGet)
	r.HandleFunc("/messages/{id}/status", advanceStatus).Methods(http.MethodPost)
}

// getMessage handles GET /messages/{id}. Participants of the owning
// thread only.
func getMessage(w http.ResponseWriter, r *http.Request) {
	userID, code, msg := auth.ResolveUserFromRequest(r)
	if code != 0 {
		utils.JSONError(w, code, msg)
		return
	}
	m, err := store.GetMessage(mux.Vars(r)["id"])
	if err != nil {
		writeErr(w, err)
		return
	}
	th, err := deps.Threads.Get(r.Context(), m.Thread, userID)
	if err != nil {
		writeErr(w, err)
		return
	}
	// content on a thread that is not open for messaging stays hidden
	if !thread.CanMessage(th) {
		writeErr(w, errs.ErrNotFound)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, toView(m))
}

// advanceStatus handles POST /messages/{id}/status with body
// {"target": "delivered"|"seen"}. Only the recipient may advance, the
// status never moves backwards and repeats are harmless.
func advanceStatus(w http.ResponseWriter, r *http.Request) {
	userID, code, msg := auth.ResolveUserFromRequest(r)
	if code != 0 {
		utils.JSONError(w, code, msg)
		return
	}
	var body struct {
		Target models.DeliveryStatus `json:"target"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	m, err := deps.Delivery.Advance(r.Context(), mux.Vars(r)["id"], userID, body.Target)
	if err != nil {
		writeErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, toView(m))
}
