package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"introchat/pkg/logger"
	"introchat/pkg/models"
	"introchat/pkg/store"
	"introchat/pkg/utils"
)

// RegisterBackend registers routes reserved for trusted backend callers:
// subscription snapshot pushes from the billing system and contact
// preference updates.
func RegisterBackend(r *mux.Router) {
	r.HandleFunc("/subscriptions/{user}", putSubscription).Methods(http.MethodPut)
	r.HandleFunc("/subscriptions/{user}", getSubscription).Methods(http.MethodGet)
	r.HandleFunc("/users/{user}/prefs", putPrefs).Methods(http.MethodPut)
}

func isBackend(r *http.Request) bool {
	role := r.Header.Get("X-Role-Name")
	return role == "backend" || role == "admin"
}

// putSubscription handles PUT /subscriptions/{user}: the billing system
// pushes the full snapshot; the server never computes plan state itself.
func putSubscription(w http.ResponseWriter, r *http.Request) {
	if !isBackend(r) {
		utils.JSONError(w, http.StatusForbidden, "forbidden")
		return
	}
	user := mux.Vars(r)["user"]
	var s models.Subscription
	if !decodeBody(w, r, &s) {
		return
	}
	s.User = user
	switch s.Status {
	case models.SubActive, models.SubExpired, models.SubCancelled:
	default:
		utils.JSONError(w, http.StatusBadRequest, "status must be active, expired or cancelled")
		return
	}
	if s.Balance < 0 {
		utils.JSONError(w, http.StatusBadRequest, "balance must be >= 0")
		return
	}
	if err := store.SaveSubscription(s); err != nil {
		writeErr(w, err)
		return
	}
	logger.Info("subscription_pushed", "user", user, "status", string(s.Status), "unlimited", s.Unlimited)
	_ = utils.JSONWrite(w, http.StatusOK, s)
}

// getSubscription handles GET /subscriptions/{user}. Frontend callers may
// read their own snapshot for display; the balance shown is advisory only.
func getSubscription(w http.ResponseWriter, r *http.Request) {
	user := mux.Vars(r)["user"]
	if !isBackend(r) {
		if r.Header.Get("X-User-ID") != user {
			utils.JSONError(w, http.StatusForbidden, "forbidden")
			return
		}
	}
	s, err := store.GetSubscription(user)
	if err != nil {
		writeErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, s)
}

// putPrefs handles PUT /users/{user}/prefs: contact preference pushes
// (inbound contact on/off).
func putPrefs(w http.ResponseWriter, r *http.Request) {
	if !isBackend(r) {
		utils.JSONError(w, http.StatusForbidden, "forbidden")
		return
	}
	user := mux.Vars(r)["user"]
	var p models.ContactPrefs
	if !decodeBody(w, r, &p) {
		return
	}
	p.User = user
	if err := store.SavePrefs(p); err != nil {
		writeErr(w, err)
		return
	}
	logger.Info("prefs_pushed", "user", user, "inbound_disabled", p.InboundDisabled, "ts", time.Now().UTC().UnixNano())
	_ = utils.JSONWrite(w, http.StatusOK, p)
}
