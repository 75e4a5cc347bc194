package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"introchat/pkg/auth"
	"introchat/pkg/models"
	"introchat/pkg/realtime"
	"introchat/pkg/send"
	"introchat/pkg/store"
	"introchat/pkg/thread"
	"introchat/pkg/utils"
)

// RegisterThreads registers all thread-related HTTP routes to the provided router.
func RegisterThreads(r *mux.Router) {
	// Collection routes
	r.HandleFunc("/threads", createThread).Methods(http.MethodPost)
	r.HandleFunc("/threads", listThreads).Methods(http.MethodGet)

	// Single resource routes
	r.HandleFunc("/threads/{id}", getThread).Methods(http.MethodGet)
	r.HandleFunc("/threads/{id}", deleteThread).Methods(http.MethodDelete)
	r.HandleFunc("/threads/{id}/decision", decideThread).Methods(http.MethodPost)

	// Thread-scoped messages
	r.HandleFunc("/threads/{id}/messages", sendThreadMessage).Methods(http.MethodPost)
	r.HandleFunc("/threads/{id}/messages", listThreadMessages).Methods(http.MethodGet)
	r.HandleFunc("/threads/{id}/seen", markThreadSeen).Methods(http.MethodPost)
	r.HandleFunc("/threads/{id}/typing", publishTyping).Methods(http.MethodPost)
}

// createThread handles POST /threads. The caller becomes the requester;
// the body names the provider. Repeats for the same pair return the
// existing thread.
func createThread(w http.ResponseWriter, r *http.Request) {
	userID, code, msg := auth.ResolveUserFromRequest(r)
	if code != 0 {
		utils.JSONError(w, code, msg)
		return
	}
	var body struct {
		Provider string `json:"provider"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	t, err := deps.Threads.Create(r.Context(), userID, body.Provider)
	if err != nil {
		writeErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, t)
}

// listThreads handles GET /threads: the caller's threads, newest first.
func listThreads(w http.ResponseWriter, r *http.Request) {
	userID, code, msg := auth.ResolveUserFromRequest(r)
	if code != 0 {
		utils.JSONError(w, code, msg)
		return
	}
	out, err := deps.Threads.ListByUser(r.Context(), userID)
	if err != nil {
		writeErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Threads []models.Thread `json:"threads"`
	}{Threads: out})
}

// getThread handles GET /threads/{id}. Participants only.
func getThread(w http.ResponseWriter, r *http.Request) {
	userID, code, msg := auth.ResolveUserFromRequest(r)
	if code != 0 {
		utils.JSONError(w, code, msg)
		return
	}
	t, err := deps.Threads.Get(r.Context(), mux.Vars(r)["id"], userID)
	if err != nil {
		writeErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, t)
}

// deleteThread handles DELETE /threads/{id}: hard delete with message cascade.
func deleteThread(w http.ResponseWriter, r *http.Request) {
	userID, code, msg := auth.ResolveUserFromRequest(r)
	if code != 0 {
		utils.JSONError(w, code, msg)
		return
	}
	if err := deps.Threads.Delete(r.Context(), mux.Vars(r)["id"], userID); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// decideThread handles POST /threads/{id}/decision with body
// {"decision": "ACCEPTED"|"REJECTED"}. Provider only, PENDING only.
func decideThread(w http.ResponseWriter, r *http.Request) {
	userID, code, msg := auth.ResolveUserFromRequest(r)
	if code != 0 {
		utils.JSONError(w, code, msg)
		return
	}
	var body struct {
		Decision models.ThreadState `json:"decision"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	t, err := deps.Threads.Decide(r.Context(), mux.Vars(r)["id"], userID, body.Decision)
	if err != nil {
		writeErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, t)
}

// sendThreadMessage handles POST /threads/{id}/messages with body
// {"kind": ..., "fields": {...}} and runs the full send pipeline.
func sendThreadMessage(w http.ResponseWriter, r *http.Request) {
	userID, code, msg := auth.ResolveUserFromRequest(r)
	if code != 0 {
		utils.JSONError(w, code, msg)
		return
	}
	var body struct {
		Kind   models.MessageKind `json:"kind"`
		Fields json.RawMessage    `json:"fields"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	m, err := deps.Sender.Send(r.Context(), send.Input{
		Thread: mux.Vars(r)["id"],
		Sender: userID,
		Kind:   body.Kind,
		Fields: body.Fields,
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusCreated, toView(m))
}

// listThreadMessages handles GET /threads/{id}/messages?limit=<n> in
// insertion order. Participants only.
func listThreadMessages(w http.ResponseWriter, r *http.Request) {
	userID, code, msg := auth.ResolveUserFromRequest(r)
	if code != 0 {
		utils.JSONError(w, code, msg)
		return
	}
	threadID := mux.Vars(r)["id"]
	th, err := deps.Threads.Get(r.Context(), threadID, userID)
	if err != nil {
		writeErr(w, err)
		return
	}
	out := []messageView{}
	// threads that are not open for messaging expose metadata only
	if thread.CanMessage(th) {
		limit := 0
		if limStr := r.URL.Query().Get("limit"); limStr != "" {
			if lim, err := strconv.Atoi(limStr); err == nil && lim > 0 {
				limit = lim
			}
		}
		msgs, err := store.ListMessages(threadID, limit)
		if err != nil {
			writeErr(w, err)
			return
		}
		for _, m := range msgs {
			out = append(out, toView(m))
		}
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Thread   string        `json:"thread"`
		Messages []messageView `json:"messages"`
	}{Thread: threadID, Messages: out})
}

// markThreadSeen handles POST /threads/{id}/seen: best-effort bulk sweep
// of the caller's unseen inbound messages.
func markThreadSeen(w http.ResponseWriter, r *http.Request) {
	userID, code, msg := auth.ResolveUserFromRequest(r)
	if code != 0 {
		utils.JSONError(w, code, msg)
		return
	}
	marked, err := deps.Delivery.MarkThreadSeen(r.Context(), mux.Vars(r)["id"], userID)
	if err != nil && marked == 0 {
		writeErr(w, err)
		return
	}
	// partial failures still report what was marked
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Marked int `json:"marked"`
	}{Marked: marked})
}

// publishTyping handles POST /threads/{id}/typing: a transient typing
// signal fanned out to the peer, never persisted.
func publishTyping(w http.ResponseWriter, r *http.Request) {
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
	deps.Broker.Publish(realtime.TypingTopic(threadID), realtime.Event{
		Type:   realtime.EventTyping,
		Thread: threadID,
		Sender: userID,
		TS:     time.Now().UTC().UnixNano(),
	})
	w.WriteHeader(http.StatusAccepted)
}
