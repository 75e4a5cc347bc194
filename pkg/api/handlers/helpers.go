package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"

	"introchat/pkg/codec"
	"introchat/pkg/delivery"
	"introchat/pkg/errs"
	"introchat/pkg/models"
	"introchat/pkg/realtime"
	"introchat/pkg/send"
	"introchat/pkg/thread"
	"introchat/pkg/utils"
)

// Deps holds the services handlers dispatch to. Set once at startup via
// Configure.
type Deps struct {
	Threads         *thread.Service
	Delivery        *delivery.Tracker
	Sender          *send.Pipeline
	Broker          realtime.Broker
	MaxPayloadBytes int64
}

var deps Deps

// Configure installs the handler dependencies.
func Configure(d Deps) {
	deps = d
	if deps.MaxPayloadBytes <= 0 {
		deps.MaxPayloadBytes = 1 << 20
	}
}

// writeErr maps domain errors onto HTTP statuses with the standard JSON
// error body.
func writeErr(w http.ResponseWriter, err error) {
	var verr *errs.ValidationError
	switch {
	case errors.As(err, &verr):
		utils.JSONError(w, http.StatusBadRequest, verr.Error())
	case errors.Is(err, errs.ErrNotFound):
		utils.JSONError(w, http.StatusNotFound, "not found")
	case errors.Is(err, errs.ErrForbidden):
		utils.JSONError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, errs.ErrNotEligible):
		utils.JSONError(w, http.StatusForbidden, "provider is not accepting contact requests")
	case errors.Is(err, errs.ErrInvalidTransition):
		utils.JSONError(w, http.StatusConflict, "invalid transition")
	case errors.Is(err, errs.ErrThreadNotOpen):
		utils.JSONError(w, http.StatusConflict, "thread is not open for messaging")
	case errors.Is(err, errs.ErrNoSubscription):
		utils.JSONError(w, http.StatusPaymentRequired, "no subscription")
	case errors.Is(err, errs.ErrSubscriptionInactive):
		utils.JSONError(w, http.StatusPaymentRequired, "subscription inactive")
	case errors.Is(err, errs.ErrNoCredits):
		utils.JSONError(w, http.StatusPaymentRequired, "no credits remaining")
	case errors.Is(err, errs.ErrCorruptPayload):
		utils.JSONError(w, http.StatusUnprocessableEntity, "corrupt payload")
	default:
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
	}
}

// decodeBody decodes a bounded JSON request body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, deps.MaxPayloadBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}

// messageView is the renderable form of a stored message. Fields comes
// from the codec; payloads that no longer decode render as a placeholder
// rather than failing the whole listing.
type messageView struct {
	ID      string             `json:"id"`
	Thread  string             `json:"thread"`
	Sender  string             `json:"sender"`
	Kind    models.MessageKind `json:"kind"`
	Fields  json.RawMessage    `json:"fields"`
	Summary string             `json:"summary"`
	Status  string             `json:"status"`
	TS      int64              `json:"ts"`
}

func toView(m models.Message) messageView {
	d, err := codec.Decode(m.Kind, m.Payload)
	if err != nil {
		d = codec.Placeholder()
	}
	return messageView{
		ID:      m.ID,
		Thread:  m.Thread,
		Sender:  m.Sender,
		Kind:    d.Kind,
		Fields:  d.Fields,
		Summary: d.Summary,
		Status:  string(m.Status),
		TS:      m.TS,
	}
}
