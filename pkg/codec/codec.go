// Package codec turns a (kind, structured fields) tuple into the single
// payload stored on a message and reconstructs it for rendering. It is the
// only place that knows the per-kind payload shapes, and the only place
// that honors backward compatibility with the legacy marker-string
// encoding ("KIND::{json}") still present in historical data. The typed
// form is authoritative; the marker form is a decode-time fallback only,
// never an encode target.
package codec

import (
	"encoding/json"
	"fmt"
	"strings"

	"introchat/pkg/errs"
	"introchat/pkg/models"
)

// TextFields is the payload for kind "text".
type TextFields struct {
	Body string `json:"body"`
}

// MediaFields is the payload for kind "media". URL and MimeKind come from
// the blob storage collaborator's descriptor; raw bytes never reach here.
type MediaFields struct {
	URL      string `json:"url"`
	Name     string `json:"name"`
	MimeKind string `json:"mime_kind"`
}

// LocationFields is the payload for kind "location".
type LocationFields struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
	URL string  `json:"url"`
}

// VoiceFields is the payload for kind "voice".
type VoiceFields struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
}

// OfferFields is the payload for kind "offer". Accepting an offer is a new
// offer message copying the original fields with Response set to
// ResponseAccepted; the original message is never mutated.
type OfferFields struct {
	Title       string `json:"title"`
	Amount      int64  `json:"amount"`
	Description string `json:"description,omitempty"`
	Duration    string `json:"duration,omitempty"`
	Location    string `json:"location,omitempty"`
	Response    string `json:"response,omitempty"`
}

// TaskFields is the payload for kind "task". Toggling status is a new task
// message with the updated status.
type TaskFields struct {
	Title  string `json:"title"`
	Status string `json:"status"`
}

const (
	ResponseAccepted = "ACCEPTED"

	TaskPending   = "pending"
	TaskCompleted = "completed"
)

var mimeKinds = map[string]struct{}{
	"image": {}, "video": {}, "audio": {}, "file": {},
}

// Decoded is the renderable form of a payload: the kind, the canonical
// fields object and a human-readable summary for list previews.
type Decoded struct {
	Kind    models.MessageKind `json:"kind"`
	Fields  json.RawMessage    `json:"fields"`
	Summary string             `json:"summary"`
}

// Encode validates fields against the schema for kind and returns the
// canonical payload plus a preview summary. A missing or out-of-range
// field yields a ValidationError naming the offending field.
func Encode(kind models.MessageKind, fields json.RawMessage) (json.RawMessage, string, error) {
	canonical, summary, err := normalize(kind, fields)
	if err != nil {
		return nil, "", err
	}
	return canonical, summary, nil
}

// Decode reconstructs the typed payload of a stored message. The typed
// form (kind tag present) is authoritative; when no kind is present the
// payload is parsed as a legacy marker string. If neither form parses,
// Decode fails with ErrCorruptPayload; callers must render Placeholder()
// rather than propagate raw unparsed content.
func Decode(kind models.MessageKind, payload json.RawMessage) (Decoded, error) {
	if kind != "" {
		canonical, summary, err := normalize(kind, payload)
		if err != nil {
			return Decoded{}, errs.ErrCorruptPayload
		}
		return Decoded{Kind: kind, Fields: canonical, Summary: summary}, nil
	}
	return decodeLegacy(payload)
}

// Placeholder is the safe rendering for an undecodable payload.
func Placeholder() Decoded {
	f, _ := json.Marshal(TextFields{Body: "[unsupported message]"})
	return Decoded{Kind: models.KindText, Fields: f, Summary: "[unsupported message]"}
}

// decodeLegacy parses the historical string payload: either
// "KIND::{json fields}" or a bare text body.
func decodeLegacy(payload json.RawMessage) (Decoded, error) {
	var s string
	if err := json.Unmarshal(payload, &s); err != nil {
		return Decoded{}, errs.ErrCorruptPayload
	}
	if idx := strings.Index(s, "::"); idx > 0 {
		marker := s[:idx]
		if kind, ok := legacyKind(marker); ok {
			canonical, summary, err := normalize(kind, json.RawMessage(s[idx+2:]))
			if err != nil {
				return Decoded{}, errs.ErrCorruptPayload
			}
			return Decoded{Kind: kind, Fields: canonical, Summary: summary}, nil
		}
	}
	// no recognized marker: the oldest records are plain text bodies
	if strings.TrimSpace(s) == "" {
		return Decoded{}, errs.ErrCorruptPayload
	}
	canonical, summary, err := normalize(models.KindText, mustMarshal(TextFields{Body: s}))
	if err != nil {
		return Decoded{}, errs.ErrCorruptPayload
	}
	return Decoded{Kind: models.KindText, Fields: canonical, Summary: summary}, nil
}

func legacyKind(marker string) (models.MessageKind, bool) {
	switch strings.ToUpper(marker) {
	case "TEXT":
		return models.KindText, true
	case "MEDIA":
		return models.KindMedia, true
	case "LOCATION":
		return models.KindLocation, true
	case "VOICE":
		return models.KindVoice, true
	case "OFFER":
		return models.KindOffer, true
	case "TASK":
		return models.KindTask, true
	}
	return "", false
}

// normalize validates fields for kind and re-marshals them canonically.
func normalize(kind models.MessageKind, fields json.RawMessage) (json.RawMessage, string, error) {
	switch kind {
	case models.KindText:
		var f TextFields
		if err := json.Unmarshal(fields, &f); err != nil {
			return nil, "", errs.Validation("body", "invalid json")
		}
		if strings.TrimSpace(f.Body) == "" {
			return nil, "", errs.Validation("body", "must be non-empty")
		}
		return mustMarshal(f), summarize(f.Body), nil

	case models.KindMedia:
		var f MediaFields
		if err := json.Unmarshal(fields, &f); err != nil {
			return nil, "", errs.Validation("media", "invalid json")
		}
		if f.URL == "" {
			return nil, "", errs.Validation("url", "required")
		}
		if f.Name == "" {
			return nil, "", errs.Validation("name", "required")
		}
		if _, ok := mimeKinds[f.MimeKind]; !ok {
			return nil, "", errs.Validation("mime_kind", "must be one of image, video, audio, file")
		}
		return mustMarshal(f), "[" + f.MimeKind + "] " + f.Name, nil

	case models.KindLocation:
		var f LocationFields
		if err := json.Unmarshal(fields, &f); err != nil {
			return nil, "", errs.Validation("location", "invalid json")
		}
		if f.Lat < -90 || f.Lat > 90 {
			return nil, "", errs.Validation("lat", "must be between -90 and 90")
		}
		if f.Lng < -180 || f.Lng > 180 {
			return nil, "", errs.Validation("lng", "must be between -180 and 180")
		}
		if f.URL == "" {
			return nil, "", errs.Validation("url", "required")
		}
		return mustMarshal(f), "Shared a location", nil

	case models.KindVoice:
		var f VoiceFields
		if err := json.Unmarshal(fields, &f); err != nil {
			return nil, "", errs.Validation("voice", "invalid json")
		}
		if f.URL == "" {
			return nil, "", errs.Validation("url", "required")
		}
		if f.MimeType == "" {
			return nil, "", errs.Validation("mime_type", "required")
		}
		return mustMarshal(f), "Voice message", nil

	case models.KindOffer:
		var f OfferFields
		if err := json.Unmarshal(fields, &f); err != nil {
			return nil, "", errs.Validation("offer", "invalid json")
		}
		if strings.TrimSpace(f.Title) == "" {
			return nil, "", errs.Validation("title", "required")
		}
		if f.Amount < 0 {
			return nil, "", errs.Validation("amount", "must be >= 0")
		}
		switch f.Response {
		case "", "none":
			f.Response = ""
		case ResponseAccepted:
		default:
			return nil, "", errs.Validation("response", "must be none or ACCEPTED")
		}
		summary := fmt.Sprintf("Offer: %s (%d)", f.Title, f.Amount)
		if f.Response == ResponseAccepted {
			summary = "Offer accepted: " + f.Title
		}
		return mustMarshal(f), summary, nil

	case models.KindTask:
		var f TaskFields
		if err := json.Unmarshal(fields, &f); err != nil {
			return nil, "", errs.Validation("task", "invalid json")
		}
		if strings.TrimSpace(f.Title) == "" {
			return nil, "", errs.Validation("title", "required")
		}
		if f.Status != TaskPending && f.Status != TaskCompleted {
			return nil, "", errs.Validation("status", "must be pending or completed")
		}
		return mustMarshal(f), fmt.Sprintf("Task: %s (%s)", f.Title, f.Status), nil
	}
	return nil, "", errs.Validation("kind", "unknown message kind")
}

func summarize(body string) string {
	s := strings.TrimSpace(body)
	const max = 120
	if len(s) > max {
		return s[:max] + "…"
	}
	return s
}

func mustMarshal(v interface{}) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		// all field structs are marshalable; reaching here is a programming error
		panic(err)
	}
	return b
}
