package codec

import (
	"encoding/json"
	"errors"
	"testing"

	"introchat/pkg/errs"
	"introchat/pkg/models"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []struct {
		kind   models.MessageKind
		fields string
	}{
		{models.KindText, `{"body":"hello there"}`},
		{models.KindMedia, `{"url":"https://cdn/x.png","name":"x.png","mime_kind":"image"}`},
		{models.KindLocation, `{"lat":12.9,"lng":77.6,"url":"https://maps/x"}`},
		{models.KindVoice, `{"url":"https://cdn/v.ogg","mime_type":"audio/ogg"}`},
		{models.KindOffer, `{"title":"Dinner","amount":5000,"description":"two courses"}`},
		{models.KindTask, `{"title":"Book venue","status":"pending"}`},
	}
	for _, c := range cases {
		payload, summary, err := Encode(c.kind, json.RawMessage(c.fields))
		if err != nil {
			t.Fatalf("Encode(%s): %v", c.kind, err)
		}
		if summary == "" {
			t.Fatalf("Encode(%s): empty summary", c.kind)
		}
		dec, err := Decode(c.kind, payload)
		if err != nil {
			t.Fatalf("Decode(%s): %v", c.kind, err)
		}
		if dec.Kind != c.kind {
			t.Fatalf("Decode(%s): kind %s", c.kind, dec.Kind)
		}
		var want, got map[string]interface{}
		if err := json.Unmarshal(json.RawMessage(c.fields), &want); err != nil {
			t.Fatal(err)
		}
		if err := json.Unmarshal(dec.Fields, &got); err != nil {
			t.Fatal(err)
		}
		for k, v := range want {
			gv, ok := got[k]
			if !ok {
				t.Fatalf("Decode(%s): missing field %s", c.kind, k)
			}
			if jsonEq(gv) != jsonEq(v) {
				t.Fatalf("Decode(%s): field %s = %v, want %v", c.kind, k, gv, v)
			}
		}
	}
}

func jsonEq(v interface{}) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func TestEncodeValidationNamesField(t *testing.T) {
	cases := []struct {
		kind   models.MessageKind
		fields string
		field  string
	}{
		{models.KindText, `{"body":"   "}`, "body"},
		{models.KindMedia, `{"url":"u","name":"n","mime_kind":"gif"}`, "mime_kind"},
		{models.KindLocation, `{"lat":95,"lng":10,"url":"u"}`, "lat"},
		{models.KindLocation, `{"lat":10,"lng":-190,"url":"u"}`, "lng"},
		{models.KindVoice, `{"url":""}`, "url"},
		{models.KindOffer, `{"title":"x","amount":-1}`, "amount"},
		{models.KindOffer, `{"title":"x","amount":1,"response":"MAYBE"}`, "response"},
		{models.KindTask, `{"title":"x","status":"done"}`, "status"},
	}
	for _, c := range cases {
		_, _, err := Encode(c.kind, json.RawMessage(c.fields))
		var ve *errs.ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("Encode(%s %s): expected ValidationError, got %v", c.kind, c.fields, err)
		}
		if ve.Field != c.field {
			t.Fatalf("Encode(%s): field %q, want %q", c.kind, ve.Field, c.field)
		}
	}
}

func TestDecodeLegacyMarkerString(t *testing.T) {
	// historical payloads are JSON strings embedding a KIND::{json} marker
	raw, _ := json.Marshal(`LOCATION::{"lat":12.9,"lng":77.6,"url":"https://maps/x"}`)
	dec, err := Decode("", raw)
	if err != nil {
		t.Fatalf("Decode legacy: %v", err)
	}
	if dec.Kind != models.KindLocation {
		t.Fatalf("kind = %s, want location", dec.Kind)
	}

	// the typed equivalent must decode to the same structured result
	payload, _, err := Encode(models.KindLocation, json.RawMessage(`{"lat":12.9,"lng":77.6,"url":"https://maps/x"}`))
	if err != nil {
		t.Fatal(err)
	}
	typed, err := Decode(models.KindLocation, payload)
	if err != nil {
		t.Fatal(err)
	}
	if string(dec.Fields) != string(typed.Fields) {
		t.Fatalf("legacy fields %s != typed fields %s", dec.Fields, typed.Fields)
	}
}

func TestDecodeLegacyBareString(t *testing.T) {
	raw, _ := json.Marshal("just an old plain message")
	dec, err := Decode("", raw)
	if err != nil {
		t.Fatalf("Decode bare legacy: %v", err)
	}
	if dec.Kind != models.KindText {
		t.Fatalf("kind = %s, want text", dec.Kind)
	}
	var f TextFields
	if err := json.Unmarshal(dec.Fields, &f); err != nil {
		t.Fatal(err)
	}
	if f.Body != "just an old plain message" {
		t.Fatalf("body = %q", f.Body)
	}
}

func TestDecodeCorruptPayload(t *testing.T) {
	for _, raw := range []string{`{"not":"a string"}`, `""`, `42`} {
		if _, err := Decode("", json.RawMessage(raw)); !errors.Is(err, errs.ErrCorruptPayload) {
			t.Fatalf("Decode(%s): expected ErrCorruptPayload, got %v", raw, err)
		}
	}
	// typed form with garbage fields is corrupt too
	if _, err := Decode(models.KindLocation, json.RawMessage(`{"lat":999}`)); !errors.Is(err, errs.ErrCorruptPayload) {
		t.Fatalf("expected ErrCorruptPayload for out-of-range stored location, got %v", err)
	}
}

func TestOfferAcceptanceIsNewPayload(t *testing.T) {
	orig, _, err := Encode(models.KindOffer, json.RawMessage(`{"title":"Dinner","amount":5000}`))
	if err != nil {
		t.Fatal(err)
	}
	accepted, summary, err := Encode(models.KindOffer, json.RawMessage(`{"title":"Dinner","amount":5000,"response":"ACCEPTED"}`))
	if err != nil {
		t.Fatal(err)
	}
	if string(orig) == string(accepted) {
		t.Fatal("accepted offer payload should differ from the original")
	}
	if summary != "Offer accepted: Dinner" {
		t.Fatalf("summary = %q", summary)
	}
	// the original payload still decodes without a response
	dec, err := Decode(models.KindOffer, orig)
	if err != nil {
		t.Fatal(err)
	}
	var f OfferFields
	if err := json.Unmarshal(dec.Fields, &f); err != nil {
		t.Fatal(err)
	}
	if f.Response != "" {
		t.Fatalf("original offer response = %q, want empty", f.Response)
	}
}
