package credential

import (
	"encoding/json"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/LACC-DEVLINK/checkin-exercito-api/pkg/validator"
)

// Fields are the four signed values of a credential, in canonical order.
type Fields struct {
	SubjectID    string
	CredentialID string
	IssuedAt     int64
	EventID      string
}

// Canonical joins the fields with the delimiter. An absent event id is the
// empty string.
func (f Fields) Canonical() string {
	return strings.Join([]string{
		f.SubjectID,
		f.CredentialID,
		strconv.FormatInt(f.IssuedAt, 10),
		f.EventID,
	}, validator.Delimiter)
}

// Payload is the exact JSON shape embedded in a credential QR code.
type Payload struct {
	SubjectID    string  `json:"subjectId" validate:"required,nodelim"`
	CredentialID string  `json:"credentialId" validate:"required,nodelim"`
	IssuedAt     int64   `json:"issuedAt" validate:"gt=0"`
	EventID      *string `json:"eventId" validate:"omitempty,nodelim"`
	Signature    string  `json:"signature" validate:"required,len=64,hexadecimal,lowercase"`
}

// Fields returns the signed portion of the payload.
func (p Payload) Fields() Fields {
	f := Fields{
		SubjectID:    p.SubjectID,
		CredentialID: p.CredentialID,
		IssuedAt:     p.IssuedAt,
	}
	if p.EventID != nil {
		f.EventID = *p.EventID
	}
	return f
}

// Encode renders the payload as the compact JSON string handed to the QR encoder.
func (p Payload) Encode() (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ParsePayload decodes a scanned string into a Payload. Anything that is not
// exactly one JSON object with the known fields and valid values yields
// ErrMalformedPayload.
func ParsePayload(raw string) (Payload, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Payload{}, ErrMalformedPayload.WithInternal(errors.New("empty payload"))
	}

	dec := json.NewDecoder(strings.NewReader(raw))
	dec.DisallowUnknownFields()

	var p Payload
	if err := dec.Decode(&p); err != nil {
		return Payload{}, ErrMalformedPayload.WithInternal(err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Payload{}, ErrMalformedPayload.WithInternal(errors.New("trailing data after payload"))
	}

	if p.EventID != nil && *p.EventID == "" {
		p.EventID = nil
	}

	if err := validator.ValidateStruct(p); err != nil {
		return Payload{}, ErrMalformedPayload.WithInternal(err)
	}

	return p, nil
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
