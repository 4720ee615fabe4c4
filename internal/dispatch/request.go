package dispatch

import (
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"agrisync/internal/language"
	"agrisync/internal/queue"
	"agrisync/internal/services"
)

// Request is the decoded payload of a queue item. The set of implementations
// is closed; see Decode.
type Request interface {
	Kind() queue.Kind
	validate() error
	normalize()
}

// DiagnosisRequest asks for a crop disease diagnosis from a photo and/or a
// description.
type DiagnosisRequest struct {
	Prompt      string `json:"prompt,omitempty"`
	ImageBase64 string `json:"image,omitempty"`
	Crop        string `json:"crop,omitempty"`
	Language    string `json:"language"`
}

// MarketQueryRequest asks for price guidance on a commodity.
type MarketQueryRequest struct {
	Commodity string `json:"commodity,omitempty"`
	Market    string `json:"market,omitempty"`
	Question  string `json:"question,omitempty"`
	Language  string `json:"language"`
}

// AdvisoryQueryRequest is a free-form farming question, typed or spoken.
type AdvisoryQueryRequest struct {
	Question   string `json:"question,omitempty"`
	Transcript string `json:"transcript,omitempty"`
	Language   string `json:"language"`
}

func (DiagnosisRequest) Kind() queue.Kind     { return queue.KindDiagnosis }
func (MarketQueryRequest) Kind() queue.Kind   { return queue.KindMarketQuery }
func (AdvisoryQueryRequest) Kind() queue.Kind { return queue.KindAdvisoryQuery }

func (r *DiagnosisRequest) validate() error {
	if r.Prompt == "" && r.ImageBase64 == "" {
		return fmt.Errorf("diagnosis needs a prompt or an image")
	}
	return nil
}

func (r *MarketQueryRequest) validate() error {
	if r.Commodity == "" && r.Question == "" {
		return fmt.Errorf("market query needs a commodity or a question")
	}
	return nil
}

func (r *AdvisoryQueryRequest) validate() error {
	if r.Question == "" && r.Transcript == "" {
		return fmt.Errorf("advisory query needs a question or a transcript")
	}
	return nil
}

func (r *DiagnosisRequest) normalize() {
	r.Prompt = cleanText(r.Prompt)
	r.ImageBase64 = stripDataURL(strings.TrimSpace(r.ImageBase64))
	r.Crop = strings.ToLower(cleanText(r.Crop))
	r.Language = language.Canonical(r.Language)
}

func (r *MarketQueryRequest) normalize() {
	r.Commodity = strings.ToLower(cleanText(r.Commodity))
	r.Market = cleanText(r.Market)
	r.Question = cleanText(r.Question)
	r.Language = language.Canonical(r.Language)
}

func (r *AdvisoryQueryRequest) normalize() {
	r.Question = cleanText(r.Question)
	r.Transcript = cleanText(r.Transcript)
	r.Language = language.Canonical(r.Language)
}

// Decode builds the Request variant for kind from a raw payload, normalizes
// its text and validates it.
func Decode(kind queue.Kind, payload []byte) (Request, error) {
	var req Request
	switch kind {
	case queue.KindDiagnosis:
		req = &DiagnosisRequest{}
	case queue.KindMarketQuery:
		req = &MarketQueryRequest{}
	case queue.KindAdvisoryQuery:
		req = &AdvisoryQueryRequest{}
	default:
		return nil, services.Wrap(services.ErrUnknownKind, "dispatch", "decode", fmt.Sprintf("kind %q", kind), nil)
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, req); err != nil {
			return nil, services.Wrap(services.ErrValidation, "dispatch", "decode", string(kind), err)
		}
	}
	req.normalize()
	if err := req.validate(); err != nil {
		return nil, services.Wrap(services.ErrValidation, "dispatch", "decode", err.Error(), nil)
	}
	return req, nil
}

// Validate resolves a client-supplied kind name and checks that payload
// decodes as that kind's request variant.
func Validate(rawKind string, payload []byte) (queue.Kind, error) {
	kind, ok := queue.ParseKind(rawKind)
	if !ok {
		return "", services.Wrap(services.ErrUnknownKind, "dispatch", "validate", strings.TrimSpace(rawKind), nil)
	}
	if _, err := Decode(kind, payload); err != nil {
		return "", err
	}
	return kind, nil
}

// endpointPath returns the remote path for a request variant.
func endpointPath(req Request) string {
	switch req.(type) {
	case *DiagnosisRequest:
		return "/api/diagnose"
	case *MarketQueryRequest:
		return "/api/market"
	case *AdvisoryQueryRequest:
		return "/api/voice"
	default:
		panic(fmt.Sprintf("dispatch: unhandled request type %T", req))
	}
}

func cleanText(value string) string {
	value = norm.NFC.String(value)
	return strings.Join(strings.Fields(value), " ")
}

// stripDataURL drops a "data:image/...;base64," prefix left by browser capture.
func stripDataURL(value string) string {
	if !strings.HasPrefix(value, "data:") {
		return value
	}
	if idx := strings.Index(value, ","); idx >= 0 {
		return value[idx+1:]
	}
	return value
}
