package triage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"inbox-triage/internal/model"
)

// ParsedTriage is a well-formed oracle answer.
type ParsedTriage struct {
	Category   model.Category
	Urgency    int
	Confidence float64
	Reasoning  string
}

// DecodeFailure describes why an oracle answer was rejected.
type DecodeFailure struct {
	Reason string
}

func (f *DecodeFailure) Error() string {
	return "decode oracle response: " + f.Reason
}

// Decoded holds exactly one of Parsed or Failure.
type Decoded struct {
	Parsed  *ParsedTriage
	Failure *DecodeFailure
}

// OK reports whether the answer was accepted.
func (d Decoded) OK() bool {
	return d.Parsed != nil
}

type rawAnswer struct {
	Category     *string      `json:"category"`
	UrgencyLevel *json.Number `json:"urgency_level"`
	Confidence   *json.Number `json:"confidence"`
	Reasoning    string       `json:"reasoning"`
}

func fail(format string, args ...interface{}) Decoded {
	return Decoded{Failure: &DecodeFailure{Reason: fmt.Sprintf(format, args...)}}
}

// Decode validates an oracle answer. Numbers may be sent as JSON numbers or
// numeric strings, and a surrounding markdown code fence is tolerated.
func Decode(raw string) Decoded {
	body := stripFence(raw)
	if body == "" {
		return fail("empty response")
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	dec.UseNumber()
	var ans rawAnswer
	if err := dec.Decode(&ans); err != nil {
		return fail("invalid json: %v", err)
	}
	if strings.TrimSpace(body[dec.InputOffset():]) != "" {
		return fail("unexpected content after json object")
	}

	if ans.Category == nil {
		return fail("missing field category")
	}
	if ans.UrgencyLevel == nil {
		return fail("missing field urgency_level")
	}
	if ans.Confidence == nil {
		return fail("missing field confidence")
	}

	category, ok := model.ParseCategory(*ans.Category)
	if !ok {
		return fail("unknown category %q", *ans.Category)
	}

	urgencyF, err := parseNumber(*ans.UrgencyLevel)
	if err != nil {
		return fail("urgency_level: %v", err)
	}
	if urgencyF != math.Trunc(urgencyF) {
		return fail("urgency_level %v is not an integer", urgencyF)
	}
	urgency := int(urgencyF)
	if !model.ValidUrgency(urgency) {
		return fail("urgency_level %d out of range 1-5", urgency)
	}

	confidence, err := parseNumber(*ans.Confidence)
	if err != nil {
		return fail("confidence: %v", err)
	}
	if confidence < 0 || confidence > 1 {
		return fail("confidence %v out of range 0-1", confidence)
	}

	return Decoded{Parsed: &ParsedTriage{
		Category:   category,
		Urgency:    urgency,
		Confidence: confidence,
		Reasoning:  ans.Reasoning,
	}}
}

// json.Number accepts quoted numerals when decoding a string into it, so both
// 4 and "4" arrive here.
func parseNumber(n json.Number) (float64, error) {
	s := strings.TrimSpace(n.String())
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", s)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%q is not a finite number", s)
	}
	return f, nil
}

func stripFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
