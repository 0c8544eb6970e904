// Package srs implements the SM-2 derived review scheduling used for vocabulary items.
//
// Next is a pure function: it never touches storage and gives the same result for the same
// state, assessment and calendar day.
package srs

import (
	"encoding"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/and161185/wordkeeper/internal/errs"
)

// Assessment is the learner's verdict on a single review.
type Assessment int

const (
	Again Assessment = iota + 1 // Not recalled.
	Hard                        // Recalled with significant effort.
	Good                        // Recalled.
	Easy                        // Recalled effortlessly.
)

// ErrInvalidAssessment is returned for assessment values outside Again..Easy.
var ErrInvalidAssessment = fmt.Errorf("%w: invalid assessment", errs.ErrValidation)

var (
	assessmentNames  = [...]string{Again: "Again", Hard: "Hard", Good: "Good", Easy: "Easy"}
	assessmentByName = map[string]Assessment{
		"again": Again,
		"hard":  Hard,
		"good":  Good,
		"easy":  Easy,
		"1":     Again,
		"2":     Hard,
		"3":     Good,
		"4":     Easy,
	}
)

var (
	_ fmt.Stringer             = Assessment(0)
	_ json.Marshaler           = Assessment(0)
	_ json.Unmarshaler         = (*Assessment)(nil)
	_ encoding.TextMarshaler   = Assessment(0)
	_ encoding.TextUnmarshaler = (*Assessment)(nil)
)

// ParseAssessment accepts a name (any case) or the digits 1..4.
func ParseAssessment(s string) (Assessment, error) {
	a, ok := assessmentByName[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAssessment, s)
	}
	return a, nil
}

// IsValid reports whether a is one of Again, Hard, Good, Easy.
func (a Assessment) IsValid() bool {
	return a >= Again && a <= Easy
}

// String returns the assessment name, or "Assessment(n)" for invalid values.
func (a Assessment) String() string {
	if a.IsValid() {
		return assessmentNames[a]
	}
	return fmt.Sprintf("Assessment(%d)", int(a))
}

// MarshalText implements encoding.TextMarshaler.
func (a Assessment) MarshalText() ([]byte, error) {
	if !a.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidAssessment, int(a))
	}
	return []byte(assessmentNames[a]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Assessment) UnmarshalText(text []byte) error {
	v, err := ParseAssessment(string(text))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// MarshalJSON implements json.Marshaler. Assessments serialize as JSON strings.
func (a Assessment) MarshalJSON() ([]byte, error) {
	text, err := a.MarshalText()
	if err != nil {
		return nil, err
	}
	return json.Marshal(string(text))
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *Assessment) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidAssessment, data)
	}
	return a.UnmarshalText([]byte(s))
}
