package srs

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestAssessmentString(t *testing.T) {
	tests := []struct {
		a    Assessment
		want string
	}{
		{Again, "Again"},
		{Hard, "Hard"},
		{Good, "Good"},
		{Easy, "Easy"},
		{Assessment(0), "Assessment(0)"},
		{Assessment(9), "Assessment(9)"},
	}
	for _, tt := range tests {
		if got := tt.a.String(); got != tt.want {
			t.Errorf("Assessment(%d).String() = %q, want %q", int(tt.a), got, tt.want)
		}
	}
}

func TestParseAssessment(t *testing.T) {
	ok := map[string]Assessment{"again": Again, "HARD": Hard, " Good ": Good, "easy": Easy, "1": Again, "4": Easy}
	for in, want := range ok {
		got, err := ParseAssessment(in)
		if err != nil || got != want {
			t.Errorf("ParseAssessment(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	for _, in := range []string{"", "5", "perfect", "0"} {
		if _, err := ParseAssessment(in); !errors.Is(err, ErrInvalidAssessment) {
			t.Errorf("ParseAssessment(%q) err = %v, want ErrInvalidAssessment", in, err)
		}
	}
}

func TestAssessmentJSON(t *testing.T) {
	b, err := json.Marshal(Hard)
	if err != nil || string(b) != `"Hard"` {
		t.Fatalf("marshal: %s %v", b, err)
	}
	var a Assessment
	if err := json.Unmarshal([]byte(`"Easy"`), &a); err != nil || a != Easy {
		t.Fatalf("unmarshal: %v %v", a, err)
	}
	if _, err := json.Marshal(Assessment(7)); err == nil {
		t.Fatalf("want error for invalid assessment")
	}
	if err := json.Unmarshal([]byte(`3`), &a); !errors.Is(err, ErrInvalidAssessment) {
		t.Fatalf("want ErrInvalidAssessment for non-string, got %v", err)
	}
}
