package util

import (
	"testing"

	"voterroll/internal"
)

func TestParseAge(t *testing.T) {
	cases := []struct {
		input string
		age   int
		known bool
	}{
		{"34", 34, true},
		{" 34 ", 34, true},
		{"34.0", 34, true},
		{"1", 1, true},
		{"120", 120, true},
		{"0", 0, false},
		{"121", 0, false},
		{"-5", 0, false},
		{"thirty", 0, false},
		{"", 0, false},
		{"34.5", 0, false},
	}
	for _, c := range cases {
		age, known := ParseAge(c.input)
		if age != c.age || known != c.known {
			t.Errorf("ParseAge(%q) = (%d, %t), want (%d, %t)", c.input, age, known, c.age, c.known)
		}
	}
}

func TestParseGender(t *testing.T) {
	cases := map[string]internal.Gender{
		"F":          internal.GenderFemale,
		"female":     internal.GenderFemale,
		"M":          internal.GenderMale,
		"Male":       internal.GenderMale,
		"other":      internal.GenderOther,
		"O":          internal.GenderOther,
		"":           internal.GenderUnknown,
		"unclear":    internal.GenderUnknown,
		"  Female  ": internal.GenderFemale,
	}
	for input, want := range cases {
		if got := ParseGender(input); got != want {
			t.Errorf("ParseGender(%q) = %s, want %s", input, got, want)
		}
	}
}

func TestParseVote(t *testing.T) {
	if !ParseVote("yes") || !ParseVote("1") || !ParseVote("TRUE") {
		t.Fatal("recognized true spellings should parse as voted")
	}
	if ParseVote("") || ParseVote("no") || ParseVote("maybe") {
		t.Fatal("anything unrecognized must default to false")
	}
}
