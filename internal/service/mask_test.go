package service

import (
	"reflect"
	"testing"
)

func TestMaskEmail(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{"anna.berg@acme.se", "an***@acme.se"},
		{"ab@acme.se", "ab***@acme.se"},
		{"a@acme.se", "a***@acme.se"},
		{"not-an-email", "***"},
		{"", "***"},
	}

	for _, tc := range cases {
		if got := MaskEmail(tc.input); got != tc.want {
			t.Fatalf("MaskEmail(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestMaskPhone(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{"+46812345678", "+46****78"},
		{"+4684002227", "+46****27"},
		{"0812345678", "****"},
		{"", "****"},
	}

	for _, tc := range cases {
		if got := MaskPhone(tc.input); got != tc.want {
			t.Fatalf("MaskPhone(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestMaskListsElementWise(t *testing.T) {
	emails := MaskEmails([]string{"info@acme.se", "sales@acme.se"})
	if !reflect.DeepEqual(emails, []string{"in***@acme.se", "sa***@acme.se"}) {
		t.Fatalf("unexpected masked emails: %#v", emails)
	}

	phones := MaskPhones([]string{"+46812345678"})
	if !reflect.DeepEqual(phones, []string{"+46****78"}) {
		t.Fatalf("unexpected masked phones: %#v", phones)
	}
}
