package model

import (
	"testing"
	"time"
)

func TestDomainStringParseRoundTrip(t *testing.T) {
	for _, d := range AllDomains {
		got, err := ParseDomain(d.String())
		if err != nil {
			t.Fatalf("ParseDomain(%q): %v", d.String(), err)
		}
		if got != d {
			t.Fatalf("round trip %v -> %q -> %v", d, d.String(), got)
		}
	}
}

func TestParseDomain_Unknown(t *testing.T) {
	if _, err := ParseDomain("faculty"); err == nil {
		t.Fatal("want error for unknown domain name")
	}
}

func TestIntervalsFor_FallsBackToDefaults(t *testing.T) {
	iv := Intervals{Resources: 5 * time.Minute}

	if got := iv.For(Resources); got != 5*time.Minute {
		t.Fatalf("override ignored: %v", got)
	}
	if got := iv.For(Faculties); got != DefaultFacultiesInterval {
		t.Fatalf("want default for unset domain, got %v", got)
	}

	zero := Intervals{Faculties: 0}
	if got := zero.For(Faculties); got != DefaultFacultiesInterval {
		t.Fatalf("zero interval must fall back to default, got %v", got)
	}
}

func TestTokensEmpty(t *testing.T) {
	if !(Tokens{}).Empty() {
		t.Fatal("zero tokens must be empty")
	}
	if (Tokens{AccessToken: "a"}).Empty() {
		t.Fatal("tokens with an access token are not empty")
	}
	if (Tokens{RefreshToken: "r"}).Empty() {
		t.Fatal("tokens with a refresh token are not empty")
	}
}
