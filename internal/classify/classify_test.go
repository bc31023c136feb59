package classify

import (
	"strings"
	"testing"
)

func TestDiscard_SampleLines(t *testing.T) {
	c := New(Options{})
	cases := []struct {
		line    string
		discard bool
		reason  string
	}{
		{"Copyright 2020 Elsevier Inc.", true, "legal"},
		{"Smith J. (2019) Title.", true, "reference"},
		{"The quick brown fox.", false, ""},
		{"See https://example.org/paper for details", true, "url"},
		{"visit http : broken.example", true, "url"},
		{"www example.com is a host", true, "url"},
		{"doi: 10.1000/182", true, "url"},
		{"Contact jane.doe@example.com today", true, "email"},
		{"", false, ""},
	}
	for _, tc := range cases {
		if got := c.Discard(tc.line); got != tc.discard {
			t.Fatalf("Discard(%q)=%v, want %v", tc.line, got, tc.discard)
		}
		if got := c.Reason(tc.line); got != tc.reason {
			t.Fatalf("Reason(%q)=%q, want %q", tc.line, got, tc.reason)
		}
	}
}

func TestDigitRatioBoundary(t *testing.T) {
	c := New(Options{})
	over := strings.Repeat("1", 61) + strings.Repeat("a", 39)
	under := strings.Repeat("1", 59) + strings.Repeat("a", 41)
	if !c.Discard(over) {
		t.Fatalf("61%% digits should be discarded")
	}
	if c.Discard(under) {
		t.Fatalf("59%% digits should be kept; reason=%q", c.Reason(under))
	}
}

func TestSymbolHeavy(t *testing.T) {
	heavy := SymbolHeavy(DefaultSymbolRatio)
	if !heavy("a -- ** ++ ==") {
		t.Fatalf("expected symbol-heavy line to match")
	}
	if heavy("plain words here") {
		t.Fatalf("did not expect prose to match")
	}
	if heavy("") {
		t.Fatalf("empty line must not match")
	}
}

func TestIsReference(t *testing.T) {
	if !IsReference("Johnson K, Brown A. Nutrition in practice. (2004) 12:1-9") {
		t.Fatalf("expected reference line to match")
	}
	if IsReference("Nutrition in practice (2004)") {
		t.Fatalf("no surname and initial; expected no match")
	}
	if IsReference("Smith J. Title without year") {
		t.Fatalf("no year; expected no match")
	}
}

func TestLegalMatcher_CustomKeywords(t *testing.T) {
	c := New(Options{LegalKeywords: []string{"Acme Press", "  "}})
	if !c.Discard("Published by ACME PRESS, 1999") {
		t.Fatalf("custom keyword should match case-insensitively")
	}
	if c.Discard("Copyright notice") {
		t.Fatalf("defaults must be replaced by custom keywords")
	}
	if !LegalMatcher([]string{"taylor & francis"})("Taylor & Francis Group") {
		t.Fatalf("keywords are literal text, not patterns")
	}
	if LegalMatcher(nil)("anything") {
		t.Fatalf("empty keyword list matches nothing")
	}
}

func TestResidual_OnlyLegalURLEmail(t *testing.T) {
	c := New(Options{})
	if !c.Residual("All rights reserved.") {
		t.Fatalf("legal line should be residual")
	}
	if c.Residual("Smith J. (2019) Title.") {
		t.Fatalf("references are not part of the residual pass")
	}
	if c.Residual(strings.Repeat("9", 20)) {
		t.Fatalf("ratios are not part of the residual pass")
	}
}

func TestPredicates_OrderAndIndependence(t *testing.T) {
	c := New(Options{})
	names := []string{}
	for _, p := range c.Predicates() {
		names = append(names, p.Name)
	}
	want := "legal,url,email,reference,digits,symbols"
	if got := strings.Join(names, ","); got != want {
		t.Fatalf("predicates=%s, want %s", got, want)
	}
}
