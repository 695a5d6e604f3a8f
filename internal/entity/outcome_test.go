package entity

import "testing"

func TestOutcome_RenderParse(t *testing.T) {
	cases := []struct {
		in   Outcome
		want string
	}{
		{Success("  text\n"), "text"},
		{NoText(false), "[NO TEXT DETECTED]"},
		{NoText(true), "[NO TEXT DETECTED - LOW CONFIDENCE]"},
		{Failure("disk full"), "[OCR ERROR] disk full"},
	}
	for _, tc := range cases {
		got := tc.in.Render()
		if got != tc.want {
			t.Fatalf("render %+v = %q, want %q", tc.in, got, tc.want)
		}
		back := ParseRendered(got)
		if back.Kind != tc.in.Kind || back.LowConfidence != tc.in.LowConfidence {
			t.Fatalf("parse %q = %+v", got, back)
		}
	}
}

func TestParseCached(t *testing.T) {
	cases := map[string]Outcome{
		"[NO TEXT DETECTED]":                  NoText(false),
		"[NO TEXT DETECTED - LOW CONFIDENCE]": NoText(true),
		"total 12.50":                         Success("total 12.50"),
		"[OCR ERROR] printed on the receipt":  Success("[OCR ERROR] printed on the receipt"),
	}
	for in, want := range cases {
		if got := ParseCached(in); got != want {
			t.Errorf("ParseCached(%q) = %+v, want %+v", in, got, want)
		}
	}
}

func TestOutcome_Cacheable(t *testing.T) {
	if !Success("x").Cacheable() || !NoText(true).Cacheable() {
		t.Fatalf("success and no-text are cacheable")
	}
	if Failure("x").Cacheable() {
		t.Fatalf("errors are never cacheable")
	}
}

func TestImageItem_Ext(t *testing.T) {
	cases := map[string]string{"a.PNG": ".png", "noext": "", "dir.v2/x.jpeg": ".jpeg", "trailing.": ""}
	for name, want := range cases {
		if got := (ImageItem{Filename: name}).Ext(); got != want {
			t.Fatalf("Ext(%q) = %q, want %q", name, got, want)
		}
	}
}
