package sanitizer

import (
	"testing"

	"bureau/pkg/model"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		region string
		want   string
		wantOK bool
	}{
		{"international with spaces", "+972 54 123 4567", "US", "+972541234567", true},
		{"international with parentheses", "+1 (650) 253-0000", "IL", "+16502530000", true},
		{"national number uses region", "(650) 253-0000", "US", "+16502530000", true},
		{"trimmed", "  +16502530000  ", "", "+16502530000", true},
		{"empty is fine", "", "US", "", true},
		{"whitespace is empty", "   ", "US", "", true},
		{"letters", "call me", "US", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizePhone(tt.input, tt.region)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("NormalizePhone(%q) = %q, %v; want %q, %v", tt.input, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestTrimAndNormalize(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"  Ada   Lovelace ", "Ada Lovelace"},
		{"Ada\t\nLovelace", "Ada Lovelace"},
		{" Café & Spa™ ", "Café & Spa™"},
		{"   ", ""},
	}
	for _, tt := range tests {
		if got := TrimAndNormalize(tt.input); got != tt.want {
			t.Errorf("TrimAndNormalize(%q) = %q, want %q", tt.input, got, tt.want)
		}
		if got := TrimAndNormalize(TrimAndNormalize(tt.input)); got != tt.want {
			t.Errorf("TrimAndNormalize is not idempotent for %q", tt.input)
		}
	}
}

func TestContact(t *testing.T) {
	in := model.ClientContact{
		Name:  "  Grace   Hopper ",
		Email: " Grace@Example.COM ",
		Phone: "+1 650 253 0000",
		Notes: "  first visit ",
	}

	out, ok := Contact(in, "US")
	if !ok {
		t.Fatal("expected phone to parse")
	}
	want := model.ClientContact{Name: "Grace Hopper", Email: "grace@example.com", Phone: "+16502530000", Notes: "first visit"}
	if out != want {
		t.Errorf("Contact() = %+v, want %+v", out, want)
	}

	_, ok = Contact(model.ClientContact{Name: "x", Email: "x@y.z", Phone: "nope"}, "US")
	if ok {
		t.Error("expected invalid phone to be reported")
	}
}
