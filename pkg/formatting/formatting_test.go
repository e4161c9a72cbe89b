package formatting_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/JaimeStill/postmottak/pkg/formatting"
)

func TestParseBytes(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"2048", 2048, false},
		{"512B", 512, false},
		{"1MB", 1 << 20, false},
		{"1.5 kb", 1536, false},
		{" 10GB ", 10 << 30, false},
		{"", 0, true},
		{"MB", 0, true},
		{"-5MB", 0, true},
		{"5 XB", 0, true},
		{"1.2.3MB", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := formatting.ParseBytes(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseBytes(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseBytes(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		n         int64
		precision int
		want      string
	}{
		{0, 2, "0 B"},
		{1023, 1, "1023 B"},
		{1 << 20, 0, "1 MB"},
		{1536, 1, "1.5 KB"},
		{1536, -3, "2 KB"},
	}
	for _, tt := range tests {
		if got := formatting.FormatBytes(tt.n, tt.precision); got != tt.want {
			t.Errorf("FormatBytes(%d, %d) = %q, want %q", tt.n, tt.precision, got, tt.want)
		}
	}
}

type verdict struct {
	Match  string `json:"match"`
	Reason string `json:"reason"`
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		want    string
		wantErr bool
	}{
		{"bare", `{"match":"yes","reason":"rf13.50"}`, "yes", false},
		{"fenced", "```json\n{\"match\":\"maybe\"}\n```", "maybe", false},
		{"fenced no tag", "```\n{\"match\":\"no\"}\n```", "no", false},
		{"prose around fence", "Svar:\n```json\n{\"match\":\"yes\"}\n```\nHilsen Arnt Ivan", "yes", false},
		{"prose around object", `Her er fakta: {"match":"yes","reason":"x"} Ha en fin dag!`, "yes", false},
		{"no json", "Jeg vet ikke.", "", true},
		{"broken fence", "```json\n{\"match\":\n```", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := formatting.Parse[verdict](tt.reply)
			if tt.wantErr {
				if !errors.Is(err, formatting.ErrParseFailed) {
					t.Errorf("err = %v, want ErrParseFailed", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if got.Match != tt.want {
				t.Errorf("match = %q, want %q", got.Match, tt.want)
			}
		})
	}
}

func TestHTML(t *testing.T) {
	box := formatting.HTMLBox("Arkivert i 24/00012")
	if !strings.HasPrefix(box, "<div style=") || !strings.Contains(box, "Arkivert i 24/00012</div>") {
		t.Errorf("HTMLBox = %q", box)
	}
	if got := formatting.HTMLList([]string{"a@x.no", "b@x.no"}); got != "<ul><li>a@x.no</li><li>b@x.no</li></ul>" {
		t.Errorf("HTMLList = %q", got)
	}
	if got := formatting.HTMLList(nil); got != "<ul></ul>" {
		t.Errorf("HTMLList(nil) = %q", got)
	}
}
