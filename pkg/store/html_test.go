package store

import "testing"

func TestPlainText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "  Shares   fell  sharply ", want: "Shares fell sharply"},
		{name: "paragraphs", in: "<p>The peso <b>slid</b>.</p><p>Traders reacted.</p>", want: "The peso slid.\nTraders reacted."},
		{name: "script dropped", in: "<div>Text<script>alert(1)</script></div>", want: "Text"},
		{name: "entities", in: "Tariffs &amp; quotas", want: "Tariffs & quotas"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PlainText(tt.in); got != tt.want {
				t.Fatalf("PlainText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
