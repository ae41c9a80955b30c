package google

import "testing"

func TestParseMoney(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"123.45", 12345},
		{"123,45", 12345}, // locale comma
		{"0", 0},
		{"-5.5", -550},
		{"", 0},
		{"n/a", 0},
	}
	for _, tt := range tests {
		if got := parseMoney(tt.in).Cents; got != tt.want {
			t.Errorf("parseMoney(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestParseBool(t *testing.T) {
	for _, s := range []string{"true", "TRUE", "1"} {
		if !parseBool(s) {
			t.Errorf("parseBool(%q) = false", s)
		}
	}
	for _, s := range []string{"false", "0", "", "yes"} {
		if parseBool(s) {
			t.Errorf("parseBool(%q) = true", s)
		}
	}
}

func TestSafeGet(t *testing.T) {
	cells := []string{"a", "b"}
	if got := safeGet(cells, 1); got != "b" {
		t.Errorf("safeGet(1) = %q", got)
	}
	if got := safeGet(cells, 5); got != "" {
		t.Errorf("safeGet(5) = %q, want empty", got)
	}
}

func TestStringCells(t *testing.T) {
	got := stringCells([]any{" padded ", 42, true})
	want := []string{"padded", "42", "true"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("cell %d = %q, want %q", i, got[i], want[i])
		}
	}
}
