package language

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Language
		wantErr bool
	}{
		{"ru", Russian, false},
		{"RU", Russian, false},
		{" kg ", Kyrgyz, false},
		{"ky", Kyrgyz, false},
		{"", Russian, false},
		{"en", "", true},
		{"kgz", "", true},
	}
	for _, tt := range tests {
		got, err := Parse(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("Parse(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("Parse(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsValid(t *testing.T) {
	for _, l := range All() {
		if !l.IsValid() {
			t.Errorf("%q.IsValid() = false", l)
		}
	}
	if Language("de").IsValid() {
		t.Error("de should be invalid")
	}
}
