package textnorm

import "testing"

func TestAlnum(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Poulet 12X1KG", "poulet 12x1kg"},
		{"  Boeuf  haché!! ", "boeuf hache"},
		{"Crème-fraîche (500ml)", "creme fraiche 500ml"},
		{"Jalapeño", "jalapeno"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Alnum(tt.in); got != tt.want {
			t.Errorf("Alnum(%q) = %q; want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsSizeToken(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"12x454g", true},
		{"12x1kg", true},
		{"15x12un", true},
		{"454g", true},
		{"12x", true},
		{"12", false},
		{"x12", false},
		{"chicken", false},
		{"4x4x4", false},
	}
	for _, tt := range tests {
		if got := IsSizeToken(tt.in); got != tt.want {
			t.Errorf("IsSizeToken(%q) = %v; want %v", tt.in, got, tt.want)
		}
	}
}

func TestDropWords(t *testing.T) {
	drop := WordSet([]string{"fresh", "Frais", "haché"})
	if got := DropWords("fresh basil frais hache", drop); got != "basil" {
		t.Errorf("DropWords = %q; want %q", got, "basil")
	}
	if got := DropSizeTokens("chicken breast 12x454g"); got != "chicken breast" {
		t.Errorf("DropSizeTokens = %q; want %q", got, "chicken breast")
	}
}
