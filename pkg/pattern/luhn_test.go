package pattern

import "testing"

func TestLuhn(t *testing.T) {
	cases := []struct {
		input string
		want  bool
	}{
		{"4111111111111111", true},
		{"4111 1111 1111 1111", true},
		{"4111-1111-1111-1111", true},
		{"5555555555554444", true},
		{"1234567890123456", false},
		{"4111111111111112", false},
		{"411111111111", false}, // too short
		{"4111x1111", false},    // stray character
		{"", false},
	}

	for _, tc := range cases {
		if got := Luhn(tc.input); got != tc.want {
			t.Errorf("Luhn(%q) = %v, want %v", tc.input, got, tc.want)
		}
	}
}
