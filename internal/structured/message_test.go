package structured

import "testing"

func TestClean(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    string
	}{
		{name: "structured form", message: "+++00/0000/000101+++", want: "000000000101"},
		{name: "plain digits", message: "000000000101", want: "000000000101"},
		{name: "spaces and punctuation", message: " 000 0000 00101. ", want: "000000000101"},
		{name: "pretty form", message: "+++000/0000/00101+++", want: "000000000101"},
		{name: "full-width digits are folded", message: "０００/００００/００１０１", want: "000000000101"},
		{name: "circled digits are dropped", message: "①②3", want: "3"},
		{name: "arabic-indic digits are dropped", message: "١٢٣45", want: "45"},
		{name: "no digits", message: "lunch money", want: ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := Clean(tt.message); got != tt.want {
				t.Fatalf("Clean(%q): got %q, want %q", tt.message, got, tt.want)
			}
		})
	}
}

func TestCleanRoundTrip(t *testing.T) {
	if Clean("+++00/0000/000101+++") != Clean("000000000101") {
		t.Fatalf("structured and plain forms must clean to the same key")
	}
}

func TestCheckDigits(t *testing.T) {
	tests := []struct {
		base uint64
		want int
	}{
		{base: 1, want: 1},
		{base: 96, want: 96},
		{base: 97, want: 97},
		{base: 194, want: 97},
		{base: 1234567890, want: 1234567890 % 97},
	}
	for _, tt := range tests {
		if got := CheckDigits(tt.base); got != tt.want {
			t.Fatalf("CheckDigits(%d): got %d, want %d", tt.base, got, tt.want)
		}
	}
}

func TestValid(t *testing.T) {
	tests := []struct {
		digits string
		want   bool
	}{
		{"000000000101", true},
		{"000000009797", true},
		{"000000000102", false},
		{"00000000010", false},
		{"0000000001011", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := Valid(tt.digits); got != tt.want {
			t.Fatalf("Valid(%q): got %v, want %v", tt.digits, got, tt.want)
		}
	}
}

func TestNext(t *testing.T) {
	first, err := Next("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first != "000000000101" {
		t.Fatalf("first id: got %q, want %q", first, "000000000101")
	}

	second, err := Next(first)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second != "000000000202" {
		t.Fatalf("second id: got %q, want %q", second, "000000000202")
	}
	if !Valid(second) {
		t.Fatalf("next id %q is not valid", second)
	}

	if _, err := Next("000000000102"); err == nil {
		t.Fatalf("expected error for invalid last id")
	}

	last, err := Format(maxSequence)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := Next(last); err != ErrSequenceExhausted {
		t.Fatalf("expected ErrSequenceExhausted after %q, got %v", last, err)
	}
}

func TestFormatExhausted(t *testing.T) {
	if _, err := Format(maxSequence + 1); err != ErrSequenceExhausted {
		t.Fatalf("expected ErrSequenceExhausted, got %v", err)
	}
}

func TestPretty(t *testing.T) {
	if got := Pretty("000000000101"); got != "+++000/0000/00101+++" {
		t.Fatalf("Pretty: got %q", got)
	}
	if got := Clean(Pretty("000000000101")); got != "000000000101" {
		t.Fatalf("Clean(Pretty): got %q", got)
	}
}
