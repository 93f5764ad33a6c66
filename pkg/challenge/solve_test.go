package challenge

import (
	"errors"
	"testing"
)

func TestSolve(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"five plus seven", "12.00"},
		{"What is twelve times three?", "36.00"},
		{"nine minus four", "5.00"},
		{"twenty times two plus five", "40.00"},
		{"What is 6 * 7", "42.00"},
		{"What is 6 x 7?", "42.00"},
		{"15 - 20", "-5.00"},
		{"A lobster has Ninety claws and gains Eleven", "101.00"},
		{"Solve: three plus four", "7.00"},
		{"add 3 and 4 and 100", "7.00"},
		{"Lobster A has 3 claws: lobster B has 4 claws. Total?", "7.00"},
		{"What is five plus three? Answer format: 2 decimal places", "8.00"},
		{"Numbers: six times seven", "42.00"},
	}
	for _, tt := range tests {
		got, err := Solve(tt.text)
		if err != nil {
			t.Errorf("Solve(%q) error: %v", tt.text, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Solve(%q)=%q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestSolve_InsufficientOperands(t *testing.T) {
	for _, text := range []string{
		"only one number: seven",
		"no numbers at all",
		"",
		"42",
	} {
		_, err := Solve(text)
		if !errors.Is(err, ErrInsufficientOperands) {
			t.Errorf("Solve(%q) err=%v, want ErrInsufficientOperands", text, err)
		}
	}
}

func TestParse_FirstTwoOperands(t *testing.T) {
	p, err := Parse("twenty times two plus five")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(p.Operands) != 3 || p.Operands[0] != 20 || p.Operands[1] != 2 || p.Operands[2] != 5 {
		t.Fatalf("Operands=%v, want [20 2 5]", p.Operands)
	}
	if p.Op != OpMultiply {
		t.Fatalf("Op=%s, want multiply", p.Op)
	}
	n, err := p.Result()
	if err != nil || n != 40 {
		t.Fatalf("Result=%d, %v, want 40", n, err)
	}
}

func TestSolve_Overflow(t *testing.T) {
	for _, text := range []string{
		"9999999999 times 9999999999",
		"9223372036854775807 plus 1",
	} {
		got, err := Solve(text)
		if !errors.Is(err, ErrOverflow) {
			t.Errorf("Solve(%q)=%q, %v, want ErrOverflow", text, got, err)
		}
	}
}

func TestNormalize_WordBoundaries(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"nineteen", "19"},
		{"Nine teen", "9 teen"},
		{"someone", "someone"},
		{"tone", "tone"},
		{"fourteen and four", "14 and 4"},
		{"seventy seven", "70 7"},
		{"often", "often"},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q)=%q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDetectOperator_Precedence(t *testing.T) {
	tests := []struct {
		text string
		want Operator
	}{
		{"5 times 3 minus 2", OpMultiply},
		{"5 - 3 * 2", OpMultiply},
		{"10 minus 3 plus 1", OpSubtract},
		{"10 plus 3", OpAdd},
		{"box x 3", OpMultiply},
		{"max3", OpAdd},
	}
	for _, tt := range tests {
		if got := DetectOperator(tt.text); got != tt.want {
			t.Errorf("DetectOperator(%q)=%s, want %s", tt.text, got, tt.want)
		}
	}
}

func TestFormatAnswer(t *testing.T) {
	if got := FormatAnswer(12); got != "12.00" {
		t.Errorf("FormatAnswer(12)=%q", got)
	}
	if got := FormatAnswer(-3); got != "-3.00" {
		t.Errorf("FormatAnswer(-3)=%q", got)
	}
}
