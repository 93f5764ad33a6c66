// Package challenge solves the arithmetic word problems the platform issues
// before it accepts further posts, and submits the answers.
package challenge

import (
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strconv"
	"strings"
)

// ErrInsufficientOperands is returned when fewer than two numbers are found.
var ErrInsufficientOperands = errors.New("challenge has fewer than two operands")

// ErrOverflow is returned when the answer does not fit in an int64.
var ErrOverflow = errors.New("challenge answer overflows int64")

// Operator is the arithmetic operation implied by a challenge.
type Operator string

const (
	OpAdd      Operator = "add"
	OpSubtract Operator = "subtract"
	OpMultiply Operator = "multiply"
)

// Apply computes a op b.
func (o Operator) Apply(a, b int64) (int64, error) {
	x, y := big.NewInt(a), big.NewInt(b)
	r := new(big.Int)
	switch o {
	case OpMultiply:
		r.Mul(x, y)
	case OpSubtract:
		r.Sub(x, y)
	default:
		r.Add(x, y)
	}
	if !r.IsInt64() {
		return 0, fmt.Errorf("%d %s %d: %w", a, o, b, ErrOverflow)
	}
	return r.Int64(), nil
}

// Only single words are supported: no compounds and nothing from 100 up.
var numberWords = map[string]string{
	"zero": "0", "one": "1", "two": "2", "three": "3", "four": "4",
	"five": "5", "six": "6", "seven": "7", "eight": "8", "nine": "9",
	"ten": "10", "eleven": "11", "twelve": "12", "thirteen": "13", "fourteen": "14",
	"fifteen": "15", "sixteen": "16", "seventeen": "17", "eighteen": "18", "nineteen": "19",
	"twenty": "20", "thirty": "30", "forty": "40", "fifty": "50",
	"sixty": "60", "seventy": "70", "eighty": "80", "ninety": "90",
}

var (
	numberWordRE = regexp.MustCompile(`\b(zero|one|two|three|four|five|six|seven|eight|nine|ten|eleven|twelve|thirteen|fourteen|fifteen|sixteen|seventeen|eighteen|nineteen|twenty|thirty|forty|fifty|sixty|seventy|eighty|ninety)\b`)
	digitsRE     = regexp.MustCompile(`\d+`)
	labelRE      = regexp.MustCompile(`\bnumbers?\s*:`)
)

// Problem is a parsed challenge.
type Problem struct {
	Operands []int64
	Op       Operator
}

// Normalize lower-cases text and replaces whole-word number words with digits.
func Normalize(text string) string {
	lower := strings.ToLower(text)
	return numberWordRE.ReplaceAllStringFunc(lower, func(w string) string {
		return numberWords[w]
	})
}

// DetectOperator picks the operator from normalized text. Multiplication wins
// over subtraction, which wins over the addition default.
func DetectOperator(normalized string) Operator {
	switch {
	case strings.Contains(normalized, "*"),
		strings.Contains(normalized, "times"),
		strings.Contains(normalized, " x "):
		return OpMultiply
	case strings.Contains(normalized, "-"),
		strings.Contains(normalized, "minus"):
		return OpSubtract
	default:
		return OpAdd
	}
}

// body drops a "number:" label ("only one number: seven") so the count inside
// the label is not read as an operand. Any other colon is plain text.
func body(normalized string) string {
	m := labelRE.FindAllStringIndex(normalized, -1)
	if len(m) == 0 {
		return normalized
	}
	return normalized[m[len(m)-1][1]:]
}

// Parse extracts the operands, in order of appearance, and the operator.
func Parse(text string) (Problem, error) {
	normalized := body(Normalize(text))

	runs := digitsRE.FindAllString(normalized, -1)
	operands := make([]int64, 0, len(runs))
	for _, r := range runs {
		n, err := strconv.ParseInt(r, 10, 64)
		if err != nil {
			return Problem{}, fmt.Errorf("operand %q: %w", r, err)
		}
		operands = append(operands, n)
	}
	if len(operands) < 2 {
		return Problem{Operands: operands}, ErrInsufficientOperands
	}
	return Problem{Operands: operands, Op: DetectOperator(normalized)}, nil
}

// Result applies the operator to the first two operands. Extra operands are
// ignored.
func (p Problem) Result() (int64, error) {
	return p.Op.Apply(p.Operands[0], p.Operands[1])
}

// FormatAnswer renders n with exactly two fraction digits.
func FormatAnswer(n int64) string {
	return strconv.FormatFloat(float64(n), 'f', 2, 64)
}

// Solve parses text and returns the formatted answer.
func Solve(text string) (string, error) {
	p, err := Parse(text)
	if err != nil {
		return "", err
	}
	n, err := p.Result()
	if err != nil {
		return "", err
	}
	return FormatAnswer(n), nil
}
