// Package qtyexpr evaluates the small arithmetic language accepted in
// quantity fields: non-negative decimal numbers joined by +, - and a
// multiplication glyph, without parentheses. Multiplication binds tighter
// than addition and subtraction. Results are floored and clamped at zero.
package qtyexpr

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// ErrInvalid is returned for input that is not a well-formed expression.
var ErrInvalid = errors.New("invalid quantity expression")

// maxQty bounds results so they convert to int without overflow.
const maxQty = 1 << 53

// Normalize strips whitespace and maps the accepted multiplication glyphs
// (x, X, ×) to '*'.
func Normalize(input string) string {
	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		switch {
		case unicode.IsSpace(r):
			continue
		case r == 'x' || r == 'X' || r == '×':
			b.WriteByte('*')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// stripSpace removes whitespace but keeps the operator glyphs as typed.
func stripSpace(input string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, input)
}

func isOperator(c byte) bool { return c == '+' || c == '-' || c == '*' }

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// HasOperator reports whether input contains at least one operator glyph.
func HasOperator(input string) bool {
	n := Normalize(input)
	for i := 0; i < len(n); i++ {
		if isOperator(n[i]) {
			return true
		}
	}
	return false
}

// Validate checks the character set and the digit-first/digit-last rule on
// normalized input.
func Validate(normalized string) error {
	if normalized == "" {
		return ErrInvalid
	}
	for i := 0; i < len(normalized); i++ {
		c := normalized[i]
		if !isDigit(c) && !isOperator(c) && c != '.' {
			return ErrInvalid
		}
	}
	if !isDigit(normalized[0]) || !isDigit(normalized[len(normalized)-1]) {
		return ErrInvalid
	}
	return nil
}

// Evaluate parses input and returns its floored, zero-clamped integer value.
func Evaluate(input string) (int, error) {
	n := Normalize(input)
	if err := Validate(n); err != nil {
		return 0, err
	}

	sum := 0.0
	sign := 1.0
	term, pos, err := number(n, 0)
	if err != nil {
		return 0, err
	}
	for pos < len(n) {
		op := n[pos]
		next, end, err := number(n, pos+1)
		if err != nil {
			return 0, err
		}
		switch op {
		case '*':
			term *= next
		case '+':
			sum += sign * term
			sign, term = 1, next
		case '-':
			sum += sign * term
			sign, term = -1, next
		}
		pos = end
	}
	sum += sign * term

	if math.IsNaN(sum) || math.IsInf(sum, 0) {
		return 0, ErrInvalid
	}
	v := math.Floor(sum)
	if v < 0 {
		return 0, nil
	}
	if v > maxQty {
		return 0, ErrInvalid
	}
	return int(v), nil
}

// number reads the decimal literal starting at pos.
func number(s string, pos int) (float64, int, error) {
	end := pos
	for end < len(s) && (isDigit(s[end]) || s[end] == '.') {
		end++
	}
	if end == pos {
		return 0, pos, ErrInvalid
	}
	v, err := strconv.ParseFloat(s[pos:end], 64)
	if err != nil {
		return 0, pos, ErrInvalid
	}
	return v, end, nil
}

// Preview returns the live value shown while typing. It only yields a value
// when an operator is present and the input evaluates.
func Preview(input string) (int, bool) {
	if !HasOperator(input) {
		return 0, false
	}
	v, err := Evaluate(input)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Committed is the outcome of committing a quantity field.
type Committed struct {
	Qty int
	// Formula is "<expression>=<result>" for expressions, empty otherwise.
	Formula string
}

// Commit resolves the field value on blur or confirm. Empty or unparsable
// input resets the quantity to zero and clears the formula.
func Commit(input string) Committed {
	v, err := Evaluate(input)
	if err != nil {
		return Committed{}
	}
	if !HasOperator(input) {
		return Committed{Qty: v}
	}
	return Committed{Qty: v, Formula: stripSpace(input) + "=" + strconv.Itoa(v)}
}

// CheckFormula verifies that a recorded "<expression>=<result>" annotation
// matches qty and that the expression evaluates to the recorded result.
func CheckFormula(formula string, qty int) error {
	if formula == "" {
		return nil
	}
	i := strings.LastIndexByte(formula, '=')
	if i <= 0 || i == len(formula)-1 {
		return ErrInvalid
	}
	recorded, err := strconv.Atoi(formula[i+1:])
	if err != nil {
		return ErrInvalid
	}
	got, err := Evaluate(formula[:i])
	if err != nil {
		return err
	}
	if got != recorded || recorded != qty {
		return ErrInvalid
	}
	return nil
}
