package less

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// lessFuncRe finds LESS-only functions that would otherwise reach the
// output as unknown CSS functions.
var lessFuncRe = regexp.MustCompile(`(?i)(?:^|[^\w-])(darken|lighten|fade|fadein|fadeout|desaturate|spin|tint|shade|percentage|greyscale|luma|escape|e|unit)\(`)

// slashProps use `/` as a value separator, so spaced division stays literal.
var slashProps = []string{"font", "grid", "aspect-ratio", "border-image", "mask", "-webkit-mask", "background", "inset"}

// evalDecl evaluates arithmetic in the value of a `prop: value` declaration.
func evalDecl(text string) (string, error) {
	prop, value, ok := strings.Cut(text, ":")
	if !ok {
		return text, nil
	}
	prop = strings.TrimSpace(prop)
	if strings.HasPrefix(prop, "--") {
		return text, nil
	}
	if m := lessFuncRe.FindStringSubmatch(value); m != nil {
		return "", fmt.Errorf("unsupported function %s() in %q", m[1], prop)
	}
	return prop + ": " + evalValue(value, !slashSeparated(prop)), nil
}

func slashSeparated(prop string) bool {
	prop = strings.ToLower(prop)
	if strings.HasSuffix(prop, "radius") {
		return true
	}
	for _, p := range slashProps {
		if strings.HasPrefix(prop, p) {
			return true
		}
	}
	return false
}

// evalValue folds `a * b`, `a + b`, `a - b` and `a / b` over numbers with
// compatible units. Strings and function arguments are kept verbatim.
// Division always applies inside bare parentheses; outside them only when
// spaced, the divisor is unitless and the property allows it.
func evalValue(value string, divide bool) string {
	return strings.TrimSpace(evalSegment(value, false, divide))
}

func evalSegment(s string, inParens, divide bool) string {
	var b strings.Builder
	var plain strings.Builder
	flush := func() {
		b.WriteString(fold(plain.String(), inParens, divide))
		plain.Reset()
	}
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == '"' || c == '\'':
			j := skipString(s, i)
			plain.WriteString(s[i:j])
			i = j
		case c == '(' && (i == 0 || !isIdent(s[i-1])):
			j := closing(s, i)
			inner := strings.TrimSpace(evalSegment(s[i+1:j], true, divide))
			if _, _, ok := parseNumber(inner); ok {
				plain.WriteString(inner)
			} else {
				plain.WriteString("(" + inner + ")")
			}
			i = min(j+1, len(s))
		case c == '(':
			// Function call: arguments are left alone.
			j := closing(s, i)
			plain.WriteString(s[i:min(j+1, len(s))])
			i = min(j+1, len(s))
		default:
			plain.WriteByte(c)
			i++
		}
	}
	flush()
	return b.String()
}

// closing returns the index of the parenthesis matching the one at i, or
// len(s) when unbalanced.
func closing(s string, i int) int {
	depth := 0
	for j := i; j < len(s); j++ {
		switch s[j] {
		case '"', '\'':
			j = skipString(s, j) - 1
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return j
			}
		}
	}
	return len(s)
}

type tokKind int

const (
	tokOther tokKind = iota
	tokSpace
	tokNum
	tokOp
)

type token struct {
	kind tokKind
	text string
	num  float64
	unit string
}

func tokenize(s string) []token {
	var toks []token
	for i := 0; i < len(s); {
		c := s[i]
		start := i
		switch {
		case c == '"' || c == '\'':
			i = skipString(s, i)
			toks = append(toks, token{kind: tokOther, text: s[start:i]})
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			for i < len(s) && strings.IndexByte(" \t\n\r", s[i]) >= 0 {
				i++
			}
			toks = append(toks, token{kind: tokSpace, text: s[start:i]})
		case isDigit(c) || (c == '.' && i+1 < len(s) && isDigit(s[i+1])) || (c == '-' && signStart(s, i)):
			i++
			for i < len(s) && (isDigit(s[i]) || s[i] == '.') {
				i++
			}
			numEnd := i
			for i < len(s) && (isLetter(s[i]) || s[i] == '%') {
				i++
			}
			v, err := strconv.ParseFloat(s[start:numEnd], 64)
			if err != nil {
				toks = append(toks, token{kind: tokOther, text: s[start:i]})
				continue
			}
			toks = append(toks, token{kind: tokNum, text: s[start:i], num: v, unit: s[numEnd:i]})
		case c == '*' || c == '/' || c == '+' || c == '-':
			i++
			toks = append(toks, token{kind: tokOp, text: s[start:i]})
		case isIdent(c) || c == '#' || c == '!':
			for i < len(s) && (isIdent(s[i]) || s[i] == '#' || s[i] == '!') {
				i++
			}
			if i < len(s) && s[i] == '(' {
				i = min(closing(s, i)+1, len(s))
			}
			toks = append(toks, token{kind: tokOther, text: s[start:i]})
		default:
			i++
			toks = append(toks, token{kind: tokOther, text: s[start:i]})
		}
	}
	return toks
}

// signStart reports whether the '-' at i begins a negative number rather
// than acting as an operator.
func signStart(s string, i int) bool {
	if i+1 >= len(s) || !(isDigit(s[i+1]) || s[i+1] == '.') {
		return false
	}
	return i == 0 || strings.IndexByte(" \t\n(,*/+", s[i-1]) >= 0
}

func fold(s string, inParens, divide bool) string {
	toks := tokenize(s)
	for _, ops := range []string{"*/", "+-"} {
		for i := 0; i < len(toks); {
			if folded, ok := foldAt(toks, i, ops, inParens, divide); ok {
				toks = folded
				continue
			}
			i++
		}
	}
	var b strings.Builder
	for _, t := range toks {
		b.WriteString(t.text)
	}
	return b.String()
}

// foldAt evaluates `num op num` starting at i when the operator is in ops
// and the spacing and units allow it.
func foldAt(toks []token, i int, ops string, inParens, divide bool) ([]token, bool) {
	if toks[i].kind != tokNum {
		return nil, false
	}
	j := i + 1
	spaceBefore := j < len(toks) && toks[j].kind == tokSpace
	if spaceBefore {
		j++
	}
	if j >= len(toks) || toks[j].kind != tokOp || !strings.Contains(ops, toks[j].text) {
		return nil, false
	}
	op := toks[j].text
	k := j + 1
	spaceAfter := k < len(toks) && toks[k].kind == tokSpace
	if spaceAfter {
		k++
	}
	if k >= len(toks) || toks[k].kind != tokNum {
		return nil, false
	}
	a, b := toks[i], toks[k]

	switch op {
	case "-":
		if !inParens && !(spaceBefore && spaceAfter) {
			return nil, false
		}
	case "/":
		if !inParens && !(divide && spaceBefore && spaceAfter && b.unit == "") {
			return nil, false
		}
		if b.num == 0 {
			return nil, false
		}
	}
	unit := a.unit
	switch {
	case a.unit == "":
		unit = b.unit
	case b.unit != "" && !strings.EqualFold(a.unit, b.unit) && op != "*":
		return nil, false
	}

	var v float64
	switch op {
	case "*":
		v = a.num * b.num
	case "/":
		v = a.num / b.num
	case "+":
		v = a.num + b.num
	case "-":
		v = a.num - b.num
	}
	text := formatNumber(v) + unit
	out := append(append(append([]token(nil), toks[:i]...), token{kind: tokNum, text: text, num: v, unit: unit}), toks[k+1:]...)
	return out, true
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(math.Round(v*1e8)/1e8, 'f', -1, 64)
}

// parseNumber reports whether s is a single number with an optional unit.
func parseNumber(s string) (float64, string, bool) {
	toks := tokenize(s)
	if len(toks) != 1 || toks[0].kind != tokNum {
		return 0, "", false
	}
	return toks[0].num, toks[0].unit, true
}

func isDigit(c byte) bool  { return c >= '0' && c <= '9' }
func isLetter(c byte) bool { return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }
