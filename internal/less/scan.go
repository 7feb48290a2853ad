package less

import (
	"fmt"
	"strings"
)

// StripLineComments removes `//` comments. Strings, block comments and url()
// arguments are copied verbatim so protocol-relative URLs survive.
func StripLineComments(src string) string {
	var b strings.Builder
	b.Grow(len(src))
	for i := 0; i < len(src); {
		c := src[i]
		switch {
		case c == '"' || c == '\'':
			j := skipString(src, i)
			b.WriteString(src[i:j])
			i = j
		case strings.HasPrefix(src[i:], "/*"):
			j := strings.Index(src[i+2:], "*/")
			if j < 0 {
				b.WriteString(src[i:])
				return b.String()
			}
			b.WriteString(src[i : i+2+j+2])
			i += 2 + j + 2
		case hasURLPrefix(src, i):
			j := skipURL(src, i)
			b.WriteString(src[i:j])
			i = j
		case strings.HasPrefix(src[i:], "//"):
			j := strings.IndexByte(src[i:], '\n')
			if j < 0 {
				return b.String()
			}
			i += j
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String()
}

// resolveVariables removes variable declarations and substitutes their uses.
func resolveVariables(src string) (string, error) {
	decls := make(map[string]string)
	for _, m := range declRe.FindAllStringSubmatch(src, -1) {
		decls[m[2]] = m[3]
	}
	body := declRe.ReplaceAllString(src, "$1")

	r := &resolver{decls: decls, resolved: make(map[string]string), active: make(map[string]bool)}
	return r.substitute(body)
}

type resolver struct {
	decls    map[string]string
	resolved map[string]string
	active   map[string]bool
}

func (r *resolver) value(name string) (string, error) {
	if v, ok := r.resolved[name]; ok {
		return v, nil
	}
	raw, ok := r.decls[name]
	if !ok {
		return "", fmt.Errorf("variable @%s is undefined", name)
	}
	if r.active[name] {
		return "", fmt.Errorf("recursive variable definition for @%s", name)
	}
	r.active[name] = true
	defer delete(r.active, name)

	v, err := r.substitute(raw)
	if err != nil {
		return "", err
	}
	r.resolved[name] = v
	return v, nil
}

// substitute replaces @name and @{name} outside strings, and @{name} inside
// strings. `~"x"` escapes unwrap to x.
func (r *resolver) substitute(src string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(src); {
		c := src[i]
		switch {
		case c == '~' && i+1 < len(src) && (src[i+1] == '"' || src[i+1] == '\''):
			j := skipString(src, i+1)
			inner, err := r.interpolate(src[i+2 : max(i+2, j-1)])
			if err != nil {
				return "", err
			}
			b.WriteString(inner)
			i = j
		case c == '"' || c == '\'':
			j := skipString(src, i)
			s, err := r.interpolate(src[i:j])
			if err != nil {
				return "", err
			}
			b.WriteString(s)
			i = j
		case strings.HasPrefix(src[i:], "/*"):
			j := strings.Index(src[i+2:], "*/")
			if j < 0 {
				b.WriteString(src[i:])
				return b.String(), nil
			}
			b.WriteString(src[i : i+2+j+2])
			i += 2 + j + 2
		case c == '@' && i+1 < len(src) && src[i+1] == '{':
			end := strings.IndexByte(src[i:], '}')
			if end < 0 {
				return "", fmt.Errorf("unterminated interpolation")
			}
			v, err := r.value(src[i+2 : i+end])
			if err != nil {
				return "", err
			}
			b.WriteString(v)
			i += end + 1
		case c == '@':
			j := i + 1
			for j < len(src) && isIdent(src[j]) {
				j++
			}
			name := src[i+1 : j]
			if name == "" || atRules[strings.ToLower(name)] {
				b.WriteString(src[i:j])
				i = j
				continue
			}
			v, err := r.value(name)
			if err != nil {
				return "", err
			}
			b.WriteString(v)
			i = j
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String(), nil
}

func (r *resolver) interpolate(s string) (string, error) {
	if !strings.Contains(s, "@{") {
		return s, nil
	}
	var b strings.Builder
	for {
		start := strings.Index(s, "@{")
		if start < 0 {
			b.WriteString(s)
			return b.String(), nil
		}
		end := strings.IndexByte(s[start:], '}')
		if end < 0 {
			b.WriteString(s)
			return b.String(), nil
		}
		v, err := r.value(s[start+2 : start+end])
		if err != nil {
			return "", err
		}
		b.WriteString(s[:start])
		b.WriteString(strings.Trim(v, `"'`))
		s = s[start+end+1:]
	}
}

func isIdent(c byte) bool {
	return c == '-' || c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// skipString returns the index just past the quoted string starting at i.
func skipString(src string, i int) int {
	q := src[i]
	for j := i + 1; j < len(src); j++ {
		switch src[j] {
		case '\\':
			j++
		case q, '\n':
			return j + 1
		}
	}
	return len(src)
}

func hasURLPrefix(src string, i int) bool {
	return len(src)-i >= 4 && strings.EqualFold(src[i:i+4], "url(") && (i == 0 || !isIdent(src[i-1]))
}

func skipURL(src string, i int) int {
	j := strings.IndexByte(src[i:], ')')
	if j < 0 {
		return len(src)
	}
	return i + j + 1
}
