package less

import (
	"fmt"
	"regexp"
	"strings"
)

type nodeKind int

const (
	declNode nodeKind = iota
	ruleNode
	atNode
	callNode
)

// node is one statement of a stylesheet. Rules and block at-rules carry
// children; declarations, statement at-rules and mixin calls do not.
type node struct {
	kind     nodeKind
	text     string
	block    bool
	children []*node
}

// callRe matches a parameterless mixin call such as `.clearfix;` or
// `.visually-hidden() !important;`.
var callRe = regexp.MustCompile(`^([.#][\w-]+)\s*(?:\(\s*\))?\s*(!important)?$`)

type parser struct {
	src string
	pos int
}

// parse builds the statement tree of src. Block comments are dropped.
func parse(src string) ([]*node, error) {
	p := &parser{src: src}
	return p.block(false)
}

func (p *parser) block(nested bool) ([]*node, error) {
	var out []*node
	for {
		text, term := p.until()
		text = strings.TrimSpace(text)
		switch term {
		case '{':
			if text == "" {
				return nil, fmt.Errorf("block without selector at offset %d", p.pos)
			}
			children, err := p.block(true)
			if err != nil {
				return nil, err
			}
			kind := ruleNode
			if strings.HasPrefix(text, "@") {
				kind = atNode
			}
			out = append(out, &node{kind: kind, text: text, block: true, children: children})
			continue
		case '}':
			if !nested {
				return nil, fmt.Errorf("unexpected } at offset %d", p.pos)
			}
		case 0:
			if nested {
				return nil, fmt.Errorf("unclosed block at end of input")
			}
		}

		if text != "" {
			n, err := statement(text)
			if err != nil {
				return nil, err
			}
			out = append(out, n)
		}
		if term != ';' {
			return out, nil
		}
	}
}

// until scans to the next ';', '{' or '}' outside strings, comments,
// parentheses and url() arguments. A zero terminator means end of input.
func (p *parser) until() (string, byte) {
	var b strings.Builder
	depth := 0
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case c == '"' || c == '\'':
			j := skipString(p.src, p.pos)
			b.WriteString(p.src[p.pos:j])
			p.pos = j
		case strings.HasPrefix(p.src[p.pos:], "/*"):
			j := strings.Index(p.src[p.pos+2:], "*/")
			if j < 0 {
				p.pos = len(p.src)
				continue
			}
			p.pos += j + 4
			b.WriteByte(' ')
		case hasURLPrefix(p.src, p.pos):
			j := skipURL(p.src, p.pos)
			b.WriteString(p.src[p.pos:j])
			p.pos = j
		case c == '(':
			depth++
			b.WriteByte(c)
			p.pos++
		case c == ')':
			if depth > 0 {
				depth--
			}
			b.WriteByte(c)
			p.pos++
		case depth == 0 && (c == ';' || c == '{' || c == '}'):
			p.pos++
			return b.String(), c
		default:
			b.WriteByte(c)
			p.pos++
		}
	}
	return b.String(), 0
}

func statement(text string) (*node, error) {
	switch {
	case strings.HasPrefix(text, "@"):
		return &node{kind: atNode, text: text}, nil
	case strings.HasPrefix(text, ".") || strings.HasPrefix(text, "#"):
		if !callRe.MatchString(text) {
			return nil, fmt.Errorf("unsupported mixin call %q: only parameterless mixins are supported", text)
		}
		return &node{kind: callNode, text: text}, nil
	default:
		return &node{kind: declNode, text: text}, nil
	}
}

// render serializes a flattened tree as indented CSS.
func render(nodes []*node) string {
	var b strings.Builder
	writeNodes(&b, nodes, "")
	return b.String()
}

func writeNodes(b *strings.Builder, nodes []*node, indent string) {
	for _, n := range nodes {
		if n.block {
			fmt.Fprintf(b, "%s%s {\n", indent, n.text)
			writeNodes(b, n.children, indent+"  ")
			fmt.Fprintf(b, "%s}\n", indent)
			continue
		}
		fmt.Fprintf(b, "%s%s;\n", indent, n.text)
	}
}
