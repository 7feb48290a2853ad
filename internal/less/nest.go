package less

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

var (
	// mixinDefRe matches a ruleset usable as a mixin: `.name` or `.name()`.
	// With parentheses the ruleset itself is not emitted.
	mixinDefRe   = regexp.MustCompile(`^([.#][\w-]+)\s*(\(\s*\))?$`)
	parametricRe = regexp.MustCompile(`^[.#][\w-]+\s*\(`)
)

// conditionalAtRules hold rules and bubble out of nested selectors.
var conditionalAtRules = []string{"@media", "@supports", "@container", "@layer", "@document", "@-moz-document", "@scope", "@starting-style"}

// flattenStylesheet expands mixin calls, unnests rules and evaluates
// arithmetic, producing plain CSS.
func flattenStylesheet(src string) (string, error) {
	tree, err := parse(src)
	if err != nil {
		return "", err
	}
	e := &expander{mixins: make(map[string][]*node)}
	if err := e.collect(tree); err != nil {
		return "", err
	}
	tree, err = e.expand(tree, nil)
	if err != nil {
		return "", err
	}
	flat, err := flatten(tree, nil)
	if err != nil {
		return "", err
	}
	return render(flat), nil
}

type expander struct {
	mixins map[string][]*node
}

// collect registers every simple class or id ruleset as a mixin. Rulesets
// sharing a name are all applied, in source order.
func (e *expander) collect(nodes []*node) error {
	for _, n := range nodes {
		if !n.block {
			continue
		}
		if n.kind == ruleNode {
			if m := mixinDefRe.FindStringSubmatch(n.text); m != nil {
				e.mixins[m[1]] = append(e.mixins[m[1]], n)
			} else if parametricRe.MatchString(n.text) {
				return fmt.Errorf("unsupported mixin definition %q: only parameterless mixins are supported", n.text)
			} else if strings.Contains(n.text, " when ") {
				return fmt.Errorf("unsupported guard in %q", n.text)
			}
		}
		if err := e.collect(n.children); err != nil {
			return err
		}
	}
	return nil
}

func (e *expander) expand(nodes []*node, stack []string) ([]*node, error) {
	out := make([]*node, 0, len(nodes))
	for _, n := range nodes {
		switch {
		case n.kind == callNode:
			m := callRe.FindStringSubmatch(n.text)
			name, important := m[1], m[2] != ""
			defs, ok := e.mixins[name]
			if !ok {
				return nil, fmt.Errorf("mixin %s is undefined", name)
			}
			if slices.Contains(stack, name) {
				return nil, fmt.Errorf("recursive mixin call %s", strings.Join(append(slices.Clone(stack), name), " -> "))
			}
			for _, d := range defs {
				body, err := e.expand(d.children, append(slices.Clone(stack), name))
				if err != nil {
					return nil, err
				}
				if important {
					body = markImportant(body)
				}
				out = append(out, body...)
			}
		case n.block:
			children, err := e.expand(n.children, stack)
			if err != nil {
				return nil, err
			}
			out = append(out, &node{kind: n.kind, text: n.text, block: true, children: children})
		default:
			out = append(out, n)
		}
	}
	return out, nil
}

func markImportant(nodes []*node) []*node {
	out := make([]*node, 0, len(nodes))
	for _, n := range nodes {
		switch {
		case n.kind == declNode && !strings.Contains(n.text, "!important"):
			out = append(out, &node{kind: declNode, text: n.text + " !important"})
		case n.block:
			out = append(out, &node{kind: n.kind, text: n.text, block: true, children: markImportant(n.children)})
		default:
			out = append(out, n)
		}
	}
	return out
}

// flatten resolves nested rules against their parent selectors. A rule's own
// declarations come first, followed by its nested rules in source order.
// Conditional at-rules bubble up with the parent selector wrapped inside.
func flatten(nodes []*node, parents []string) ([]*node, error) {
	var decls, out []*node
	for _, n := range nodes {
		switch n.kind {
		case declNode:
			d, err := evalDecl(n.text)
			if err != nil {
				return nil, err
			}
			decls = append(decls, &node{kind: declNode, text: d})
		case ruleNode:
			if m := mixinDefRe.FindStringSubmatch(n.text); m != nil && m[2] != "" {
				continue
			}
			sels := combine(parents, n.text)
			flat, err := flatten(n.children, sels)
			if err != nil {
				return nil, err
			}
			out = append(out, flat...)
		case atNode:
			switch {
			case !n.block:
				out = append(out, n)
			case isConditional(n.text):
				inner, err := flatten(n.children, parents)
				if err != nil {
					return nil, err
				}
				if len(inner) > 0 {
					out = append(out, &node{kind: atNode, text: n.text, block: true, children: inner})
				}
			default:
				raw, err := evalTree(n)
				if err != nil {
					return nil, err
				}
				out = append(out, raw)
			}
		}
	}
	if len(decls) == 0 {
		return out, nil
	}
	if len(parents) == 0 {
		return append(decls, out...), nil
	}
	rule := &node{kind: ruleNode, text: strings.Join(parents, ",\n"), block: true, children: decls}
	return append([]*node{rule}, out...), nil
}

// evalTree evaluates declarations below an at-rule that is emitted as
// written, such as @font-face or @keyframes.
func evalTree(n *node) (*node, error) {
	if !n.block {
		if n.kind != declNode {
			return n, nil
		}
		d, err := evalDecl(n.text)
		if err != nil {
			return nil, err
		}
		return &node{kind: declNode, text: d}, nil
	}
	children := make([]*node, 0, len(n.children))
	for _, c := range n.children {
		ec, err := evalTree(c)
		if err != nil {
			return nil, err
		}
		children = append(children, ec)
	}
	return &node{kind: n.kind, text: n.text, block: true, children: children}, nil
}

func isConditional(prelude string) bool {
	name, _, _ := strings.Cut(prelude, " ")
	name, _, _ = strings.Cut(name, "(")
	return slices.Contains(conditionalAtRules, strings.ToLower(name))
}

// combine joins a nested selector list with its parents. `&` stands for the
// parent selector, so `&__logo` under `.header` yields `.header__logo`;
// selectors without `&` become descendants.
func combine(parents []string, selector string) []string {
	children := splitSelectors(selector)
	if len(parents) == 0 {
		out := make([]string, 0, len(children))
		for _, c := range children {
			out = append(out, strings.TrimSpace(strings.ReplaceAll(c, "&", "")))
		}
		return out
	}
	out := make([]string, 0, len(parents)*len(children))
	for _, p := range parents {
		for _, c := range children {
			if strings.Contains(c, "&") {
				out = append(out, strings.ReplaceAll(c, "&", p))
				continue
			}
			out = append(out, p+" "+c)
		}
	}
	return out
}

// splitSelectors splits a selector list on top-level commas and collapses
// whitespace inside each selector.
func splitSelectors(s string) []string {
	var out []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"', '\'':
			i = skipString(s, i) - 1
		case '(', '[':
			depth++
		case ')', ']':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, strings.Join(strings.Fields(s[start:i]), " "))
				start = i + 1
			}
		}
	}
	return append(out, strings.Join(strings.Fields(s[start:]), " "))
}
