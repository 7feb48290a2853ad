package taskgraph

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Format selects a Visualize output format.
type Format string

const (
	FormatText    Format = "text"
	FormatMermaid Format = "mermaid"
	FormatDOT     Format = "dot"
	FormatJSON    Format = "json"
)

// Formats lists the supported visualization formats.
func Formats() []Format { return []Format{FormatText, FormatMermaid, FormatDOT, FormatJSON} }

// Visualize renders g grouped by execution level.
func Visualize(g *Graph, title string, format Format) (string, error) {
	levels, err := g.Levels()
	if err != nil {
		return "", err
	}
	switch format {
	case FormatText:
		return visualizeText(g, title, levels), nil
	case FormatMermaid:
		return visualizeMermaid(g, levels), nil
	case FormatDOT:
		return visualizeDOT(g, title, levels), nil
	case FormatJSON:
		return visualizeJSON(g, title, levels)
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

func visualizeText(g *Graph, title string, levels [][]StageName) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\n%s\n\n", title, strings.Repeat("=", len(title)))
	for i, level := range levels {
		fmt.Fprintf(&sb, "┌─ Level %d\n", i+1)
		for j, name := range level {
			prefix := "├──"
			if j == len(level)-1 {
				prefix = "└──"
			}
			fmt.Fprintf(&sb, "│ %s [%s]", prefix, name)
			if deps := g.Deps(name); len(deps) > 0 {
				fmt.Fprintf(&sb, " after %s", joinNames(deps, ", "))
			}
			sb.WriteString("\n")
		}
		if i < len(levels)-1 {
			sb.WriteString("↓\n")
		}
	}
	fmt.Fprintf(&sb, "\nTotal: %d stages across %d levels\n", g.Len(), len(levels))
	return sb.String()
}

func mermaidID(name StageName) string {
	return strings.NewReplacer("_", "", "-", "").Replace(string(name))
}

func visualizeMermaid(g *Graph, levels [][]StageName) string {
	var sb strings.Builder
	sb.WriteString("```mermaid\ngraph TD\n")
	for i, level := range levels {
		fmt.Fprintf(&sb, "    subgraph level%d[\"Level %d\"]\n", i+1, i+1)
		for _, name := range level {
			fmt.Fprintf(&sb, "        %s[\"%s\"]\n", mermaidID(name), name)
		}
		sb.WriteString("    end\n")
	}
	sb.WriteString("\n")
	for _, level := range levels {
		for _, name := range level {
			for _, dep := range g.Deps(name) {
				fmt.Fprintf(&sb, "    %s --> %s\n", mermaidID(dep), mermaidID(name))
			}
		}
	}
	sb.WriteString("```\n")
	return sb.String()
}

func visualizeDOT(g *Graph, title string, levels [][]StageName) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "digraph %q {\n", title)
	sb.WriteString("    rankdir=TB;\n")
	sb.WriteString("    node [shape=box, style=rounded];\n\n")
	for i, level := range levels {
		sb.WriteString("    { rank=same;")
		for _, name := range level {
			fmt.Fprintf(&sb, " %q;", name)
		}
		fmt.Fprintf(&sb, " } // level %d\n", i+1)
	}
	sb.WriteString("\n")
	for _, level := range levels {
		for _, name := range level {
			for _, dep := range g.Deps(name) {
				fmt.Fprintf(&sb, "    %q -> %q;\n", dep, name)
			}
		}
	}
	sb.WriteString("}\n")
	return sb.String()
}

type jsonStage struct {
	Name  StageName   `json:"name"`
	Level int         `json:"level"`
	After []StageName `json:"after,omitempty"`
}

func visualizeJSON(g *Graph, title string, levels [][]StageName) (string, error) {
	out := struct {
		Flow   string      `json:"flow"`
		Stages []jsonStage `json:"stages"`
	}{Flow: title}
	for i, level := range levels {
		for _, name := range level {
			out.Stages = append(out.Stages, jsonStage{Name: name, Level: i + 1, After: g.Deps(name)})
		}
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data) + "\n", nil
}

func joinNames(names []StageName, sep string) string {
	s := make([]string, len(names))
	for i, n := range names {
		s[i] = string(n)
	}
	return strings.Join(s, sep)
}
