package browser

import (
	"fmt"
	"strings"
)

// Kind names how a Strategy value is interpreted
type Kind string

const (
	ByID    Kind = "id"
	ByName  Kind = "name"
	ByXPath Kind = "xpath"
	ByCSS   Kind = "css"
	ByClass Kind = "class"
	ByTag   Kind = "tag"
)

// Strategy describes one way of finding an element
type Strategy struct {
	Kind  Kind
	Value string
}

// ID returns a strategy matching the id attribute
func ID(v string) Strategy { return Strategy{Kind: ByID, Value: v} }

// Name returns a strategy matching the name attribute
func Name(v string) Strategy { return Strategy{Kind: ByName, Value: v} }

// XPath returns a strategy evaluating a path expression
func XPath(v string) Strategy { return Strategy{Kind: ByXPath, Value: v} }

// CSS returns a strategy evaluating a CSS selector
func CSS(v string) Strategy { return Strategy{Kind: ByCSS, Value: v} }

// Class returns a strategy matching a single class name
func Class(v string) Strategy { return Strategy{Kind: ByClass, Value: v} }

// Tag returns a strategy matching a tag name
func Tag(v string) Strategy { return Strategy{Kind: ByTag, Value: v} }

func (s Strategy) String() string {
	return string(s.Kind) + "=" + s.Value
}

// Selector converts every non-XPath strategy into a CSS selector.
func (s Strategy) Selector() (string, error) {
	value := strings.TrimSpace(s.Value)
	if value == "" {
		return "", fmt.Errorf("empty %s strategy", s.Kind)
	}

	switch s.Kind {
	case ByID:
		return `[id="` + cssEscape(value) + `"]`, nil
	case ByName:
		return `[name="` + cssEscape(value) + `"]`, nil
	case ByClass:
		if strings.ContainsAny(value, " \t\n") {
			return "", fmt.Errorf("compound class name %q not permitted", value)
		}
		return `[class~="` + cssEscape(value) + `"]`, nil
	case ByTag, ByCSS:
		return value, nil
	case ByXPath:
		return "", fmt.Errorf("xpath strategy %q has no CSS form", value)
	default:
		return "", fmt.Errorf("unknown strategy kind %q", s.Kind)
	}
}

// ScopedXPath rewrites a document-wide expression ("//div") so it is
// evaluated relative to the context element (".//div").
func ScopedXPath(expr string) string {
	expr = strings.TrimSpace(expr)
	if strings.HasPrefix(expr, "//") {
		return "." + expr
	}
	return expr
}

func cssEscape(v string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(v)
}
