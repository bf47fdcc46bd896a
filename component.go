package ical

import (
	"fmt"
	"io"
)

// ParsedComponent is the untyped BEGIN/END tree produced by the component
// parser (§3, §4.2): a name, its own properties in order, and its child
// components in order. Unknown component and property names are preserved
// verbatim so round-trip survives them.
type ParsedComponent struct {
	Name       string
	Properties []ContentLine
	Children   []*ParsedComponent
}

func (pc *ParsedComponent) property(name string) *ContentLine {
	for i := range pc.Properties {
		if pc.Properties[i].Name == name {
			return &pc.Properties[i]
		}
	}
	return nil
}

func (pc *ParsedComponent) allProperties(name string) []*ContentLine {
	var out []*ContentLine
	for i := range pc.Properties {
		if pc.Properties[i].Name == name {
			out = append(out, &pc.Properties[i])
		}
	}
	return out
}

func (pc *ParsedComponent) childrenNamed(name string) []*ParsedComponent {
	var out []*ParsedComponent
	for _, c := range pc.Children {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

// ParseComponents reads every top-level component (typically a single
// VCALENDAR) out of r, enforcing well-formed BEGIN/END nesting (§4.2).
func ParseComponents(r io.Reader) ([]*ParsedComponent, error) {
	lex := NewLexer(r)
	var top []*ParsedComponent
	var stack []*ParsedComponent

	for {
		cl, err := lex.NextContentLine()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
		switch cl.Name {
		case "BEGIN":
			stack = append(stack, &ParsedComponent{Name: cl.Value})
		case "END":
			if len(stack) == 0 {
				return nil, fmt.Errorf("%w: %w", ErrParse, ErrEmptyStack)
			}
			top1 := stack[len(stack)-1]
			if top1.Name != cl.Value {
				return nil, fmt.Errorf("%w: %w: expected END:%s, got END:%s", ErrParse, ErrMismatchedEnd, top1.Name, cl.Value)
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				top = append(top, top1)
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, top1)
			}
		default:
			if len(stack) == 0 {
				return nil, fmt.Errorf("%w: %w", ErrParse, ErrPropertyNoParent)
			}
			cur := stack[len(stack)-1]
			cur.Properties = append(cur.Properties, *cl)
		}
	}
	if len(stack) != 0 {
		return nil, fmt.Errorf("%w: %w", ErrParse, ErrUnclosedStack)
	}
	return top, nil
}

// SerializeComponent writes a component tree back out, folding lines and
// terminating with CRLF (§4.1 "Emission").
func SerializeComponent(w io.Writer, pc *ParsedComponent) error {
	if err := WriteContentLine(w, ContentLine{Name: "BEGIN", Value: pc.Name}); err != nil {
		return err
	}
	for _, p := range pc.Properties {
		if err := WriteContentLine(w, p); err != nil {
			return err
		}
	}
	for _, c := range pc.Children {
		if err := SerializeComponent(w, c); err != nil {
			return err
		}
	}
	return WriteContentLine(w, ContentLine{Name: "END", Value: pc.Name})
}
