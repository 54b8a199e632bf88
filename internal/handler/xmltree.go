package handler

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

// element is a namespace-free XML tree node. NFe documents put every element
// in the portalfiscal namespace, so local names are enough to address them.
type element struct {
	name     string
	attrs    map[string]string
	text     string
	children []*element
}

func parseTree(data []byte) (*element, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = charsetReader

	var stack []*element
	var root *element
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			el := &element{name: t.Name.Local}
			if len(t.Attr) > 0 {
				el.attrs = make(map[string]string, len(t.Attr))
				for _, a := range t.Attr {
					el.attrs[a.Name.Local] = a.Value
				}
			}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, el)
			} else if root == nil {
				root = el
			}
			stack = append(stack, el)
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text += string(t)
			}
		}
	}
	if root == nil {
		return nil, errors.New("xml syntax error: no root element")
	}
	return root, nil
}

func charsetReader(label string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(label) {
	case "iso-8859-1", "latin1", "latin-1":
		return charmap.ISO8859_1.NewDecoder().Reader(input), nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252.NewDecoder().Reader(input), nil
	default:
		return nil, fmt.Errorf("unsupported xml charset %q", label)
	}
}

func (e *element) child(name string) *element {
	if e == nil {
		return nil
	}
	for _, c := range e.children {
		if c.name == name {
			return c
		}
	}
	return nil
}

// find descends through names; nil if any step is missing.
func (e *element) find(names ...string) *element {
	cur := e
	for _, n := range names {
		cur = cur.child(n)
		if cur == nil {
			return nil
		}
	}
	return cur
}

func (e *element) all(name string) []*element {
	if e == nil {
		return nil
	}
	var out []*element
	for _, c := range e.children {
		if c.name == name {
			out = append(out, c)
		}
	}
	return out
}

// firstChild returns the first element child. Tax groups wrap their values
// in a block whose name depends on the tax situation (ICMS00, ICMSSN102,
// PISAliq, ...), so the block is addressed by position.
func (e *element) firstChild() *element {
	if e == nil || len(e.children) == 0 {
		return nil
	}
	return e.children[0]
}

func (e *element) value(names ...string) string {
	el := e.find(names...)
	if el == nil {
		return ""
	}
	return strings.TrimSpace(el.text)
}

// firstValue returns the first non-empty value among alternative child names.
func (e *element) firstValue(names ...string) string {
	for _, n := range names {
		if v := e.value(n); v != "" {
			return v
		}
	}
	return ""
}

func (e *element) attr(name string) string {
	if e == nil {
		return ""
	}
	return e.attrs[name]
}
