package parsers

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/ianaindex"

	"mongogen/internal/etl"
)

// ── XML Parser ──────────────────────────────────────────────
// The root element wraps the table: each of its direct children is one
// record, grouped under the child's tag name.
//
//	<TABLES>
//	  <Customer id="1"><name>Ann</name></Customer>
//	</TABLES>
//
// yields one "Customer" record {id: "1", name: "Ann"}.

const textField = "_text"

type xmlParser struct{}

func init() { etl.RegisterParser(&xmlParser{}) }

func (p *xmlParser) Extensions() []string { return []string{".xml"} }

func (p *xmlParser) Parse(content, fileName string) ([]etl.Record, error) {
	root, err := decodeTree(content)
	if err != nil {
		return nil, &etl.ParseError{File: fileName, Err: fmt.Errorf("parse xml: %w", err)}
	}

	records := make([]etl.Record, 0, len(root.children))
	for _, child := range root.children {
		rec := etl.NewRecord(child.name)
		flatten(child, "", &rec)
		records = append(records, rec)
	}
	return records, nil
}

type xmlNode struct {
	name     string
	attrs    []xml.Attr
	children []*xmlNode
	text     strings.Builder
}

func decodeTree(content string) (*xmlNode, error) {
	dec := xml.NewDecoder(strings.NewReader(content))
	dec.CharsetReader = charsetReader

	var (
		root  *xmlNode
		stack []*xmlNode
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			n := &xmlNode{name: t.Name.Local, attrs: t.Attr}
			if len(stack) == 0 {
				if root != nil {
					return nil, fmt.Errorf("multiple root elements: <%s> after <%s>", n.name, root.name)
				}
				root = n
			} else {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, n)
			}
			stack = append(stack, n)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(t)
			}
		}
	}
	if root == nil {
		return nil, errors.New("no root element")
	}
	return root, nil
}

// flatten writes n's attributes and children into rec. Nested names are
// joined with dots; a later field with the same name replaces an earlier one.
func flatten(n *xmlNode, prefix string, rec *etl.Record) {
	for _, a := range n.attrs {
		if isNamespaceDecl(a) {
			continue
		}
		rec.Set(join(prefix, a.Name.Local), a.Value)
	}
	for _, c := range n.children {
		key := join(prefix, c.name)
		if len(c.attrs) == 0 && len(c.children) == 0 {
			v := c.text.String()
			if strings.TrimSpace(v) == "" {
				v = ""
			}
			rec.Set(key, v)
			continue
		}
		flatten(c, key, rec)
	}
	if text := strings.TrimSpace(n.text.String()); text != "" {
		rec.Set(join(prefix, textField), text)
	}
}

func join(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

func isNamespaceDecl(a xml.Attr) bool {
	return a.Name.Space == "xmlns" || (a.Name.Space == "" && a.Name.Local == "xmlns")
}

// charsetReader decodes documents declaring a non UTF-8 encoding.
// UTF-16 input has already been converted to UTF-8 by the collector.
// Labels unknown to the IANA registry are retried against the WHATWG
// names exporters tend to write (utf8, latin1, ...).
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	lower := strings.ToLower(strings.TrimSpace(label))
	if strings.HasPrefix(lower, "utf-16") || isUTF8Label(lower) {
		return input, nil
	}
	enc, err := ianaindex.IANA.Encoding(label)
	if err != nil || enc == nil {
		enc, err = htmlindex.Get(lower)
		if err != nil {
			return nil, fmt.Errorf("unsupported charset %q: %w", label, err)
		}
	}
	return enc.NewDecoder().Reader(input), nil
}

func isUTF8Label(lower string) bool {
	switch lower {
	case "utf-8", "utf8", "unicode-1-1-utf-8", "x-unicode20utf8":
		return true
	}
	return false
}
