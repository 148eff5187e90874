package extract

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"
)

// ErrNotText is returned when the input is binary data rather than text.
var ErrNotText = errors.New("input is not text")

// ErrTrailingLabel is returned under TrailingFail when a configured label is
// the last paragraph of the document and has no value after it.
var ErrTrailingLabel = errors.New("label has no value paragraph")

// Field is one label bound to the paragraph that followed it.
type Field struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Fields parses input as HTML and pairs configured labels with the paragraph
// that follows each of them. Fields are returned in order of first label
// occurrence in the document, not in configuration order.
func Fields(input []byte, labels LabelSet, policy TrailingPolicy) ([]Field, error) {
	texts, err := Paragraphs(input)
	if err != nil {
		return nil, err
	}
	return Pair(texts, labels, policy)
}

// ExtractValues is Fields without the labels: a bare ordered sequence of
// values, empty when no configured label is present.
func ExtractValues(input []byte, labels LabelSet, policy TrailingPolicy) ([]string, error) {
	fields, err := Fields(input, labels, policy)
	if err != nil {
		return nil, err
	}
	return Values(fields), nil
}

// Values drops the labels and keeps the field order.
func Values(fields []Field) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, f.Value)
	}
	return out
}

// Paragraphs returns the trimmed text content of every <p> element in
// document order. Parsing is lenient: malformed markup yields whatever the
// parser recovers, never an error. Only input that is not text fails.
func Paragraphs(input []byte) ([]string, error) {
	doc, err := parseText(input)
	if err != nil {
		return nil, err
	}
	var texts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && strings.EqualFold(n.Data, "p") {
			var b strings.Builder
			collectText(&b, n)
			texts = append(texts, strings.TrimSpace(b.String()))
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return texts, nil
}

// Pair binds each label found in texts to the entry right after it. Every
// index is scanned, so a value that happens to equal a label is also read as
// a label. A repeated label keeps its first position and takes the last value.
func Pair(texts []string, labels LabelSet, policy TrailingPolicy) ([]Field, error) {
	fields := make([]Field, 0, labels.Len())
	pos := make(map[string]int, labels.Len())
	for i, t := range texts {
		if !labels.Has(t) {
			continue
		}
		if i+1 >= len(texts) {
			if policy == TrailingFail {
				return nil, fmt.Errorf("%w: %q", ErrTrailingLabel, t)
			}
			continue
		}
		v := texts[i+1]
		if j, ok := pos[t]; ok {
			fields[j].Value = v
			continue
		}
		pos[t] = len(fields)
		fields = append(fields, Field{Label: t, Value: v})
	}
	return fields, nil
}

// parseText decodes input to UTF-8 and parses it. The encoding comes from a
// BOM, a <meta> declaration, or UTF-8 detection, falling back to
// windows-1252 the way browsers do. Only binary input is rejected.
func parseText(input []byte) (*html.Node, error) {
	if bytes.IndexByte(input, 0) >= 0 {
		return nil, ErrNotText
	}
	enc, _, _ := charset.DetermineEncoding(input, "text/html")
	doc, err := html.Parse(transform.NewReader(bytes.NewReader(input), decoderFor(enc)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotText, err)
	}
	return doc, nil
}

func decoderFor(enc encoding.Encoding) transform.Transformer {
	if enc == nil {
		return encoding.Nop.NewDecoder()
	}
	return enc.NewDecoder()
}

// collectText appends every text node under n, each trimmed, skipping
// whitespace-only nodes. Indented markup like "<span>Monto</span>\n<span>USD</span>"
// reads as "MontoUSD".
func collectText(b *strings.Builder, n *html.Node) {
	if n.Type == html.TextNode {
		b.WriteString(strings.TrimSpace(n.Data))
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(b, c)
	}
}
