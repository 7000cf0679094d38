// Package rag turns retrieved products into the plain-text context handed to
// the response generator, and parses that text back into records.
package rag

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nidhogg/makers-assistant/internal/catalog"
	"github.com/nidhogg/makers-assistant/internal/vectorstore"
)

const (
	labelName        = "Name"
	labelBrand       = "Brand"
	labelCategory    = "Category"
	labelDescription = "Description"
	labelPrice       = "Price"
	labelStock       = "Stock"
)

// Assemble renders matches as one line per product, in input order.
func Assemble(matches []vectorstore.Match) string {
	if len(matches) == 0 {
		return ""
	}
	lines := make([]string, len(matches))
	for i, m := range matches {
		lines[i] = Line(m.Product)
	}
	return strings.Join(lines, "\n")
}

// Line renders a single product as a context line.
func Line(p catalog.Product) string {
	return fmt.Sprintf("%s: %s, %s: %s, %s: %s, %s: %s, %s: $%s, %s: %d",
		labelName, flatten(p.Name),
		labelBrand, flatten(p.Brand),
		labelCategory, flatten(p.Category),
		labelDescription, flatten(p.Description),
		labelPrice, formatPrice(p.Price),
		labelStock, p.Stock)
}

// DocumentText is the text embedded for a product.
func DocumentText(p catalog.Product) string {
	return fmt.Sprintf("%s by %s. %s. Price: $%s. Category: %s",
		p.Name, p.Brand, p.Description, formatPrice(p.Price), p.Category)
}

func formatPrice(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}

func flatten(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	return strings.NewReplacer("\n", " ", "\r", " ").Replace(s)
}

// ProductFields is a record recovered from a context line. Price and Stock
// are nil when the line did not carry a parseable value.
type ProductFields struct {
	Name        string
	Brand       string
	Category    string
	Description string
	Price       *float64
	Stock       *int
}

// ParseError reports a context line that could not be read as a product.
type ParseError struct {
	Line   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse context line %q: %s", e.Line, e.Reason)
}

// ParseLine reads one context line. Labels are matched in the order Line
// writes them: Price and Stock from the end, Brand, Category and Description
// from the start, so the description may contain anything, including text
// that looks like a label. A line must start with its Name.
func ParseLine(line string) (ProductFields, error) {
	var f ProductFields
	rest, ok := strings.CutPrefix(strings.TrimSpace(line), labelName+":")
	if !ok {
		return f, &ParseError{Line: line, Reason: "missing Name"}
	}

	values := make(map[string]string, 6)
	for _, l := range []string{labelStock, labelPrice} {
		if i := strings.LastIndex(rest, marker(l)); i >= 0 {
			values[l] = rest[i+len(marker(l)):]
			rest = rest[:i]
		}
	}
	current := labelName
	for _, l := range []string{labelBrand, labelCategory, labelDescription} {
		if i := strings.Index(rest, marker(l)); i >= 0 {
			values[current] = rest[:i]
			rest = rest[i+len(marker(l)):]
			current = l
		}
	}
	values[current] = rest

	f.Name = strings.TrimSpace(values[labelName])
	if f.Name == "" {
		return f, &ParseError{Line: line, Reason: "missing Name"}
	}
	f.Brand = strings.TrimSpace(values[labelBrand])
	f.Category = strings.TrimSpace(values[labelCategory])
	f.Description = strings.TrimSpace(values[labelDescription])
	if raw, ok := values[labelPrice]; ok {
		if p, err := strconv.ParseFloat(strings.TrimPrefix(strings.TrimSpace(raw), "$"), 64); err == nil {
			f.Price = &p
		}
	}
	if raw, ok := values[labelStock]; ok {
		if s, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil {
			f.Stock = &s
		}
	}
	return f, nil
}

func marker(label string) string {
	return ", " + label + ": "
}

// ParseContext parses every line of an assembled context, skipping lines
// that are not product records.
func ParseContext(text string) []ProductFields {
	var out []ProductFields
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		f, err := ParseLine(line)
		if err != nil {
			continue
		}
		out = append(out, f)
	}
	return out
}
