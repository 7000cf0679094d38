package generator

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/nidhogg/makers-assistant/internal/rag"
)

const clarifyingPrompt = "I don't have specific product information that matches your question right now. " +
	"Could you tell me more about what you're looking for? For example, are you interested in laptops, phones, tablets, or other tech products?"

const closingInvitation = "Would you like more details about any of these products, or are you looking for something specific?"

// Family maps question keywords to a category filter.
type Family struct {
	Label    string
	Keywords []string
	// Category is matched as a case-insensitive substring of a record's category.
	Category string
}

// Policy decides which records the template tier recommends.
// Families are tried in order; the first one whose keywords hit and whose
// filtered subset is non-empty wins.
type Policy struct {
	Families       []Family
	BudgetKeywords []string
	BudgetLabel    string
	DefaultLabel   string
	Limit          int
}

// DefaultPolicy returns the laptop, phone, tablet, budget ordering with
// English and Spanish keywords.
func DefaultPolicy() Policy {
	return Policy{
		Families: []Family{
			{Label: "laptop", Keywords: []string{"laptop", "computer", "portátil"}, Category: "computer"},
			{Label: "phone", Keywords: []string{"phone", "mobile", "móvil", "teléfono", "celular"}, Category: "phone"},
			{Label: "tablet", Keywords: []string{"tablet"}, Category: "tablet"},
		},
		BudgetKeywords: []string{"price", "cheap", "budget", "precio", "barato", "económico"},
		BudgetLabel:    "budget-friendly",
		DefaultLabel:   "recommended",
		Limit:          3,
	}
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

// Select returns the records to recommend and the label describing them.
func (p Policy) Select(records []rag.ProductFields, question string) ([]rag.ProductFields, string) {
	q := strings.ToLower(question)
	for _, f := range p.Families {
		if !containsAny(q, f.Keywords) {
			continue
		}
		var subset []rag.ProductFields
		for _, r := range records {
			if strings.Contains(strings.ToLower(r.Category), f.Category) {
				subset = append(subset, r)
			}
		}
		if len(subset) > 0 {
			return subset, f.Label
		}
	}

	if containsAny(q, p.BudgetKeywords) {
		sorted := append([]rag.ProductFields(nil), records...)
		sort.SliceStable(sorted, func(i, j int) bool {
			return priceOf(sorted[i]) < priceOf(sorted[j])
		})
		return head(sorted, p.Limit), p.BudgetLabel
	}
	return head(records, p.Limit), p.DefaultLabel
}

func priceOf(r rag.ProductFields) float64 {
	if r.Price == nil {
		return 0
	}
	return *r.Price
}

func head(records []rag.ProductFields, n int) []rag.ProductFields {
	if n > 0 && len(records) > n {
		return records[:n]
	}
	return records
}

func (g *Generator) recommend(productContext, question string) string {
	records := rag.ParseContext(productContext)
	if len(records) == 0 {
		return clarifyingPrompt
	}
	selected, label := g.policy.Select(records, question)
	return formatRecommendations(selected, label)
}

func formatRecommendations(records []rag.ProductFields, label string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Great! I found some %s options for you:\n\n", label)
	for i, r := range records {
		brand := r.Brand
		if brand == "" {
			brand = "Unknown Brand"
		}
		fmt.Fprintf(&b, "%d. **%s** by %s\n", i+1, r.Name, brand)
		if p := priceOf(r); p != 0 {
			fmt.Fprintf(&b, "   💰 Price: $%s\n", strconv.FormatFloat(p, 'f', -1, 64))
		}
		if r.Description != "" {
			fmt.Fprintf(&b, "   📝 %s\n", r.Description)
		}
		if r.Category != "" {
			fmt.Fprintf(&b, "   🏷️ Category: %s\n", r.Category)
		}
		b.WriteString("\n")
	}
	b.WriteString(closingInvitation)
	return b.String()
}
