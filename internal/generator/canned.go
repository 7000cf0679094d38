package generator

import (
	"strings"
	"unicode"
)

type cannedRule struct {
	keywords []string
	// whole-word matching; "hi" must not fire inside "this" or "which".
	tokens bool
	reply  string
}

var cannedRules = []cannedRule{
	{
		keywords: []string{"laptop", "computer"},
		reply:    "I'd be happy to help you find a laptop! We have various computers available. Could you tell me more about what you'll be using it for? Gaming, work, programming, or general use?",
	},
	{
		keywords: []string{"phone", "mobile"},
		reply:    "Looking for a new phone? Great! We have smartphones from various brands. Are you looking for something specific like camera quality, battery life, or budget range?",
	},
	{
		keywords: []string{"tablet"},
		reply:    "Tablets are great for productivity and entertainment! Are you looking for something for work, drawing, reading, or general use?",
	},
	{
		keywords: []string{"price", "cheap", "budget"},
		reply:    "I understand you're looking for budget-friendly options! What type of product are you interested in, and what's your budget range?",
	},
	{
		keywords: []string{"hello", "hi", "hey"},
		tokens:   true,
		reply:    "Hello! Welcome to Makers Tech! I'm here to help you find the perfect tech products. What can I help you with today?",
	},
}

const cannedDefault = "I'm here to help you find the perfect tech products! You can ask me about laptops, phones, tablets, or any specific features you're looking for. What interests you today?"

func canned(question string) string {
	q := strings.ToLower(question)
	words := strings.FieldsFunc(q, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, rule := range cannedRules {
		if rule.tokens {
			if hasWord(words, rule.keywords) {
				return rule.reply
			}
			continue
		}
		if containsAny(q, rule.keywords) {
			return rule.reply
		}
	}
	return cannedDefault
}

func hasWord(words, keywords []string) bool {
	for _, w := range words {
		for _, k := range keywords {
			if w == k {
				return true
			}
		}
	}
	return false
}
