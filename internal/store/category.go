package store

import (
	"strings"
	"unicode"
)

// Category is the closed set of insight classifications.
type Category string

const (
	CategoryFrameworks Category = "Frameworks & Exercises"
	CategoryViewpoints Category = "Points of View"
	CategoryBusiness   Category = "Business Ideas"
	CategoryStories    Category = "Stories & Anecdotes"
	CategoryQuotes     Category = "Quotes"
	CategoryProducts   Category = "Products"
	CategoryTechnical  Category = "Technical Insights"
)

// DefaultCategory is assigned to insights whose label is not recognized.
const DefaultCategory = CategoryBusiness

// Categories lists every recognized category in display order.
func Categories() []Category {
	return []Category{
		CategoryFrameworks,
		CategoryViewpoints,
		CategoryBusiness,
		CategoryStories,
		CategoryQuotes,
		CategoryProducts,
		CategoryTechnical,
	}
}

var categoryIndex = func() map[string]Category {
	idx := make(map[string]Category)
	for _, c := range Categories() {
		idx[categoryKey(string(c))] = c
	}
	// Common model variations.
	idx["frameworks"] = CategoryFrameworks
	idx["exercises"] = CategoryFrameworks
	idx["point of view"] = CategoryViewpoints
	idx["business idea"] = CategoryBusiness
	idx["stories"] = CategoryStories
	idx["anecdotes"] = CategoryStories
	idx["quote"] = CategoryQuotes
	idx["product"] = CategoryProducts
	idx["technical insight"] = CategoryTechnical
	idx["technical"] = CategoryTechnical
	return idx
}()

// Valid reports whether c is in the closed set.
func (c Category) Valid() bool {
	parsed, ok := ParseCategory(string(c))
	return ok && parsed == c
}

// ParseCategory maps a label to a Category. Leading emoji or punctuation and
// letter case are ignored; unrecognized labels map to DefaultCategory and
// report false.
func ParseCategory(label string) (Category, bool) {
	if c, ok := categoryIndex[categoryKey(label)]; ok {
		return c, true
	}
	return DefaultCategory, false
}

func categoryKey(label string) string {
	label = strings.TrimLeftFunc(label, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	label = strings.ReplaceAll(label, " and ", " & ")
	return strings.Join(strings.Fields(strings.ToLower(label)), " ")
}
