package constants

import (
	"strings"
)

// Category is the top level of the closed document taxonomy.
type Category string

const (
	Legal          Category = "Legal"
	Financial      Category = "Financial"
	Medical        Category = "Medical"
	Correspondence Category = "Correspondence"
	Identity       Category = "Identity"
	Property       Category = "Property"
	Photo          Category = "Photo"
	Other          Category = "Other"
)

var allCategories = []Category{
	Legal,
	Financial,
	Medical,
	Correspondence,
	Identity,
	Property,
	Photo,
	Other,
}

// Subcategories per category. "General" is always valid.
var subcategories = map[Category][]string{
	Legal:          {"Trust", "Will", "Contract", "CourtFiling", "PowerOfAttorney", "General"},
	Financial:      {"TaxReturn", "BankStatement", "Invoice", "Insurance", "Deed", "General"},
	Medical:        {"Record", "LabResult", "Prescription", "Billing", "General"},
	Correspondence: {"Letter", "Email", "Postcard", "General"},
	Identity:       {"Passport", "License", "Certificate", "Immigration", "General"},
	Property:       {"Deed", "Appraisal", "Mortgage", "General"},
	Photo:          {"Scan", "Album", "General"},
	Other:          {"General"},
}

func CategoriesAsStrings() []string {
	result := make([]string, len(allCategories))
	for i, cat := range allCategories {
		result[i] = string(cat)
	}
	return result
}

// SubcategoriesAsStrings returns the union of all subcategory labels,
// deduplicated, for use as a schema enum.
func SubcategoriesAsStrings() []string {
	seen := map[string]struct{}{}
	var result []string
	for _, cat := range allCategories {
		for _, sub := range subcategories[cat] {
			if _, ok := seen[sub]; ok {
				continue
			}
			seen[sub] = struct{}{}
			result = append(result, sub)
		}
	}
	return result
}

// Canonicalize maps a free-form label to a taxonomy category.
func Canonicalize(input string) (Category, bool) {
	if input == "" {
		return Other, false
	}

	normalized := strings.ToLower(strings.TrimSpace(input))

	// synonyms map
	synonyms := map[string]Category{
		"trust":       Legal,
		"will":        Legal,
		"court":       Legal,
		"tax":         Financial,
		"bank":        Financial,
		"statement":   Financial,
		"hospital":    Medical,
		"clinic":      Medical,
		"letter":      Correspondence,
		"mail":        Correspondence,
		"passport":    Identity,
		"visa":        Identity,
		"deed":        Property,
		"real estate": Property,
		"photograph":  Photo,
	}

	if cat, ok := synonyms[normalized]; ok {
		return cat, true
	}

	for _, cat := range allCategories {
		if normalized == strings.ToLower(string(cat)) {
			return cat, true
		}
	}

	return Other, false
}

// ValidSubcategory reports whether sub belongs to cat's closed set.
func ValidSubcategory(cat Category, sub string) bool {
	for _, s := range subcategories[cat] {
		if strings.EqualFold(s, sub) {
			return true
		}
	}
	return false
}
