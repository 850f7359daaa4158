package provider

import (
	"fmt"
	"strings"

	"github.com/AtlasMeridia/living-archive/constants"
)

// BuildPrompt composes the analysis instruction for one chunk. All three
// backends share it; the schema constraint rides separately in whatever
// form the backend accepts (inline flag, schema file, request body).
func BuildPrompt(docCtx DocumentContext, text string) string {
	parts := []string{
		"You are analyzing one document from a family archive of scanned papers.",
		"Return ONLY JSON that matches the provided JSON Schema.",
		fmt.Sprintf("Classify document_type with category exactly one of: %s.",
			strings.Join(constants.CategoriesAsStrings(), ", ")),
		"Use 'Other'/'General' when uncertain rather than inventing labels.",
		"Dates are ISO-8601 (YYYY, YYYY-MM, or YYYY-MM-DD); set date_confidence between 0.0 and 1.0, or use an empty date with confidence 0.0 when no date is evident.",
		"Write summary_en in English and summary_zh in Chinese when the source contains Chinese text; otherwise leave summary_zh empty.",
		"key_people and key_dates list names and dates that actually appear in the text.",
		"Sensitivity flags (has_identifier, has_financial, has_medical) must only be true on positive evidence in the text. Never infer them from what is missing.",
	}

	var b strings.Builder
	b.WriteString(strings.Join(parts, " "))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Source file: %s\n", docCtx.SourceFile)
	if docCtx.PageStart > 0 && (docCtx.PageStart != 1 || docCtx.PageEnd != docCtx.PageCount) {
		fmt.Fprintf(&b, "This is pages %d-%d of a %d-page document; analyze what is present.\n",
			docCtx.PageStart, docCtx.PageEnd, docCtx.PageCount)
	} else {
		fmt.Fprintf(&b, "Page count: %d\n", docCtx.PageCount)
	}
	b.WriteString("\nDocument text:\n")
	b.WriteString(text)
	return b.String()
}
