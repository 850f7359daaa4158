package analysis

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/AtlasMeridia/living-archive/internal/common"
)

// ValidateJSONAgainstSchema validates "data" against "schemaMap".
// A failure here is a provider defect, not a data defect, and is
// non-retryable: the error wraps common.ErrSchemaValidation.
func ValidateJSONAgainstSchema(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("%w: unmarshal data: %v", common.ErrSchemaValidation, err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("%w: %v", common.ErrSchemaValidation, err)
	}
	return nil
}

// ParseValidated validates raw JSON against the strict document schema and
// unmarshals it into a PartialAnalysis. Shared by every provider adapter.
func ParseValidated(raw []byte) (PartialAnalysis, error) {
	schema := MakeStrict(BuildDocumentJSONSchema())
	if err := ValidateJSONAgainstSchema(schema, raw); err != nil {
		return PartialAnalysis{}, err
	}
	var out PartialAnalysis
	if err := json.Unmarshal(raw, &out); err != nil {
		return PartialAnalysis{}, fmt.Errorf("%w: unmarshal analysis: %v", common.ErrSchemaValidation, err)
	}
	out.DateConfidence = clamp01(out.DateConfidence)
	return out, nil
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
