package analysis

import (
	"errors"
	"reflect"
	"sort"
	"testing"

	"github.com/AtlasMeridia/living-archive/internal/common"
)

const validPayload = `{
	"document_type": {"category": "Legal", "subcategory": "Trust"},
	"title": "Family Trust Agreement",
	"date": "1994-03-12",
	"date_confidence": 0.9,
	"summary_en": "A revocable family trust.",
	"summary_zh": "家庭信托。",
	"key_people": ["Jane Roe"],
	"key_dates": ["1994-03-12"],
	"sensitivity": {"has_identifier": false, "has_financial": true, "has_medical": false},
	"tags": ["trust"],
	"language": "en",
	"quality": "good"
}`

func TestMakeStrict_RequiredListsEveryProperty(t *testing.T) {
	strict := MakeStrict(BuildDocumentJSONSchema())

	props := strict["properties"].(map[string]any)
	required := strict["required"].([]string)

	if len(required) != len(props) {
		t.Fatalf("required has %d entries, properties has %d", len(required), len(props))
	}
	if !sort.StringsAreSorted(required) {
		t.Errorf("required not sorted: %v", required)
	}
	for _, k := range required {
		if _, ok := props[k]; !ok {
			t.Errorf("required key %q not in properties", k)
		}
	}
	if strict["additionalProperties"] != false {
		t.Error("additionalProperties not false at top level")
	}

	// Nested objects get the same treatment.
	sens := props["sensitivity"].(map[string]any)
	if sens["additionalProperties"] != false {
		t.Error("sensitivity.additionalProperties not false")
	}
	if req := sens["required"].([]string); len(req) != 3 {
		t.Errorf("sensitivity.required = %v, want all 3 flags", req)
	}
}

func TestMakeStrict_StripsDefaultsAndLeavesInputAlone(t *testing.T) {
	original := BuildDocumentJSONSchema()
	strict := MakeStrict(original)

	sens := strict["properties"].(map[string]any)["sensitivity"].(map[string]any)
	for name, p := range sens["properties"].(map[string]any) {
		if _, ok := p.(map[string]any)["default"]; ok {
			t.Errorf("default survived MakeStrict on %s", name)
		}
	}

	// The authored schema keeps its defaults and its partial required list.
	origSens := original["properties"].(map[string]any)["sensitivity"].(map[string]any)
	flag := origSens["properties"].(map[string]any)["has_identifier"].(map[string]any)
	if _, ok := flag["default"]; !ok {
		t.Error("MakeStrict mutated its input")
	}
	if !reflect.DeepEqual(original["required"], []string{"document_type", "title", "date", "date_confidence", "sensitivity"}) {
		t.Errorf("input required mutated: %v", original["required"])
	}
}

func TestParseValidated_ValidPayload(t *testing.T) {
	out, err := ParseValidated([]byte(validPayload))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if out.DocumentType.Category != "Legal" || out.Date != "1994-03-12" {
		t.Errorf("unexpected parse: %+v", out)
	}
	if !out.Sensitivity.HasFinancial || out.Sensitivity.HasIdentifier {
		t.Errorf("sensitivity mis-parsed: %+v", out.Sensitivity)
	}
}

func TestParseValidated_RejectsUnknownCategory(t *testing.T) {
	bad := []byte(`{
		"document_type": {"category": "Miscellany", "subcategory": "General"},
		"title": "x", "date": "", "date_confidence": 0,
		"summary_en": "", "summary_zh": "", "key_people": [], "key_dates": [],
		"sensitivity": {"has_identifier": false, "has_financial": false, "has_medical": false},
		"tags": [], "language": "", "quality": ""
	}`)
	_, err := ParseValidated(bad)
	if !errors.Is(err, common.ErrSchemaValidation) {
		t.Fatalf("err = %v, want ErrSchemaValidation", err)
	}
}

func TestParseValidated_RejectsMissingField(t *testing.T) {
	// No sensitivity object: strict schema requires every property.
	bad := []byte(`{
		"document_type": {"category": "Other", "subcategory": "General"},
		"title": "x", "date": "", "date_confidence": 0,
		"summary_en": "", "summary_zh": "", "key_people": [], "key_dates": [],
		"tags": [], "language": "", "quality": ""
	}`)
	if _, err := ParseValidated(bad); !errors.Is(err, common.ErrSchemaValidation) {
		t.Fatalf("err = %v, want ErrSchemaValidation", err)
	}
}

func TestParseValidated_RejectsBadDateFormat(t *testing.T) {
	bad := []byte(`{
		"document_type": {"category": "Other", "subcategory": "General"},
		"title": "x", "date": "March 1994", "date_confidence": 0.5,
		"summary_en": "", "summary_zh": "", "key_people": [], "key_dates": [],
		"sensitivity": {"has_identifier": false, "has_financial": false, "has_medical": false},
		"tags": [], "language": "", "quality": ""
	}`)
	if _, err := ParseValidated(bad); !errors.Is(err, common.ErrSchemaValidation) {
		t.Fatalf("err = %v, want ErrSchemaValidation for non-ISO date", err)
	}
}

func TestStripJSONFences(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"{\"a\":1}", "{\"a\":1}"},
		{"```json\n{\"a\":1}\n```", "{\"a\":1}"},
		{"```\n{\"a\":1}\n```", "{\"a\":1}"},
		{"  ```json\n{\"a\":1}\n```  ", "{\"a\":1}"},
	}
	for _, c := range cases {
		if got := StripJSONFences(c.in); got != c.want {
			t.Errorf("StripJSONFences(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
