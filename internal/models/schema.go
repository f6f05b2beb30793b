package models

import "sort"

// Schema is a named JSON schema describing an expected analysis result.
type Schema struct {
	Name       string
	Definition map[string]any
}

func str() map[string]any {
	return map[string]any{"type": "string"}
}

func strEnum(values ...string) map[string]any {
	return map[string]any{"type": "string", "enum": values}
}

func array(items map[string]any) map[string]any {
	return map[string]any{"type": "array", "items": items}
}

// object builds a strict object schema; every property is required.
func object(props map[string]any) map[string]any {
	required := make([]string, 0, len(props))
	for name := range props {
		required = append(required, name)
	}
	sort.Strings(required)
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	}
}

var (
	KeyConceptsSchema = Schema{
		Name: "key_concepts_response",
		Definition: object(map[string]any{
			"key_concepts": array(object(map[string]any{
				"term":       str(),
				"definition": str(),
				"relevance":  str(),
				"timestamp":  str(),
			})),
		}),
	}

	ThesisArgumentSchema = Schema{
		Name: "thesis_argument_response",
		Definition: object(map[string]any{
			"main_thesis": str(),
			"argument_chains": array(object(map[string]any{
				"title":           str(),
				"premise":         str(),
				"reasoning_steps": array(str()),
				"conclusion":      str(),
				"implications":    array(str()),
			})),
		}),
	}

	ConnectionsSchema = Schema{
		Name: "connections_response",
		Definition: object(map[string]any{
			"connections": array(object(map[string]any{
				"concept_a":    str(),
				"concept_b":    str(),
				"relationship": str(),
			})),
			"synthesis": str(),
		}),
	}

	ClaimVerificationSchema = Schema{
		Name: "claim_verification_response",
		Definition: object(map[string]any{
			"verified_claims": array(object(map[string]any{
				"claim":      str(),
				"verdict":    strEnum("supported", "disputed", "misleading", "unverifiable"),
				"evidence":   str(),
				"confidence": strEnum("high", "medium", "low"),
			})),
			"overall_credibility": strEnum("high", "mixed", "low"),
			"summary":             str(),
		}),
	}

	QuizSchema = Schema{
		Name: "quiz_response",
		Definition: object(map[string]any{
			"questions": array(object(map[string]any{
				"question":       str(),
				"options":        array(str()),
				"correct_answer": str(),
				"explanation":    str(),
				"difficulty":     strEnum("recall", "understanding", "application"),
			})),
			"quiz_focus": str(),
		}),
	}
)
