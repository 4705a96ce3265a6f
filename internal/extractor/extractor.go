// Package extractor implements structured parameter extraction: turning free
// text into validated tool parameters via LLM calls with retry feedback,
// degrading through rule-based extraction to schema defaults. Extraction
// never fails outright; callers always get usable parameters plus a flag
// saying how trustworthy they are.
package extractor

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/qualagents/qualagents/internal/llm"
)

const (
	// maxTextFallback bounds the "text" parameter produced by rule-based
	// extraction.
	maxTextFallback = 5000

	// maxQueryFallback bounds the "query" parameter produced by rule-based
	// extraction.
	maxQueryFallback = 100
)

// FieldType enumerates supported parameter types.
type FieldType string

// Field type constants.
const (
	TypeString FieldType = "string"
	TypeInt    FieldType = "int"
	TypeFloat  FieldType = "float"
	TypeBool   FieldType = "bool"
)

// Field describes a single extractable parameter.
type Field struct {
	Name        string
	Type        FieldType
	Required    bool
	Description string
	Default     interface{}
}

// Schema is the parameter contract for one tool.
type Schema struct {
	Fields []Field
}

// Describe renders the schema for inclusion in an extraction prompt.
func (s Schema) Describe() string {
	var b strings.Builder
	b.WriteString("{")
	for i, f := range s.Fields {
		if i > 0 {
			b.WriteString(", ")
		}
		req := "optional"
		if f.Required {
			req = "required"
		}
		fmt.Fprintf(&b, "%q: %s (%s)", f.Name, f.Type, req)
		if f.Description != "" {
			fmt.Fprintf(&b, " - %s", f.Description)
		}
	}
	b.WriteString("}")
	return b.String()
}

// Defaults returns the schema's default parameter values verbatim.
func (s Schema) Defaults() map[string]interface{} {
	out := make(map[string]interface{}, len(s.Fields))
	for _, f := range s.Fields {
		if f.Default != nil {
			out[f.Name] = f.Default
		}
	}
	return out
}

// Validate checks params against the schema and coerces numeric types where
// JSON decoding produced float64 for integer fields. It returns a
// description of every violation, or nil when the params are acceptable.
func (s Schema) Validate(params map[string]interface{}) error {
	var problems []string
	for _, f := range s.Fields {
		v, ok := params[f.Name]
		if !ok || v == nil {
			if f.Required {
				problems = append(problems, fmt.Sprintf("missing required field %q", f.Name))
			}
			continue
		}
		switch f.Type {
		case TypeString:
			if _, ok := v.(string); !ok {
				problems = append(problems, fmt.Sprintf("field %q must be a string", f.Name))
			}
		case TypeInt:
			switch n := v.(type) {
			case int:
			case float64:
				if n != float64(int(n)) {
					problems = append(problems, fmt.Sprintf("field %q must be an integer", f.Name))
				} else {
					params[f.Name] = int(n)
				}
			default:
				problems = append(problems, fmt.Sprintf("field %q must be an integer", f.Name))
			}
		case TypeFloat:
			switch v.(type) {
			case float64:
			case int:
				params[f.Name] = float64(v.(int))
			default:
				problems = append(problems, fmt.Sprintf("field %q must be a number", f.Name))
			}
		case TypeBool:
			if _, ok := v.(bool); !ok {
				problems = append(problems, fmt.Sprintf("field %q must be a boolean", f.Name))
			}
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%s", strings.Join(problems, "; "))
	}
	return nil
}

// ParameterExtractor extracts tool parameters from free text.
type ParameterExtractor struct {
	generator  llm.TextGenerator
	maxRetries int
}

// New creates a parameter extractor. The generator is typically the
// secondary-first provider chain so extraction prefers the cheap model.
func New(generator llm.TextGenerator, maxRetries int) *ParameterExtractor {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &ParameterExtractor{generator: generator, maxRetries: maxRetries}
}

// Extract pulls parameters matching schema out of text. It tries the LLM up
// to maxRetries+1 times, feeding validation errors back into the prompt,
// then falls back to rule-based extraction, then to the schema defaults
// verbatim. Caller-supplied defaults fill fields every stage left empty.
// The boolean reports whether LLM extraction succeeded; both fallback paths
// report false even when their output validates.
func (e *ParameterExtractor) Extract(ctx context.Context, text string, schema Schema, defaults map[string]interface{}) (map[string]interface{}, bool) {
	if e.generator != nil {
		if params, ok := e.extractWithLLM(ctx, text, schema); ok {
			return mergeDefaults(params, defaults), true
		}
	}

	params := mergeDefaults(e.ruleBasedExtraction(text, schema), defaults)
	if err := schema.Validate(params); err == nil {
		return params, false
	}

	log.Printf("extractor: rule-based extraction failed validation, using defaults")
	return mergeDefaults(schema.Defaults(), defaults), false
}

// mergeDefaults fills keys absent from params with the caller's defaults.
func mergeDefaults(params, defaults map[string]interface{}) map[string]interface{} {
	for k, v := range defaults {
		if _, ok := params[k]; !ok {
			params[k] = v
		}
	}
	return params
}

func (e *ParameterExtractor) extractWithLLM(ctx context.Context, text string, schema Schema) (map[string]interface{}, bool) {
	systemPrompt := llm.ExtractionSystemPrompt(schema.Describe())
	prompt := text

	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		raw, err := e.generator.Complete(ctx, systemPrompt, prompt)
		if err != nil {
			log.Printf("extractor: LLM call failed (attempt %d): %v", attempt+1, err)
			if ctx.Err() != nil {
				return nil, false
			}
			continue
		}

		params, err := llm.ParseParamsResponse(raw)
		if err == nil {
			err = schema.Validate(params)
			if err == nil {
				return params, true
			}
		}

		log.Printf("extractor: attempt %d rejected: %v", attempt+1, err)
		// Feed the validation error back so the next attempt can correct it.
		prompt = fmt.Sprintf("%s\n\nYour previous response was invalid: %v. Return corrected JSON.", text, err)
	}
	return nil, false
}

// ruleBasedExtraction fills well-known fields from the input text directly:
// "text" gets a size-bounded copy of the input and "query" gets the first
// sentence. Everything else takes its schema default.
func (e *ParameterExtractor) ruleBasedExtraction(text string, schema Schema) map[string]interface{} {
	params := schema.Defaults()
	for _, f := range schema.Fields {
		switch f.Name {
		case "text":
			params["text"] = truncate(text, maxTextFallback)
		case "query":
			params["query"] = firstSentence(text, maxQueryFallback)
		}
	}
	return params
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// firstSentence returns the text up to the first sentence terminator,
// bounded at limit bytes.
func firstSentence(s string, limit int) string {
	s = strings.TrimSpace(s)
	for i, r := range s {
		if r == '.' || r == '?' || r == '!' || r == '\n' {
			s = s[:i]
			break
		}
	}
	return truncate(strings.TrimSpace(s), limit)
}
