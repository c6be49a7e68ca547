package llm

import "fmt"

// CacheType is one of the four recognized analysis kinds.
type CacheType string

const (
	CacheTypeRefactor CacheType = "refactor"
	CacheTypeDocs     CacheType = "docs"
	CacheTypeAnalysis CacheType = "analysis"
	CacheTypeTodos    CacheType = "todos"
)

// TypeConfig is the static, per-cache-type configuration consulted by
// AnalysisService: which prompt to render, which schema version the payload
// must conform to, the default model when none is overridden, and a nominal
// token count used for budget estimation before the real usage is known.
type TypeConfig struct {
	PromptKey     PromptKey
	SchemaVersion int
	DefaultModel  string
	NominalTokens int64
}

// Registry is the static cache-type table of spec.md §6.
type Registry struct {
	types map[CacheType]TypeConfig
}

// NewRegistry builds the registry for refactor/docs/analysis/todos, using
// defaultModel wherever a cache-type doesn't need a different one.
func NewRegistry(defaultModel string) *Registry {
	return &Registry{
		types: map[CacheType]TypeConfig{
			CacheTypeTodos: {
				PromptKey:     TodosPrompt,
				SchemaVersion: 1,
				DefaultModel:  defaultModel,
				NominalTokens: 600,
			},
			CacheTypeRefactor: {
				PromptKey:     RefactorPrompt,
				SchemaVersion: 1,
				DefaultModel:  defaultModel,
				NominalTokens: 1200,
			},
			CacheTypeDocs: {
				PromptKey:     DocsPrompt,
				SchemaVersion: 1,
				DefaultModel:  defaultModel,
				NominalTokens: 900,
			},
			CacheTypeAnalysis: {
				PromptKey:     AnalysisPrompt,
				SchemaVersion: 1,
				DefaultModel:  defaultModel,
				NominalTokens: 1500,
			},
		},
	}
}

func (r *Registry) Lookup(ct CacheType) (TypeConfig, error) {
	cfg, ok := r.types[ct]
	if !ok {
		return TypeConfig{}, fmt.Errorf("unrecognized cache-type %q", ct)
	}
	return cfg, nil
}

// Ordered returns the configured cache-types in order, validating each name
// against the registry. Used by the Scanner to drive its per-file loop in
// scanner.cache_type_order.
func (r *Registry) Ordered(order []string) ([]CacheType, error) {
	out := make([]CacheType, 0, len(order))
	for _, name := range order {
		ct := CacheType(name)
		if _, err := r.Lookup(ct); err != nil {
			return nil, err
		}
		out = append(out, ct)
	}
	return out, nil
}
