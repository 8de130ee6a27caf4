package bridge

import (
	"strings"

	"github.com/switchyard-ai/switchyard/pkg/adapters"
	"github.com/switchyard-ai/switchyard/pkg/config"
)

// ResolveModel rewrites a requested model name through a route's
// mappings. Rules apply in precedence order:
//
//	exact     source model matches the request model verbatim
//	reasoning request asked for extended thinking
//	family    the request model's family (per the dialect catalog)
//	          matches the mapping source
//	default   catch-all
//
// A model that matches no rule passes through unchanged, so applying
// the same mappings to an already-resolved name that has no rule of
// its own leaves it alone.
func ResolveModel(model string, mappings []config.ModelMapping, thinking bool, catalog []adapters.Family) string {
	if len(mappings) == 0 {
		return model
	}

	for _, m := range mappings {
		if m.Type == config.MappingExact && m.SourceModel == model {
			return m.TargetModel
		}
	}

	if thinking {
		for _, m := range mappings {
			if m.Type == config.MappingReasoning {
				return m.TargetModel
			}
		}
	}

	if family := matchFamily(model, catalog); family != "" {
		for _, m := range mappings {
			if m.Type == config.MappingFamily && strings.EqualFold(m.SourceModel, family) {
				return m.TargetModel
			}
		}
	}

	for _, m := range mappings {
		if m.Type == config.MappingDefault {
			return m.TargetModel
		}
	}

	return model
}

// matchFamily classifies a model name against the dialect's family
// catalog. The first family with a keyword appearing case-insensitively
// in the model name wins; catalog order is significant because broad
// keywords come last.
func matchFamily(model string, catalog []adapters.Family) string {
	lower := strings.ToLower(model)
	for _, f := range catalog {
		for _, kw := range f.Keywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				return f.Name
			}
		}
	}
	return ""
}
