package utils

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/savaki/batch-provisioner/internal/models"
)

// MergeParameters applies overrides to params, later maps having higher
// precedence. Existing keys keep their position; new keys are appended in
// sorted order.
func MergeParameters(params []models.TemplateParameter, overrides ...map[string]string) []models.TemplateParameter {
	m := map[string]string{}
	for _, o := range overrides {
		maps.Copy(m, o)
	}

	results := make([]models.TemplateParameter, 0, len(params)+len(m))
	seen := map[string]struct{}{}
	for _, p := range params {
		if v, ok := m[p.ParameterKey]; ok {
			p.ParameterValue = v
		}
		seen[p.ParameterKey] = struct{}{}
		results = append(results, p)
	}

	for _, k := range slices.Sorted(maps.Keys(m)) {
		if _, ok := seen[k]; ok {
			continue
		}
		results = append(results, models.TemplateParameter{
			ParameterKey:   k,
			ParameterValue: m[k],
		})
	}

	return results
}

// ParseParameterOverrides parses Key=Value pairs as given on the command line
func ParseParameterOverrides(pairs []string) (map[string]string, error) {
	m := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid parameter override %q, expected Key=Value", pair)
		}
		m[strings.TrimSpace(k)] = v
	}
	return m, nil
}
