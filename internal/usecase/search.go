package usecase

import (
	"strings"

	"github.com/totegamma/starnet/internal/domain"
)

func filterVersion(list []domain.Holon, version int) []domain.Holon {
	var out []domain.Holon
	for _, h := range list {
		if h.Version == version {
			out = append(out, h)
		}
	}
	return out
}

func equalFold(a, b string) bool {
	return strings.EqualFold(a, b)
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// lookupMeta finds key in meta ignoring case.
func lookupMeta(meta map[string]string, key string) (string, bool) {
	if v, ok := meta[key]; ok {
		return v, true
	}
	for k, v := range meta {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return "", false
}

func matchesTerm(h domain.Holon, term string) bool {
	if containsFold(h.Name, term) || containsFold(h.Description, term) {
		return true
	}
	for _, v := range h.MetaData {
		if containsFold(v, term) {
			return true
		}
	}
	return false
}

// matchesSearch applies the free-text term and then the key/value filters
// combined by the match mode.
func matchesSearch(h domain.Holon, params domain.SearchParams) bool {
	if params.Term != "" && !matchesTerm(h, params.Term) {
		return false
	}
	if len(params.Filters) == 0 {
		return true
	}

	matched := 0
	for key, want := range params.Filters {
		got, ok := lookupMeta(h.MetaData, key)
		if ok && containsFold(got, want) {
			matched++
		}
	}

	if params.MatchMode == domain.MatchAny {
		return matched > 0
	}
	return matched == len(params.Filters)
}
