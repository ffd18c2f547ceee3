package catalog

import (
	"sort"
	"strings"

	"github.com/usecasehub/usecase-hub/internal/models"
)

// Apply computes the ordered visible subset of a collection for a free-text
// query carried in the filter, a single category selector, and the
// structured filter sets.
//
// Stages narrow sequentially: query match, category selector, category set,
// difficulty set, industry overlap, user-role overlap, featured flag, then a
// stable sort by descending popularity. An empty set or selector imposes no
// constraint. Inputs are never mutated; the result is a fresh slice sharing
// the input's record pointers.
func Apply(in []*models.UseCase, selector string, f models.Filter) []*models.UseCase {
	out := make([]*models.UseCase, 0, len(in))
	out = append(out, in...)

	if q := strings.ToLower(f.Query); q != "" {
		out = keep(out, func(uc *models.UseCase) bool {
			return matchesQuery(uc, q)
		})
	}

	if selector != "" && selector != "all" {
		out = keep(out, func(uc *models.UseCase) bool {
			return uc.Category == selector
		})
	}

	if len(f.Categories) > 0 {
		set := toSet(f.Categories)
		out = keep(out, func(uc *models.UseCase) bool {
			return set[uc.Category]
		})
	}

	if len(f.Difficulties) > 0 {
		set := toSet(f.Difficulties)
		out = keep(out, func(uc *models.UseCase) bool {
			return set[string(uc.Difficulty)]
		})
	}

	if len(f.Industries) > 0 {
		set := toSet(f.Industries)
		out = keep(out, func(uc *models.UseCase) bool {
			return overlaps(uc.Industries, set)
		})
	}

	if len(f.UserRoles) > 0 {
		set := toSet(f.UserRoles)
		out = keep(out, func(uc *models.UseCase) bool {
			return overlaps(uc.UserRoles, set)
		})
	}

	if f.Featured {
		out = keep(out, func(uc *models.UseCase) bool {
			return uc.Featured
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Popularity > out[j].Popularity
	})

	return out
}

// matchesQuery reports whether the lowercased query appears as a contiguous
// substring of the title, description, any tag, or any tool name. Multi-word
// queries are matched as a whole phrase, not term-wise.
func matchesQuery(uc *models.UseCase, q string) bool {
	if strings.Contains(strings.ToLower(uc.Title), q) {
		return true
	}
	if strings.Contains(strings.ToLower(uc.Description), q) {
		return true
	}
	for _, tag := range uc.Tags {
		if strings.Contains(strings.ToLower(tag), q) {
			return true
		}
	}
	for _, tool := range uc.Tools {
		if strings.Contains(strings.ToLower(tool.Name), q) {
			return true
		}
	}
	return false
}

func keep(in []*models.UseCase, pred func(*models.UseCase) bool) []*models.UseCase {
	out := in[:0]
	for _, uc := range in {
		if pred(uc) {
			out = append(out, uc)
		}
	}
	return out
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}

// overlaps reports a non-empty intersection between the record's values and
// the accepted set. Subset containment is not required.
func overlaps(values []string, set map[string]bool) bool {
	for _, v := range values {
		if set[v] {
			return true
		}
	}
	return false
}
