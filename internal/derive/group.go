package derive

import (
	"sort"

	"github.com/roach88/caras/internal/model"
)

// Group is one bucket of items sharing a GroupKey.
type Group[T any] struct {
	Key   model.GroupKey `json:"key"`
	Items []T            `json:"items"`
}

// GroupBy buckets items by dim. requirement extracts the FaceRequirement an
// item describes.
//
// Grouping by period places an item in every catorcena its requirement
// covers. Buckets come back in period order or article order; items keep
// their input order.
func GroupBy[T any](items []T, dim model.GroupDimension, requirement func(T) model.FaceRequirement) []Group[T] {
	var groups []Group[T]
	index := make(map[model.GroupKey]int)
	add := func(key model.GroupKey, item T) {
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, Group[T]{Key: key})
		}
		groups[i].Items = append(groups[i].Items, item)
	}

	for _, item := range items {
		req := requirement(item)
		switch dim {
		case model.GroupByPeriod:
			for _, p := range req.StartPeriod.Span(req.EndPeriod) {
				add(model.GroupKey{Dimension: dim, Period: p}, item)
			}
		case model.GroupByArticle:
			add(model.GroupKey{Dimension: dim, Article: req.Article}, item)
		}
	}

	sort.SliceStable(groups, func(i, j int) bool {
		a, b := groups[i].Key, groups[j].Key
		if dim == model.GroupByPeriod {
			return a.Period.Before(b.Period)
		}
		return a.Article < b.Article
	})
	return groups
}
