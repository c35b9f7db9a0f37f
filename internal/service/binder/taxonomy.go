package binder

import (
	"context"
	"fmt"
	"sort"

	"statcube/internal/domain"
)

// bindReferenceData checks every fact value against the shared taxonomy.
// With explicit category keys the items must all belong to one of them;
// without, the single category common to all items is inferred.
func (s *Service) bindReferenceData(ctx context.Context, dim *domain.Dimension, ext *domain.ReferenceDataExtractor, factTable string) (*domain.Dimension, error) {
	values, err := s.distinctValues(ctx, factTable, dim.FactTableColumn)
	if err != nil {
		return nil, err
	}

	items := make([]*domain.ReferenceItem, 0, len(values))
	var unknown []string
	for _, v := range values {
		item, err := s.taxonomy.LookupItem(ctx, v)
		if err != nil {
			if _, ok := err.(*domain.NotFoundError); ok {
				unknown = append(unknown, v)
				continue
			}
			return nil, err
		}
		items = append(items, item)
	}
	if len(unknown) > 0 {
		return nil, &domain.BindingFailure{
			Code:             domain.FailUnknownReferenceItem,
			DatasetID:        dim.DatasetID,
			DimensionID:      dim.ID,
			TotalNonMatching: int64(len(unknown)),
			FactValues:       clip(unknown),
			Message:          fmt.Sprintf("%d value(s) are not reference-data items", len(unknown)),
		}
	}

	resolved := *ext
	if len(resolved.CategoryKeys) > 0 {
		if outside := itemsOutsideCategories(items, resolved.CategoryKeys); len(outside) > 0 {
			return nil, &domain.BindingFailure{
				Code:             domain.FailItemsNotInCategory,
				DatasetID:        dim.DatasetID,
				DimensionID:      dim.ID,
				TotalNonMatching: int64(len(outside)),
				FactValues:       clip(outside),
				Message:          fmt.Sprintf("%d item(s) belong to none of the requested categories", len(outside)),
			}
		}
		for _, key := range resolved.CategoryKeys {
			if _, err := s.taxonomy.ResolveCategory(ctx, key); err != nil {
				return nil, err
			}
		}
	} else {
		common := commonCategories(items)
		switch len(common) {
		case 0:
			return nil, domain.Failf(domain.FailNoCategoryMatch, dim.DatasetID, dim.ID,
				"the values share no reference-data category")
		case 1:
			resolved.CategoryKeys = common
		default:
			return nil, domain.Failf(domain.FailTooManyCategories, dim.DatasetID, dim.ID,
				"the values fit %d categories (%v): name one explicitly", len(common), common)
		}
	}

	out := *dim
	out.Type = domain.DimReferenceData
	out.Extractor = &resolved
	out.JoinColumn = "item_id"
	out.LookupTableID = ""
	return &out, nil
}

// itemsOutsideCategories returns item IDs that belong to none of the keys.
func itemsOutsideCategories(items []*domain.ReferenceItem, keys []string) []string {
	allowed := make(map[string]bool, len(keys))
	for _, k := range keys {
		allowed[k] = true
	}
	var outside []string
	for _, item := range items {
		ok := false
		for _, k := range item.CategoryKeys {
			if allowed[k] {
				ok = true
				break
			}
		}
		if !ok {
			outside = append(outside, item.ItemID)
		}
	}
	sort.Strings(outside)
	return outside
}

// commonCategories intersects the category keys of all items.
func commonCategories(items []*domain.ReferenceItem) []string {
	if len(items) == 0 {
		return nil
	}
	counts := make(map[string]int)
	for _, item := range items {
		seen := make(map[string]bool, len(item.CategoryKeys))
		for _, k := range item.CategoryKeys {
			if !seen[k] {
				seen[k] = true
				counts[k]++
			}
		}
	}
	var common []string
	for k, n := range counts {
		if n == len(items) {
			common = append(common, k)
		}
	}
	sort.Strings(common)
	return common
}
