package catalog

import (
	"sort"

	"github.com/planetlabs/go-stac"

	"github.com/robert-malhotra/waterwatch/internal/translate"
)

// SortByCloudCover orders items by ascending eo:cloud_cover. Ties are broken
// by acquisition time, newest first; items without cloud cover sort last.
// The sort is stable.
func SortByCloudCover(items []*stac.Item) {
	sort.SliceStable(items, func(i, j int) bool {
		ci, oki := translate.CloudCover(items[i])
		cj, okj := translate.CloudCover(items[j])

		switch {
		case oki && !okj:
			return true
		case !oki && okj:
			return false
		case oki && okj && ci != cj:
			return ci < cj
		}

		return translate.AcquiredAt(items[i]).After(translate.AcquiredAt(items[j]))
	})
}

// AssetIDs returns the compute asset ids of items, skipping items without one.
func AssetIDs(items []*stac.Item) []string {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if id := translate.AssetID(item); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
