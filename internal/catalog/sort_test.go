package catalog

import (
	"reflect"
	"testing"

	"github.com/planetlabs/go-stac"

	"github.com/robert-malhotra/waterwatch/internal/translate"
)

func testItem(id string, cloud any, datetime string) *stac.Item {
	props := map[string]any{
		"datetime":                datetime,
		translate.AssetIDProperty: "COPERNICUS/S2_SR_HARMONIZED/" + id,
	}
	if cloud != nil {
		props[translate.CloudCoverProperty] = cloud
	}
	return &stac.Item{Id: id, Properties: props}
}

func ids(items []*stac.Item) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.Id
	}
	return out
}

func TestSortByCloudCover(t *testing.T) {
	tests := []struct {
		name  string
		items []*stac.Item
		want  []string
	}{
		{
			name: "ascending cloud cover",
			items: []*stac.Item{
				testItem("c", 35.0, "2024-02-10T05:00:00Z"),
				testItem("a", 2.5, "2024-02-11T05:00:00Z"),
				testItem("b", 12.0, "2024-02-12T05:00:00Z"),
			},
			want: []string{"a", "b", "c"},
		},
		{
			name: "ties broken by newest first",
			items: []*stac.Item{
				testItem("old", 10.0, "2024-02-01T05:00:00Z"),
				testItem("new", 10.0, "2024-02-20T05:00:00Z"),
				testItem("mid", 10.0, "2024-02-10T05:00:00Z"),
			},
			want: []string{"new", "mid", "old"},
		},
		{
			name: "missing cloud cover sorts last",
			items: []*stac.Item{
				testItem("unknown", nil, "2024-02-20T05:00:00Z"),
				testItem("cloudy", 99.0, "2024-02-10T05:00:00Z"),
			},
			want: []string{"cloudy", "unknown"},
		},
		{
			name: "full ties keep input order",
			items: []*stac.Item{
				testItem("first", 5.0, "2024-02-10T05:00:00Z"),
				testItem("second", 5.0, "2024-02-10T05:00:00Z"),
			},
			want: []string{"first", "second"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			SortByCloudCover(tt.items)
			if got := ids(tt.items); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got order %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAssetIDs(t *testing.T) {
	items := []*stac.Item{
		testItem("a", 1.0, ""),
		{Id: "no-asset", Properties: map[string]any{}},
		testItem("b", 2.0, ""),
	}

	want := []string{"COPERNICUS/S2_SR_HARMONIZED/a", "COPERNICUS/S2_SR_HARMONIZED/b"}
	if got := AssetIDs(items); !reflect.DeepEqual(got, want) {
		t.Errorf("AssetIDs() = %v, want %v", got, want)
	}
}
