package translate

// CollectionToAssetPrefix maps STAC collection IDs to the compute service
// image collections holding the same products.
var CollectionToAssetPrefix = map[string]string{
	"sentinel-2-l2a":    "COPERNICUS/S2_SR_HARMONIZED",
	"sentinel-2-l1c":    "COPERNICUS/S2_HARMONIZED",
	"sentinel-2-c1-l2a": "COPERNICUS/S2_SR_HARMONIZED",
}

// AssetPrefixToCollection maps compute service image collections to STAC
// collection IDs (reverse mapping).
var AssetPrefixToCollection = map[string]string{
	"COPERNICUS/S2_SR_HARMONIZED": "sentinel-2-l2a",
	"COPERNICUS/S2_SR":            "sentinel-2-l2a",
	"COPERNICUS/S2_HARMONIZED":    "sentinel-2-l1c",
	"COPERNICUS/S2":               "sentinel-2-l1c",
}

// GetAssetPrefix returns the compute image collection for a STAC collection ID.
func GetAssetPrefix(collectionID string) (string, bool) {
	prefix, ok := CollectionToAssetPrefix[collectionID]
	return prefix, ok
}

// GetCollectionID returns the STAC collection ID for a compute image
// collection, falling back to the collection path itself.
func GetCollectionID(assetPrefix string) string {
	if id, ok := AssetPrefixToCollection[assetPrefix]; ok {
		return id
	}
	return assetPrefix
}
