package pipeline

import (
	"github.com/robert-malhotra/waterwatch/internal/config"
	"github.com/robert-malhotra/waterwatch/internal/earthengine"
)

// waterBand names the single band of a water mask.
const waterBand = "water"

// WaterIndex is the normalized difference (a - b) / (a + b) of the index
// bands, named after the index.
func WaterIndex(img earthengine.Image, idx config.IndexConfig) earthengine.Image {
	return img.NormalizedDifference(idx.BandA, idx.BandB).Rename(idx.Name)
}

// WaterMask keeps pixels whose index is strictly above threshold. Other
// pixels are masked, not zero.
func WaterMask(index earthengine.Image, threshold float64) earthengine.Image {
	return index.Gt(threshold).Rename(waterBand).SelfMask()
}
