// Script to compare the scenes found by the Earth Engine and STAC catalogs for
// one point and date.
//
// Usage:
//
//	EE_PROJECT=my-project go run ./scripts -lat 28.6 -lon 77.2 -date 2024-02-20
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/paulmach/orb"

	"github.com/robert-malhotra/waterwatch/internal/catalog"
	"github.com/robert-malhotra/waterwatch/internal/config"
	"github.com/robert-malhotra/waterwatch/internal/earthengine"
	"github.com/robert-malhotra/waterwatch/internal/translate"
)

func main() {
	lat := flag.Float64("lat", 28.61, "latitude")
	lon := flag.Float64("lon", 77.23, "longitude")
	date := flag.String("date", time.Now().AddDate(0, 0, -20).Format(translate.DateLayout), "center date (YYYY-MM-DD)")
	variant := flag.String("variant", config.ModePoint, "pipeline variant supplying collection, cloud limit and window")
	flag.Parse()

	if err := run(*lat, *lon, *date, *variant); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(lat, lon float64, date, variantName string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	variants, err := config.LoadVariants(cfg.Pipeline.VariantsDir)
	if err != nil {
		return fmt.Errorf("failed to load variants: %w", err)
	}
	v := variants.Get(variantName)
	if v == nil {
		return fmt.Errorf("unknown variant %q", variantName)
	}

	point, err := translate.NewPoint(lat, lon)
	if err != nil {
		return err
	}
	window, err := translate.ResolveWindow(date, v.WindowDays)
	if err != nil {
		return err
	}

	ctx := context.Background()
	httpClient, err := earthengine.Authenticate(ctx, earthengine.AuthOptions{
		CredentialsFile: cfg.EE.CredentialsFile,
		Timeout:         cfg.EE.Timeout,
	})
	if err != nil {
		return fmt.Errorf("failed to authenticate: %w", err)
	}
	ee := earthengine.NewClient(cfg.EE.BaseURL, cfg.EE.Project, httpClient).
		WithPublicProject(cfg.EE.PublicProject).
		WithLogger(logger)

	eeCatalog := cfg.Catalog
	eeCatalog.Type = config.CatalogEarthEngine
	stacCatalog := cfg.Catalog
	stacCatalog.Type = config.CatalogSTAC

	fmt.Println("=== Catalog Comparison ===")
	fmt.Printf("Variant: %s (%s, cloud < %.0f%%)\n", v.Name, v.Collection, v.MaxCloudCover)
	fmt.Printf("Point: %.5f, %.5f\n", lat, lon)
	fmt.Printf("Window: %s to %s\n\n", window.StartDate(), window.EndDate())

	maxCloud := v.MaxCloudCover
	q := &catalog.Query{
		Collection:    v.Collection,
		Region:        orb.Geometry(point),
		Window:        window,
		MaxCloudCover: &maxCloud,
		CloudProperty: v.CloudProperty,
	}

	results := make(map[string][]string)
	for _, cc := range []config.CatalogConfig{eeCatalog, stacCatalog} {
		cat, err := catalog.New(&cc, ee, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s catalog unavailable: %v\n", cc.Type, err)
			continue
		}

		for _, query := range []*catalog.Query{q, q.WithoutCloudFilter()} {
			label := cat.Name()
			if query.MaxCloudCover == nil {
				label += " (no cloud filter)"
			}

			fmt.Printf("Querying %s...\n", label)
			items, err := cat.Search(ctx, query)
			if err != nil {
				fmt.Fprintf(os.Stderr, "  search failed: %v\n", err)
				continue
			}
			for _, item := range items {
				cloud, _ := translate.CloudCover(item)
				fmt.Printf("  %-60s cloud=%5.1f%%  %s\n", translate.AssetID(item), cloud, translate.AcquiredAt(item).Format(time.RFC3339))
			}
			fmt.Printf("  %d scenes\n\n", len(items))
			results[label] = catalog.AssetIDs(items)
		}
	}

	fmt.Println("=== Comparison ===")
	compare(results["earthengine"], results["stac"])
	return nil
}

// compare reports scenes found by only one of the catalogs.
func compare(ee, stac []string) {
	inEE := make(map[string]bool, len(ee))
	for _, id := range ee {
		inEE[id] = true
	}
	inSTAC := make(map[string]bool, len(stac))
	for _, id := range stac {
		inSTAC[id] = true
	}

	fmt.Printf("Earth Engine: %d scenes\n", len(ee))
	fmt.Printf("STAC:         %d scenes\n", len(stac))

	missing := 0
	for _, id := range ee {
		if !inSTAC[id] {
			fmt.Printf("  only in Earth Engine: %s\n", id)
			missing++
		}
	}
	for _, id := range stac {
		if !inEE[id] {
			fmt.Printf("  only in STAC:         %s\n", id)
			missing++
		}
	}

	if missing == 0 {
		fmt.Println("✓ Catalogs agree")
		return
	}
	fmt.Printf("✗ %d scenes differ\n", missing)
	fmt.Println("\nNote: differences may occur due to:")
	fmt.Println("  - ingestion delays between the archives")
	fmt.Println("  - different cloud cover estimates per scene")
	fmt.Println("  - products the STAC collection does not map to a compute asset")
}
