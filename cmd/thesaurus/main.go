package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/searchforge/relevance/internal/adapters/search"
	"github.com/searchforge/relevance/internal/application/services"
	"github.com/searchforge/relevance/internal/infrastructure/clients/typesense"
	"github.com/searchforge/relevance/pkg/config"
)

// thesaurus converts synonym dictionaries between formats and pushes
// them into the search backend.
//
// Usage:
//
//	thesaurus -input synonyms.json -format json -output synonyms.txt
//	thesaurus -input synonyms.csv -format csv -sync
func main() {
	var (
		inputPath  = flag.String("input", "", "path to the synonym dictionary")
		format     = flag.String("format", "json", "dictionary format: json, csv, or thesaurus")
		outputPath = flag.String("output", "", "write a thesaurus-format export to this file")
		sync       = flag.Bool("sync", false, "sync the loaded groups into the Typesense collection")
	)
	flag.Parse()

	if *inputPath == "" {
		flag.Usage()
		log.Fatal("-input is required")
	}
	if *outputPath == "" && !*sync {
		log.Fatal("nothing to do: pass -output, -sync, or both")
	}

	synonyms := services.NewSynonymExpansionService()
	if err := synonyms.LoadFile(*inputPath, *format); err != nil {
		log.Fatalf("Failed to load dictionary %s: %v", *inputPath, err)
	}
	groups := synonyms.Groups()
	log.Printf("Loaded %d synonym groups from %s", len(groups), *inputPath)

	if *outputPath != "" {
		f, err := os.Create(*outputPath)
		if err != nil {
			log.Fatalf("Failed to create %s: %v", *outputPath, err)
		}
		if err := synonyms.ExportThesaurus(f); err != nil {
			f.Close()
			log.Fatalf("Failed to export thesaurus: %v", err)
		}
		if err := f.Close(); err != nil {
			log.Fatalf("Failed to close %s: %v", *outputPath, err)
		}
		log.Printf("Exported thesaurus to %s", *outputPath)
	}

	if *sync {
		cfg, err := config.Load()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
		client, err := typesense.NewClient(&cfg.Typesense)
		if err != nil {
			log.Fatalf("Failed to initialize Typesense client: %v", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := search.NewTypesenseAdapter(client).SyncSynonyms(ctx, groups); err != nil {
			log.Fatalf("Failed to sync synonyms: %v", err)
		}
		log.Printf("Synced %d synonym groups into collection %q", len(groups), cfg.Typesense.Collection)
	}
}
