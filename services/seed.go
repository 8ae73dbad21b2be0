package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
	"realtors/models"
)

// seedFile is the layout of a seed file. Each entry is a property in its
// stored JSON shape plus optional images to upload first.
type seedFile struct {
	Properties []map[string]interface{} `yaml:"properties"`
}

// ImportStats summarizes an import run.
type ImportStats struct {
	Created int
	Skipped int
	Images  int
}

// Importer loads properties from a YAML (or JSON) seed file.
type Importer struct {
	props *PropertyService
	media *MediaService
}

func NewImporter(props *PropertyService, media *MediaService) *Importer {
	return &Importer{props: props, media: media}
}

// ImportFile creates every property in the file. Entries that fail are
// logged and skipped; store outages abort the run.
func (im *Importer) ImportFile(ctx context.Context, file string) (ImportStats, error) {
	var stats ImportStats

	data, err := os.ReadFile(file)
	if err != nil {
		return stats, fmt.Errorf("read seed file: %w", err)
	}

	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return stats, fmt.Errorf("parse seed file: %w", err)
	}

	baseDir := filepath.Dir(file)
	for i, entry := range seed.Properties {
		id, images, err := im.importEntry(ctx, baseDir, entry)
		stats.Images += images
		if err != nil {
			if isUnavailable(err) {
				return stats, err
			}
			log.Printf("Warning: seed entry %d skipped: %v", i, err)
			stats.Skipped++
			continue
		}
		log.Printf("Seeded property %s", id)
		stats.Created++
	}

	return stats, nil
}

func (im *Importer) importEntry(ctx context.Context, baseDir string, entry map[string]interface{}) (string, int, error) {
	imageFiles := stringList(entry["imageFiles"])
	imageURLs := stringList(entry["imageUrls"])
	delete(entry, "imageFiles")
	delete(entry, "imageUrls")

	data, err := json.Marshal(entry)
	if err != nil {
		return "", 0, fmt.Errorf("encode entry: %w", err)
	}
	var p models.Property
	if err := json.Unmarshal(data, &p); err != nil {
		return "", 0, fmt.Errorf("decode entry: %w", err)
	}
	p.Normalize()
	if err := p.Validate(); err != nil {
		return "", 0, err
	}

	uploaded := 0
	if im.media != nil && len(imageFiles)+len(imageURLs) > 0 {
		prefix := "properties/" + uuid.New().String()
		for _, f := range imageFiles {
			if !filepath.IsAbs(f) {
				f = filepath.Join(baseDir, f)
			}
			url, err := im.media.UploadFile(ctx, prefix, f)
			if err != nil {
				log.Printf("Warning: failed to upload %s: %v", f, err)
				continue
			}
			p.Images = append(p.Images, url)
			uploaded++
		}
		for _, u := range imageURLs {
			url, err := im.media.Mirror(ctx, prefix, u)
			if err != nil {
				log.Printf("Warning: failed to mirror %s: %v", u, err)
				continue
			}
			p.Images = append(p.Images, url)
			uploaded++
		}
	}

	id, err := im.props.Create(ctx, p)
	if err != nil && uploaded > 0 {
		im.props.deleteImages(ctx, "seed", p.Images)
		uploaded = 0
	}
	return id, uploaded, err
}

func stringList(v interface{}) []string {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}
