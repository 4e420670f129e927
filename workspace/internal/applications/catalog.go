package applications

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// CatalogFile is the on-disk marketplace format:
//
//	applications:
//	  - id: todo
//	    company_id: acme
//	    published: true
//	    identity: {name: Todo, categories: [productivity]}
type CatalogFile struct {
	Applications []Application `yaml:"applications"`
}

// ParseCatalog decodes and validates a catalog.
func ParseCatalog(r io.Reader) ([]Application, error) {
	var file CatalogFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if err := ValidateCatalog(file.Applications); err != nil {
		return nil, err
	}
	return file.Applications, nil
}

// LoadCatalog reads a catalog file.
func LoadCatalog(path string) ([]Application, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return ParseCatalog(f)
}

// ValidateCatalog reports every problem found, joined.
func ValidateCatalog(apps []Application) error {
	var errs []error
	seen := make(map[string]bool, len(apps))
	for i, app := range apps {
		where := fmt.Sprintf("applications[%d]", i)
		if strings.TrimSpace(app.ID) == "" {
			errs = append(errs, fmt.Errorf("%s: id is required", where))
			continue
		}
		where = fmt.Sprintf("%s (%s)", where, app.ID)
		if seen[app.ID] {
			errs = append(errs, fmt.Errorf("%s: duplicate id", where))
		}
		seen[app.ID] = true
		if strings.TrimSpace(app.Identity.Name) == "" {
			errs = append(errs, fmt.Errorf("%s: identity.name is required", where))
		}
		if app.CompanyID == "" {
			errs = append(errs, fmt.Errorf("%s: company_id is required", where))
		}
	}
	return errors.Join(errs...)
}

// ImportCatalog upserts apps into catalog.
func ImportCatalog(ctx context.Context, catalog Catalog, apps []Application) error {
	for _, app := range apps {
		if err := catalog.UpsertApplication(ctx, app); err != nil {
			return fmt.Errorf("import application %s: %w", app.ID, err)
		}
	}
	return nil
}
