package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/ersonp/menu-core/internal/domain/entities"
	"github.com/ersonp/menu-core/internal/domain/ports"
	"github.com/ersonp/menu-core/internal/infrastructure/parsers"
)

// ConflictStrategy defines how to handle existing catalog entries during import.
type ConflictStrategy string

const (
	// ConflictSkip leaves entries whose name already exists untouched.
	ConflictSkip ConflictStrategy = "skip"
	// ConflictOverwrite replaces the category and description of existing entries.
	ConflictOverwrite ConflictStrategy = "overwrite"
)

// ImportOptions controls import behavior.
type ImportOptions struct {
	DryRun     bool             // Validate without saving
	OnConflict ConflictStrategy // How to handle existing entries
}

// ImportError represents an error for a specific row during import.
type ImportError struct {
	Line    int    `json:"line"`            // Line number (1-indexed, 0 if unknown)
	Field   string `json:"field,omitempty"` // Which field has the error
	Value   string `json:"value,omitempty"` // The invalid value
	Message string `json:"message"`         // Human-readable error message
}

func (e ImportError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// ImportResult contains the result of an import operation.
type ImportResult struct {
	Imported    int           `json:"imported"`
	Overwritten int           `json:"overwritten"`
	Skipped     int           `json:"skipped"`
	Errors      []ImportError `json:"errors,omitempty"`
}

// ImportService loads catalog entries from external files.
type ImportService struct {
	db      ports.RelationalDB
	catalog *CatalogService
}

// NewImportService creates a new import service.
func NewImportService(db ports.RelationalDB, catalog *CatalogService) *ImportService {
	return &ImportService{
		db:      db,
		catalog: catalog,
	}
}

// Import validates raw rows and stores the valid ones.
// Invalid rows are reported in the result and never abort the import.
func (s *ImportService) Import(ctx context.Context, rows []parsers.RawStandardMenu, opts ImportOptions) (*ImportResult, error) {
	if opts.OnConflict == "" {
		opts.OnConflict = ConflictSkip
	}
	if opts.OnConflict != ConflictSkip && opts.OnConflict != ConflictOverwrite {
		return nil, entities.ValidationErrorf("unknown conflict strategy %q (valid: skip, overwrite)", opts.OnConflict)
	}

	result := &ImportResult{}
	valid, validationErrors := s.validateRows(rows)
	result.Errors = validationErrors

	for i := range valid {
		row := &valid[i]

		existing, err := s.db.FindStandardMenuByName(ctx, row.Name)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d: looking up %s", row.LineNum, row.Name)
		}

		switch {
		case existing == nil:
			if !opts.DryRun {
				if _, err := s.catalog.Create(ctx, CatalogInput{
					Name:        row.Name,
					Category:    row.Category,
					Description: row.Description,
				}); err != nil {
					return nil, errors.Wrapf(err, "line %d", row.LineNum)
				}
			}
			result.Imported++
		case opts.OnConflict == ConflictOverwrite:
			if !opts.DryRun {
				if _, err := s.catalog.Update(ctx, existing.ID, entities.StandardMenuUpdate{
					Category:    &row.Category,
					Description: &row.Description,
				}); err != nil {
					return nil, errors.Wrapf(err, "line %d", row.LineNum)
				}
			}
			result.Overwritten++
		default:
			result.Skipped++
		}
	}

	return result, nil
}

// validateRows trims rows and returns the valid ones with any errors.
// A name repeated within the file is reported on every later occurrence.
func (s *ImportService) validateRows(rows []parsers.RawStandardMenu) ([]parsers.RawStandardMenu, []ImportError) {
	valid := make([]parsers.RawStandardMenu, 0, len(rows))
	var errs []ImportError
	seen := make(map[string]int)

	for i := range rows {
		row := rows[i]
		if row.LineNum == 0 {
			row.LineNum = i + 1
		}
		row.Name = strings.TrimSpace(row.Name)
		row.Category = strings.TrimSpace(row.Category)
		row.Description = strings.TrimSpace(row.Description)

		if row.Name == "" {
			errs = append(errs, ImportError{Line: row.LineNum, Field: "name", Message: "missing required field: name"})
			continue
		}
		if s.catalog.engine.Normalizer.Normalize(row.Name) == "" {
			errs = append(errs, ImportError{
				Line:    row.LineNum,
				Field:   "name",
				Value:   row.Name,
				Message: "name has no matchable text",
			})
			continue
		}
		if first, dup := seen[row.Name]; dup {
			errs = append(errs, ImportError{
				Line:    row.LineNum,
				Field:   "name",
				Value:   row.Name,
				Message: fmt.Sprintf("duplicate of line %d", first),
			})
			continue
		}
		seen[row.Name] = row.LineNum
		valid = append(valid, row)
	}

	return valid, errs
}
