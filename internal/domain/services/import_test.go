package services

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/menu-core/internal/domain/entities"
	"github.com/ersonp/menu-core/internal/infrastructure/parsers"
)

func importRows() []parsers.RawStandardMenu {
	return []parsers.RawStandardMenu{
		{Name: "김치찌개", Category: "한식-찌개", Description: "묵은지", LineNum: 2},
		{Name: "", Category: "중식", LineNum: 3},
		{Name: " 짬뽕 ", Category: "중식", LineNum: 4},
		{Name: "짬뽕", Category: "중식", LineNum: 5},
		{Name: "(세트)", LineNum: 6},
	}
}

func TestImportService_Import(t *testing.T) {
	tests := []struct {
		name            string
		opts            ImportOptions
		wantImported    int
		wantOverwritten int
		wantSkipped     int
		wantCategory    string
		wantEntries     int
	}{
		{
			name:         "skip existing",
			opts:         ImportOptions{OnConflict: ConflictSkip},
			wantImported: 1,
			wantSkipped:  1,
			wantCategory: "",
			wantEntries:  2,
		},
		{
			name:            "overwrite existing",
			opts:            ImportOptions{OnConflict: ConflictOverwrite},
			wantImported:    1,
			wantOverwritten: 1,
			wantCategory:    "한식-찌개",
			wantEntries:     2,
		},
		{
			name:         "dry run writes nothing",
			opts:         ImportOptions{DryRun: true},
			wantImported: 1,
			wantSkipped:  1,
			wantCategory: "",
			wantEntries:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t, "김치찌개")
			svc := NewImportService(f.db, f.catalog)

			result, err := svc.Import(ctx, importRows(), tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.wantImported, result.Imported)
			assert.Equal(t, tt.wantOverwritten, result.Overwritten)
			assert.Equal(t, tt.wantSkipped, result.Skipped)

			require.Len(t, result.Errors, 3)
			assert.Equal(t, 3, result.Errors[0].Line)
			assert.Equal(t, "name", result.Errors[0].Field)
			assert.Equal(t, "line 5: duplicate of line 4", result.Errors[1].Error())
			assert.Equal(t, 6, result.Errors[2].Line)

			kimchi, err := f.catalog.Get(ctx, f.entryID(t, "김치찌개"))
			require.NoError(t, err)
			assert.Equal(t, tt.wantCategory, kimchi.Category)

			entries, err := f.catalog.List(ctx, false)
			require.NoError(t, err)
			assert.Len(t, entries, tt.wantEntries)
		})
	}
}

func TestImportService_ImportedEntriesMatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := NewImportService(f.db, f.catalog)

	_, err := svc.Import(ctx, []parsers.RawStandardMenu{{Name: "짬뽕", Category: "중식"}}, ImportOptions{})
	require.NoError(t, err)

	item := f.addItem(t, "짬뽕")
	require.NotNil(t, item.StandardMenuID)
	assert.Equal(t, f.entryID(t, "짬뽕"), *item.StandardMenuID)
}

func TestImportService_UnknownStrategy(t *testing.T) {
	f := newFixture(t)
	svc := NewImportService(f.db, f.catalog)

	_, err := svc.Import(context.Background(), nil, ImportOptions{OnConflict: "merge"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, entities.ErrValidation))
}
