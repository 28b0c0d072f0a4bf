package importer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"catalog-service/internal/models"
)

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name    string
		headers []string
		want    models.ImportFormat
	}{
		{
			name:    "shopify with title",
			headers: []string{"Handle", "Title", "Body (HTML)", "Type"},
			want:    models.ImportFormatShopify,
		},
		{
			name:    "shopify with variant price only",
			headers: []string{"Handle", "Variant Price", "Option1 Name"},
			want:    models.ImportFormatShopify,
		},
		{
			name:    "handle alone is not shopify",
			headers: []string{"Handle", "Weight"},
			want:    models.ImportFormatUnknown,
		},
		{
			name:    "standard",
			headers: []string{"name", "description", "price", "category"},
			want:    models.ImportFormatStandard,
		},
		{
			name:    "standard is case insensitive",
			headers: []string{"Name", "Description", "Price"},
			want:    models.ImportFormatStandard,
		},
		{
			name:    "standard missing description",
			headers: []string{"name", "price"},
			want:    models.ImportFormatUnknown,
		},
		{
			name:    "empty headers",
			headers: nil,
			want:    models.ImportFormatUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectFormat(tt.headers))
		})
	}
}

func TestDetectFormatShopifyWinsOverStandard(t *testing.T) {
	// A file carrying both shapes classifies as shopify; the handle check
	// runs first.
	headers := []string{"Handle", "Title", "name", "price", "description"}
	assert.Equal(t, models.ImportFormatShopify, DetectFormat(headers))
}

func TestGroupByHandle(t *testing.T) {
	records := []RawRecord{
		{Row: 1, Values: map[string]string{"Handle": "sunset-print", "Title": "Sunset Print"}},
		{Row: 2, Values: map[string]string{"Handle": "sunset-print", "Title": ""}},
		{Row: 3, Values: map[string]string{"Handle": "ocean-mist", "Title": "Ocean Mist"}},
		{Row: 4, Values: map[string]string{"Handle": "sunset-print", "Title": ""}},
	}

	groups, orphans := GroupByHandle(records)
	assert.Empty(t, orphans)
	assert.Len(t, groups, 2)

	// first-seen order
	assert.Equal(t, "sunset-print", groups[0].Handle)
	assert.Equal(t, "ocean-mist", groups[1].Handle)

	assert.Equal(t, 1, groups[0].Main.Row)
	assert.Len(t, groups[0].Rest, 2)
	assert.Len(t, groups[0].Rows(), 3)
}

func TestGroupByHandleMainRowIsFirstTitled(t *testing.T) {
	// Variant rows can precede the titled row in a Shopify export.
	records := []RawRecord{
		{Row: 1, Values: map[string]string{"Handle": "gallery-wrap", "Title": ""}},
		{Row: 2, Values: map[string]string{"Handle": "gallery-wrap", "Title": "Gallery Wrap"}},
		{Row: 3, Values: map[string]string{"Handle": "gallery-wrap", "Title": ""}},
	}

	groups, _ := GroupByHandle(records)
	assert.Len(t, groups, 1)
	assert.Equal(t, 2, groups[0].Main.Row)
	assert.Equal(t, []int{1, 3}, []int{groups[0].Rest[0].Row, groups[0].Rest[1].Row})
}

func TestGroupByHandleNoTitledRowFallsBackToFirst(t *testing.T) {
	records := []RawRecord{
		{Row: 5, Values: map[string]string{"Handle": "untitled"}},
		{Row: 6, Values: map[string]string{"Handle": "untitled"}},
	}

	groups, _ := GroupByHandle(records)
	assert.Len(t, groups, 1)
	assert.Equal(t, 5, groups[0].Main.Row)
}

func TestGroupByHandleOrphans(t *testing.T) {
	records := []RawRecord{
		{Row: 1, Values: map[string]string{"Handle": "", "Title": "No Handle"}},
		{Row: 2, Values: map[string]string{"Handle": "ok", "Title": "OK"}},
	}

	groups, orphans := GroupByHandle(records)
	assert.Len(t, groups, 1)
	assert.Len(t, orphans, 1)
	assert.Equal(t, 1, orphans[0].Row)
}
