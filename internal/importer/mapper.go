package importer

import (
	"fmt"
	"strconv"
	"strings"

	"catalog-service/internal/models"
)

// Candidate is a fully mapped and normalized product record, ready for the
// upsert pipeline. One candidate corresponds to one product; for Shopify
// files that means one handle group, however many rows it spanned.
type Candidate struct {
	Row           int
	Name          string
	Handle        string
	Description   string
	Price         float64
	Category      string
	ImageURLs     []string
	IsFeatured    bool
	StockQuantity *int

	// Option axes collected from variant rows. Both empty means the product
	// gets the default size/frame pair.
	Sizes  []string
	Frames []string

	Warnings []string
}

// standardMappings and shopifyMappings drive auto-mapping. Keeping them as
// data rather than switch statements keeps the preview endpoint and the
// import path on the same table.
var standardMappings = []models.FieldMapping{
	{SourceColumn: "name", Destination: models.FieldName},
	{SourceColumn: "description", Destination: models.FieldDescription},
	{SourceColumn: "price", Destination: models.FieldPrice},
	{SourceColumn: "category", Destination: models.FieldCategory},
	{SourceColumn: "image_url", Destination: models.FieldImageURL},
	{SourceColumn: "is_featured", Destination: models.FieldIsFeatured},
	{SourceColumn: "stock_quantity", Destination: models.FieldStock},
}

var shopifyMappings = []models.FieldMapping{
	{SourceColumn: "Title", Destination: models.FieldName},
	{SourceColumn: "Body (HTML)", Destination: models.FieldDescription},
	{SourceColumn: "Variant Price", Destination: models.FieldPrice},
	{SourceColumn: "Type", Destination: models.FieldCategory},
	{SourceColumn: "Image Src", Destination: models.FieldImageURL},
	{SourceColumn: "Published", Destination: models.FieldIsFeatured},
	{SourceColumn: "Variant Inventory Qty", Destination: models.FieldStock},
}

// AutoMapping returns the suggested column mapping for a detected format,
// restricted to columns actually present in the file.
func AutoMapping(format models.ImportFormat, headers []string) []models.FieldMapping {
	var table []models.FieldMapping
	switch format {
	case models.ImportFormatShopify:
		table = shopifyMappings
	case models.ImportFormatStandard:
		table = standardMappings
	default:
		return nil
	}

	var out []models.FieldMapping
	for _, m := range table {
		if hasHeader(headers, m.SourceColumn) {
			out = append(out, m)
		}
	}
	return out
}

// MapStandard turns standard-template rows into candidates. Rows without a
// usable name are dropped and reported as row errors rather than failing the
// whole file.
func MapStandard(records []RawRecord, mappings []models.FieldMapping) ([]Candidate, []models.ImportRowError) {
	var candidates []Candidate
	var errs []models.ImportRowError

	for _, rec := range records {
		cand := Candidate{Row: rec.Row}
		for _, m := range mappings {
			applyField(&cand, m.Destination, rec.Get(m.SourceColumn), rec.Row, &errs)
		}
		if cand.Name == "" {
			errs = append(errs, models.ImportRowError{
				Row:     rec.Row,
				Column:  "name",
				Code:    "NAME_MISSING",
				Message: "Product name is required",
			})
			continue
		}
		candidates = append(candidates, cand)
	}

	return candidates, errs
}

// MapShopify turns handle groups into candidates. Product-level fields come
// from the group's main row; option values and images are collected across
// every row in the group.
func MapShopify(groups []ShopifyGroup, mappings []models.FieldMapping) ([]Candidate, []models.ImportRowError) {
	var candidates []Candidate
	var errs []models.ImportRowError

	for _, group := range groups {
		main := group.Main
		cand := Candidate{Row: main.Row, Handle: group.Handle}
		for _, m := range mappings {
			if m.Destination == models.FieldImageURL {
				continue // images are gathered across the whole group below
			}
			applyField(&cand, m.Destination, main.Get(m.SourceColumn), main.Row, &errs)
		}

		// A group whose rows all lack a title still imports, named after
		// its handle.
		if cand.Name == "" {
			cand.Name = group.Handle
			cand.Warnings = append(cand.Warnings,
				fmt.Sprintf("row %d: no title for handle %q, using handle as product name", main.Row, group.Handle))
		}

		for _, row := range group.Rows() {
			if src := strings.TrimSpace(row.Get("Image Src")); src != "" {
				cand.ImageURLs = appendUnique(cand.ImageURLs, src)
			}
			collectOptions(&cand, row)
		}

		candidates = append(candidates, cand)
	}

	return candidates, errs
}

func applyField(cand *Candidate, dest models.DestinationField, raw string, row int, errs *[]models.ImportRowError) {
	raw = strings.TrimSpace(raw)
	switch dest {
	case models.FieldName:
		cand.Name = raw
	case models.FieldDescription:
		cand.Description = raw
	case models.FieldPrice:
		if raw == "" {
			cand.Warnings = append(cand.Warnings,
				fmt.Sprintf("row %d: price missing, defaulting to 0", row))
			return
		}
		price, err := NormalizePrice(raw)
		if err != nil {
			*errs = append(*errs, models.ImportRowError{
				Row:     row,
				Column:  "price",
				Code:    "PRICE_INVALID",
				Message: fmt.Sprintf("Invalid price %q", raw),
			})
			return
		}
		cand.Price = price
	case models.FieldCategory:
		cand.Category = raw
	case models.FieldImageURL:
		if raw != "" {
			cand.ImageURLs = appendUnique(cand.ImageURLs, raw)
		}
	case models.FieldIsFeatured:
		cand.IsFeatured = NormalizeBool(raw)
	case models.FieldStock:
		if raw == "" {
			return
		}
		qty, err := strconv.Atoi(raw)
		if err != nil || qty < 0 {
			cand.Warnings = append(cand.Warnings,
				fmt.Sprintf("row %d: invalid stock quantity %q, using default", row, raw))
			return
		}
		cand.StockQuantity = &qty
	}
}

// collectOptions reads the OptionN Name/Value column pairs of one Shopify row
// and files each value under the size or frame axis based on the axis name.
// Unrecognized axes are ignored.
func collectOptions(cand *Candidate, row RawRecord) {
	for n := 1; n <= 3; n++ {
		name := strings.TrimSpace(row.Get(fmt.Sprintf("Option%d Name", n)))
		value := strings.TrimSpace(row.Get(fmt.Sprintf("Option%d Value", n)))
		if value == "" || strings.EqualFold(value, "Default Title") {
			continue
		}
		switch {
		case strings.Contains(strings.ToLower(name), "size"):
			cand.Sizes = appendUnique(cand.Sizes, value)
		case strings.Contains(strings.ToLower(name), "frame"):
			cand.Frames = appendUnique(cand.Frames, value)
		}
	}
}

// NormalizePrice parses a price string, tolerating currency symbols and
// thousands separators ("$1,299.50" parses to 1299.50).
func NormalizePrice(raw string) (float64, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r == '.', r == '-':
			return r
		default:
			return -1
		}
	}, raw)
	if cleaned == "" {
		return 0, fmt.Errorf("no numeric value in %q", raw)
	}
	price, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, err
	}
	if price < 0 {
		return 0, fmt.Errorf("price cannot be negative")
	}
	return price, nil
}

// NormalizeBool reports whether a cell is truthy. Only "true" (any case) and
// "1" count; everything else, including empty, is false.
func NormalizeBool(raw string) bool {
	raw = strings.TrimSpace(raw)
	return strings.EqualFold(raw, "true") || raw == "1"
}

func appendUnique(list []string, value string) []string {
	for _, v := range list {
		if v == value {
			return list
		}
	}
	return append(list, value)
}
