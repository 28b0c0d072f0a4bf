package importer

import (
	"strings"

	"catalog-service/internal/models"
)

// ShopifyGroup is the set of rows sharing one Shopify handle. Main is the row
// product-level fields are read from; Rest holds the remaining variant rows.
type ShopifyGroup struct {
	Handle string
	Main   RawRecord
	Rest   []RawRecord
}

// Rows returns every row in the group, main row first.
func (g ShopifyGroup) Rows() []RawRecord {
	return append([]RawRecord{g.Main}, g.Rest...)
}

// DetectFormat classifies a header row. It is a pure function of the headers:
// a Handle column together with either Title or Variant Price marks a Shopify
// export, the name/price/description trio marks the standard template, and
// anything else is unknown.
func DetectFormat(headers []string) models.ImportFormat {
	if hasHeader(headers, "Handle") && (hasHeader(headers, "Title") || hasHeader(headers, "Variant Price")) {
		return models.ImportFormatShopify
	}
	if hasHeader(headers, "name") && hasHeader(headers, "price") && hasHeader(headers, "description") {
		return models.ImportFormatStandard
	}
	return models.ImportFormatUnknown
}

// GroupByHandle buckets Shopify rows by their Handle column, preserving the
// order in which each handle first appears. Rows with an empty handle are
// returned separately so the caller can report them.
//
// The main row of a group is the first row with a non-empty Title; when no
// row in the group has a title, the first row stands in.
func GroupByHandle(records []RawRecord) ([]ShopifyGroup, []RawRecord) {
	var order []string
	buckets := make(map[string][]RawRecord)
	var orphans []RawRecord

	for _, rec := range records {
		handle := strings.TrimSpace(rec.Get("Handle"))
		if handle == "" {
			orphans = append(orphans, rec)
			continue
		}
		if _, seen := buckets[handle]; !seen {
			order = append(order, handle)
		}
		buckets[handle] = append(buckets[handle], rec)
	}

	groups := make([]ShopifyGroup, 0, len(order))
	for _, handle := range order {
		rows := buckets[handle]
		mainIdx := 0
		for i, row := range rows {
			if strings.TrimSpace(row.Get("Title")) != "" {
				mainIdx = i
				break
			}
		}
		group := ShopifyGroup{Handle: handle, Main: rows[mainIdx]}
		for i, row := range rows {
			if i != mainIdx {
				group.Rest = append(group.Rest, row)
			}
		}
		groups = append(groups, group)
	}

	return groups, orphans
}

func hasHeader(headers []string, name string) bool {
	for _, h := range headers {
		if strings.EqualFold(h, name) {
			return true
		}
	}
	return false
}
