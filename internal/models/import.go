package models

// ImportFormat is the detected shape of an uploaded catalog file.
type ImportFormat string

const (
	// ImportFormatStandard is the flat one-row-per-product template.
	ImportFormatStandard ImportFormat = "standard"
	// ImportFormatShopify is Shopify's multi-row-per-product variant export,
	// grouped by Handle.
	ImportFormatShopify ImportFormat = "shopify"
	// ImportFormatUnknown means neither shape was recognized; the operator
	// must map columns manually.
	ImportFormatUnknown ImportFormat = "unknown"
)

// DestinationField is one of the fixed set of data-model fields a source
// column can be mapped onto.
type DestinationField string

const (
	FieldName        DestinationField = "name"
	FieldDescription DestinationField = "description"
	FieldPrice       DestinationField = "price"
	FieldCategory    DestinationField = "category"
	FieldImageURL    DestinationField = "image_url"
	FieldIsFeatured  DestinationField = "is_featured"
	FieldStock       DestinationField = "stock_quantity"
)

// DestinationFields enumerates the mappable destination fields in display
// order.
func DestinationFields() []DestinationField {
	return []DestinationField{
		FieldName,
		FieldDescription,
		FieldPrice,
		FieldCategory,
		FieldImageURL,
		FieldIsFeatured,
		FieldStock,
	}
}

// FieldMapping is a single (source column -> destination field) pair. The
// mapping list is session-scoped: it drives one import run and is never
// persisted.
type FieldMapping struct {
	SourceColumn string           `json:"sourceColumn"`
	Destination  DestinationField `json:"destination"`
}

// ImportTemplateColumn defines a column in the import template
type ImportTemplateColumn struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
	Type        string `json:"type"` // string, number, boolean
	Example     string `json:"example"`
}

// ImportTemplate defines the structure of an import template
type ImportTemplate struct {
	Entity  string                 `json:"entity"`
	Version string                 `json:"version"`
	Columns []ImportTemplateColumn `json:"columns"`
}

// ImportRowError represents an error for a specific row (1-based index into
// the source file, header excluded).
type ImportRowError struct {
	Row     int    `json:"row"`
	Column  string `json:"column,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ImportStats are the running counters accumulated over an import run.
type ImportStats struct {
	TotalProducts     int `json:"totalProducts"`
	ProductsCreated   int `json:"productsCreated"`
	ProductsUpdated   int `json:"productsUpdated"`
	ProductsFailed    int `json:"productsFailed"`
	ProductsSkipped   int `json:"productsSkipped"`
	VariationsCreated int `json:"variationsCreated"`
	VariationsUpdated int `json:"variationsUpdated"`
	VariationsPruned  int `json:"variationsPruned"`
	ImagesProcessed   int `json:"imagesProcessed"`
	ImagesUploaded    int `json:"imagesUploaded"`
	ImagesFailed      int `json:"imagesFailed"`
	CategoriesCreated int `json:"categoriesCreated"`
}

// BatchResult is the outcome of one processed batch.
type BatchResult struct {
	BatchNumber int              `json:"batchNumber"`
	StartRow    int              `json:"startRow"`
	EndRow      int              `json:"endRow"`
	Stats       ImportStats      `json:"stats"`
	Errors      []ImportRowError `json:"errors,omitempty"`
}

// ImportResult represents the result of an import run.
type ImportResult struct {
	Success      bool             `json:"success"`
	Format       ImportFormat     `json:"format"`
	TotalRows    int              `json:"totalRows"`
	TotalBatches int              `json:"totalBatches"`
	Stats        ImportStats      `json:"stats"`
	BatchResults []BatchResult    `json:"batchResults,omitempty"`
	Errors       []ImportRowError `json:"errors,omitempty"`
	Warnings     []string         `json:"warnings,omitempty"`
	CreatedIDs   []string         `json:"createdIds,omitempty"`
	UpdatedIDs   []string         `json:"updatedIds,omitempty"`
	ProcessingMs int64            `json:"processingMs"`
}

// ImportPreview is returned by the preview endpoint: the operator confirms or
// edits the suggested mapping before committing the run.
type ImportPreview struct {
	Success           bool                `json:"success"`
	Format            ImportFormat        `json:"format"`
	Headers           []string            `json:"headers"`
	SuggestedMapping  []FieldMapping      `json:"suggestedMapping"`
	DestinationFields []DestinationField  `json:"destinationFields"`
	SampleRows        []map[string]string `json:"sampleRows,omitempty"`
	TotalRows         int                 `json:"totalRows"`
}

// ImportProgress is emitted to the operator-facing progress view after each
// batch and after each image processed.
type ImportProgress struct {
	Stage           string `json:"stage"`
	CurrentBatch    int    `json:"currentBatch"`
	TotalBatches    int    `json:"totalBatches"`
	PercentComplete int    `json:"percentComplete"`
	ImagesProcessed int    `json:"imagesProcessed"`
}

// StandardImportColumns returns the column definitions for the flat template.
func StandardImportColumns() []ImportTemplateColumn {
	return []ImportTemplateColumn{
		{Name: "name", Description: "Product name", Required: true, Type: "string", Example: "Acrylic Painting"},
		{Name: "description", Description: "Product description", Required: true, Type: "string", Example: "Hand-finished acrylic print"},
		{Name: "price", Description: "Base price", Required: true, Type: "number", Example: "199.99"},
		{Name: "stock_quantity", Description: "Initial stock quantity", Required: false, Type: "number", Example: "10"},
		{Name: "category", Description: "Category name - auto-creates if not exists", Required: false, Type: "string", Example: "Paintings"},
		{Name: "image_url", Description: "Main image URL", Required: false, Type: "string", Example: "https://example.com/art.jpg"},
		{Name: "is_featured", Description: "Featured flag (true/false/1/0)", Required: false, Type: "boolean", Example: "true"},
	}
}

// StandardImportTemplate returns the template definition for the flat format.
func StandardImportTemplate() ImportTemplate {
	return ImportTemplate{
		Entity:  "products",
		Version: "1.0",
		Columns: StandardImportColumns(),
	}
}
