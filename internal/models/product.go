package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JSON type for PostgreSQL JSONB (object/map)
type JSON map[string]interface{}

func (j JSON) Value() (driver.Value, error) {
	return json.Marshal(j)
}

func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = make(JSON)
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, j)
}

// JSONArray type for PostgreSQL JSONB (array)
type JSONArray []interface{}

func (j JSONArray) Value() (driver.Value, error) {
	return json.Marshal(j)
}

func (j *JSONArray) Scan(value interface{}) error {
	if value == nil {
		*j = make(JSONArray, 0)
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, j)
}

// MetadataKeyHandle is the metadata field that stores the source handle of an
// imported product. The handle is the import's deduplication identity when the
// source file carries one (Shopify exports); otherwise the product name is the
// identity.
const MetadataKeyHandle = "handle"

// Product represents a catalog product.
// Composite tenant indexes follow the storefront's query patterns: name lookup
// drives import dedup, slug drives public URLs.
type Product struct {
	ID             uuid.UUID           `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID       string              `json:"tenantId" gorm:"not null;index:idx_products_tenant_id;index:idx_products_tenant_name,unique;index:idx_products_tenant_slug,unique"`
	Name           string              `json:"name" gorm:"not null;index:idx_products_tenant_name,unique"`
	Slug           *string             `json:"slug,omitempty" gorm:"index:idx_products_tenant_slug,unique"`
	Description    *string             `json:"description,omitempty"`
	Price          float64             `json:"price" gorm:"not null"`
	CategoryID     *uuid.UUID          `json:"categoryId,omitempty" gorm:"type:uuid;index"`
	BrandID        *uuid.UUID          `json:"brandId,omitempty" gorm:"type:uuid;index"`
	ImageURL       *string             `json:"imageUrl,omitempty"`
	IsFeatured     bool                `json:"isFeatured" gorm:"not null;default:false"`
	IsActive       bool                `json:"isActive" gorm:"not null;default:true"`
	StockQuantity  int                 `json:"stockQuantity" gorm:"not null;default:0"`
	Metadata       *JSON               `json:"metadata,omitempty" gorm:"type:jsonb"`
	SeoTitle       *string             `json:"seoTitle,omitempty" gorm:"column:seo_title;type:text"`
	SeoDescription *string             `json:"seoDescription,omitempty" gorm:"column:seo_description;type:text"`
	SeoKeywords    *JSONArray          `json:"seoKeywords,omitempty" gorm:"column:seo_keywords;type:jsonb"`
	Variations     []*ProductVariation `json:"variations,omitempty" gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	Images         []*ProductImage     `json:"images,omitempty" gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt      time.Time           `json:"createdAt"`
	UpdatedAt      time.Time           `json:"updatedAt"`
	DeletedAt      *gorm.DeletedAt     `json:"deletedAt,omitempty" gorm:"index"`
	CreatedBy      *string             `json:"createdBy,omitempty"`
	UpdatedBy      *string             `json:"updatedBy,omitempty"`
}

// Handle returns the source handle stored in the product metadata, if any.
func (p *Product) Handle() string {
	if p.Metadata == nil {
		return ""
	}
	if h, ok := (*p.Metadata)[MetadataKeyHandle].(string); ok {
		return h
	}
	return ""
}

// SetHandle records the source handle in the product metadata.
func (p *Product) SetHandle(handle string) {
	if handle == "" {
		return
	}
	if p.Metadata == nil {
		m := make(JSON)
		p.Metadata = &m
	}
	(*p.Metadata)[MetadataKeyHandle] = handle
}

// ProductVariation represents one purchasable size x frame combination of a
// product. SKU is globally unique; the (size, frame) pair is unique within a
// product.
type ProductVariation struct {
	ID            uuid.UUID       `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	ProductID     uuid.UUID       `json:"productId" gorm:"type:uuid;not null;index;index:idx_variations_product_size_frame,unique"`
	SizeID        uuid.UUID       `json:"sizeId" gorm:"type:uuid;not null;index:idx_variations_product_size_frame,unique"`
	FrameTypeID   uuid.UUID       `json:"frameTypeId" gorm:"type:uuid;not null;index:idx_variations_product_size_frame,unique"`
	SKU           string          `json:"sku" gorm:"not null;unique"`
	Price         float64         `json:"price" gorm:"not null"`
	StockQuantity int             `json:"stockQuantity" gorm:"not null;default:10"`
	IsActive      bool            `json:"isActive" gorm:"not null;default:true"`
	Size          *Size           `json:"size,omitempty" gorm:"foreignKey:SizeID"`
	FrameType     *FrameType      `json:"frameType,omitempty" gorm:"foreignKey:FrameTypeID"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
	DeletedAt     *gorm.DeletedAt `json:"deletedAt,omitempty" gorm:"index"`
}

// ProductImage represents a hosted image linked to a product. Exactly one
// image per product should carry the primary flag.
type ProductImage struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	ProductID uuid.UUID `json:"productId" gorm:"type:uuid;not null;index"`
	URL       string    `json:"url" gorm:"not null"`
	IsPrimary bool      `json:"isPrimary" gorm:"not null;default:false"`
	SortOrder int       `json:"sortOrder" gorm:"not null;default:0"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Size is a shared lookup table for print sizes. Created on demand during
// import with a derived short code and placeholder dimensions.
type Size struct {
	ID              uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID        string    `json:"tenantId" gorm:"not null;index:idx_sizes_tenant_name,unique"`
	Name            string    `json:"name" gorm:"not null;index:idx_sizes_tenant_name,unique"`
	Code            string    `json:"code" gorm:"not null"`
	Dimensions      string    `json:"dimensions"`
	PriceAdjustment float64   `json:"priceAdjustment" gorm:"not null;default:0"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// FrameType is a shared lookup table for frame options. Created on demand
// during import with placeholder material text.
type FrameType struct {
	ID              uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID        string    `json:"tenantId" gorm:"not null;index:idx_frame_types_tenant_name,unique"`
	Name            string    `json:"name" gorm:"not null;index:idx_frame_types_tenant_name,unique"`
	Material        string    `json:"material"`
	PriceAdjustment float64   `json:"priceAdjustment" gorm:"not null;default:0"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Category is a shared lookup table, get-or-create by name.
type Category struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID  string    `json:"tenantId" gorm:"not null;index:idx_categories_tenant_name,unique"`
	Name      string    `json:"name" gorm:"not null;index:idx_categories_tenant_name,unique"`
	Slug      string    `json:"slug" gorm:"not null"`
	IsActive  bool      `json:"isActive" gorm:"not null;default:true"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Brand is a shared lookup table, get-or-create by name.
type Brand struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID  string    `json:"tenantId" gorm:"not null;index:idx_brands_tenant_name,unique"`
	Name      string    `json:"name" gorm:"not null;index:idx_brands_tenant_name,unique"`
	Slug      string    `json:"slug" gorm:"not null"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// VariationSpec names a desired size x frame combination by option names.
// Unknown names are created on demand as lookup rows.
type VariationSpec struct {
	SizeName      string   `json:"sizeName" binding:"required"`
	FrameTypeName string   `json:"frameTypeName" binding:"required"`
	Price         *float64 `json:"price,omitempty"`
	StockQuantity *int     `json:"stockQuantity,omitempty"`
}

// CreateProductRequest represents a request to create a new product
type CreateProductRequest struct {
	Name           string          `json:"name" binding:"required"`
	Slug           *string         `json:"slug,omitempty"`
	Description    *string         `json:"description,omitempty"`
	Price          float64         `json:"price" binding:"required"`
	CategoryName   *string         `json:"categoryName,omitempty"`
	BrandName      *string         `json:"brandName,omitempty"`
	ImageURL       *string         `json:"imageUrl,omitempty"`
	IsFeatured     *bool           `json:"isFeatured,omitempty"`
	IsActive       *bool           `json:"isActive,omitempty"`
	StockQuantity  *int            `json:"stockQuantity,omitempty"`
	SeoTitle       *string         `json:"seoTitle,omitempty"`
	SeoDescription *string         `json:"seoDescription,omitempty"`
	SeoKeywords    []string        `json:"seoKeywords,omitempty"`
	Metadata       *JSON           `json:"metadata,omitempty"`
	Variations     []VariationSpec `json:"variations,omitempty"`
}

// UpdateProductRequest represents a request to update a product
type UpdateProductRequest struct {
	Name           *string  `json:"name,omitempty"`
	Slug           *string  `json:"slug,omitempty"`
	Description    *string  `json:"description,omitempty"`
	Price          *float64 `json:"price,omitempty"`
	CategoryName   *string  `json:"categoryName,omitempty"`
	BrandName      *string  `json:"brandName,omitempty"`
	ImageURL       *string  `json:"imageUrl,omitempty"`
	IsFeatured     *bool    `json:"isFeatured,omitempty"`
	IsActive       *bool    `json:"isActive,omitempty"`
	StockQuantity  *int     `json:"stockQuantity,omitempty"`
	SeoTitle       *string  `json:"seoTitle,omitempty"`
	SeoDescription *string  `json:"seoDescription,omitempty"`
	SeoKeywords    []string `json:"seoKeywords,omitempty"`
}

// AddImageRequest represents a request to add an image to a product
type AddImageRequest struct {
	URL       string `json:"url" binding:"required"`
	IsPrimary *bool  `json:"isPrimary,omitempty"`
	SortOrder *int   `json:"sortOrder,omitempty"`
}

// Response types

type PaginationInfo struct {
	Page        int   `json:"page"`
	Limit       int   `json:"limit"`
	Total       int64 `json:"total"`
	TotalPages  int   `json:"totalPages"`
	HasNext     bool  `json:"hasNext"`
	HasPrevious bool  `json:"hasPrevious"`
}

type ProductResponse struct {
	Success bool     `json:"success"`
	Data    *Product `json:"data"`
	Message *string  `json:"message,omitempty"`
}

type ProductListResponse struct {
	Success    bool            `json:"success"`
	Data       []Product       `json:"data"`
	Pagination *PaginationInfo `json:"pagination"`
}

type VariationResponse struct {
	Success bool              `json:"success"`
	Data    *ProductVariation `json:"data"`
	Message *string           `json:"message,omitempty"`
}

type ErrorResponse struct {
	Success bool  `json:"success"`
	Error   Error `json:"error"`
}

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

type SuccessResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message *string     `json:"message,omitempty"`
}

// TableName returns the table name for the Product model
func (Product) TableName() string {
	return "products"
}

// TableName returns the table name for the ProductVariation model
func (ProductVariation) TableName() string {
	return "product_variations"
}

// TableName returns the table name for the ProductImage model
func (ProductImage) TableName() string {
	return "product_images"
}

// TableName returns the table name for the Size model
func (Size) TableName() string {
	return "sizes"
}

// TableName returns the table name for the FrameType model
func (FrameType) TableName() string {
	return "frame_types"
}

// TableName returns the table name for the Category model
func (Category) TableName() string {
	return "categories"
}

// TableName returns the table name for the Brand model
func (Brand) TableName() string {
	return "brands"
}
