package repository

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"catalog-service/internal/importer"
	"catalog-service/internal/models"
)

// Cache TTL constants
const (
	ProductCacheTTL     = 5 * time.Minute  // Single product cache
	ProductListCacheTTL = 2 * time.Minute  // Product list cache (shorter due to frequent changes)
	LookupCacheTTL      = 30 * time.Minute // Sizes, frames, categories rarely change
)

const cacheKeyPrefix = "catalog:"

// CatalogRepository is the persistence layer for products, variations,
// images and the shared lookup tables. Reads go through Redis when a client
// is configured; writes invalidate.
type CatalogRepository struct {
	db    *gorm.DB
	redis *redis.Client
	log   *logrus.Entry
}

func NewCatalogRepository(db *gorm.DB, redisClient *redis.Client) *CatalogRepository {
	return &CatalogRepository{
		db:    db,
		redis: redisClient,
		log:   logrus.WithField("component", "catalog-repository"),
	}
}

// withDB returns a copy of the repository bound to a different gorm handle,
// used to scope a repository to a transaction.
func (r *CatalogRepository) withDB(db *gorm.DB) *CatalogRepository {
	return &CatalogRepository{db: db, redis: r.redis, log: r.log}
}

// Transaction runs fn inside one database transaction. The store passed to fn
// shares this repository's cache client but runs its reads and writes on the
// transaction connection.
func (r *CatalogRepository) Transaction(ctx context.Context, fn func(tx importer.Store) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(r.withDB(tx))
	})
}

// Cache helpers

func (r *CatalogRepository) cacheGet(ctx context.Context, key string, out interface{}) bool {
	if r.redis == nil {
		return false
	}
	data, err := r.redis.Get(ctx, cacheKeyPrefix+key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(data, out) == nil
}

func (r *CatalogRepository) cacheSet(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if r.redis == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := r.redis.Set(ctx, cacheKeyPrefix+key, data, ttl).Err(); err != nil {
		r.log.WithError(err).Debug("Cache write failed")
	}
}

func (r *CatalogRepository) cacheDeletePattern(ctx context.Context, pattern string) {
	if r.redis == nil {
		return
	}
	iter := r.redis.Scan(ctx, 0, cacheKeyPrefix+pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if len(keys) > 0 {
		_ = r.redis.Del(ctx, keys...).Err()
	}
}

// generateListCacheKey creates a deterministic cache key for list queries
func generateListCacheKey(tenantID string, prefix string, params interface{}) string {
	data, _ := json.Marshal(params)
	hash := md5.Sum(data)
	return fmt.Sprintf("%s:%s:%s", prefix, tenantID, hex.EncodeToString(hash[:]))
}

// invalidateProductCaches invalidates all caches related to a product
func (r *CatalogRepository) invalidateProductCaches(ctx context.Context, tenantID string, productID uuid.UUID) {
	if r.redis == nil {
		return
	}
	_ = r.redis.Del(ctx, cacheKeyPrefix+fmt.Sprintf("product:%s:%s", tenantID, productID.String())).Err()
	r.cacheDeletePattern(ctx, fmt.Sprintf("products:list:%s:*", tenantID))
}

// Product operations

type ProductFilters struct {
	Search     string
	CategoryID *uuid.UUID
	IsFeatured *bool
	IsActive   *bool
	Page       int
	Limit      int
}

// ListProducts returns a page of products for a tenant with total count.
func (r *CatalogRepository) ListProducts(ctx context.Context, tenantID string, filters ProductFilters) ([]models.Product, int64, error) {
	// Page-size policy lives in the handler; these are floor guards only.
	if filters.Page < 1 {
		filters.Page = 1
	}
	if filters.Limit < 1 {
		filters.Limit = 1
	}

	type cachedList struct {
		Products []models.Product `json:"products"`
		Total    int64            `json:"total"`
	}
	cacheKey := generateListCacheKey(tenantID, "products:list", filters)
	var cached cachedList
	if r.cacheGet(ctx, cacheKey, &cached) {
		return cached.Products, cached.Total, nil
	}

	query := r.db.WithContext(ctx).Model(&models.Product{}).Where("tenant_id = ?", tenantID)
	if filters.Search != "" {
		pattern := "%" + filters.Search + "%"
		query = query.Where("name ILIKE ? OR description ILIKE ?", pattern, pattern)
	}
	if filters.CategoryID != nil {
		query = query.Where("category_id = ?", *filters.CategoryID)
	}
	if filters.IsFeatured != nil {
		query = query.Where("is_featured = ?", *filters.IsFeatured)
	}
	if filters.IsActive != nil {
		query = query.Where("is_active = ?", *filters.IsActive)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var products []models.Product
	offset := (filters.Page - 1) * filters.Limit
	err := query.
		Preload("Variations").
		Preload("Variations.Size").
		Preload("Variations.FrameType").
		Preload("Images").
		Order("created_at DESC").
		Offset(offset).
		Limit(filters.Limit).
		Find(&products).Error
	if err != nil {
		return nil, 0, err
	}

	r.cacheSet(ctx, cacheKey, cachedList{Products: products, Total: total}, ProductListCacheTTL)
	return products, total, nil
}

// GetProduct fetches a product by ID with variations and images preloaded.
func (r *CatalogRepository) GetProduct(ctx context.Context, tenantID string, id uuid.UUID) (*models.Product, error) {
	cacheKey := fmt.Sprintf("product:%s:%s", tenantID, id.String())
	var cached models.Product
	if r.cacheGet(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	var product models.Product
	err := r.db.WithContext(ctx).
		Preload("Variations").
		Preload("Variations.Size").
		Preload("Variations.FrameType").
		Preload("Images").
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	r.cacheSet(ctx, cacheKey, product, ProductCacheTTL)
	return &product, nil
}

// GetProductByName finds a product by exact, case-sensitive name match. Name
// is the import identity for files without handles, and a case-insensitive
// match would silently merge distinct products.
func (r *CatalogRepository) GetProductByName(ctx context.Context, tenantID, name string) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND name = ?", tenantID, name).
		First(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// GetProductByHandle finds a product by the source handle recorded in its
// metadata at import time.
func (r *CatalogRepository) GetProductByHandle(ctx context.Context, tenantID, handle string) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND metadata->>? = ?", tenantID, models.MetadataKeyHandle, handle).
		First(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// CreateProduct inserts a product. The tenant is taken from the model.
func (r *CatalogRepository) CreateProduct(ctx context.Context, product *models.Product) error {
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}
	if product.Slug == nil || *product.Slug == "" {
		slug := fmt.Sprintf("%s-%s", importer.Slugify(product.Name), product.ID.String()[:8])
		product.Slug = &slug
	}
	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		return err
	}
	r.cacheDeletePattern(context.Background(), fmt.Sprintf("products:list:%s:*", product.TenantID))
	return nil
}

// UpdateProductFields applies a partial column update to a product.
func (r *CatalogRepository) UpdateProductFields(ctx context.Context, tenantID string, id uuid.UUID, fields map[string]interface{}) error {
	result := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	r.invalidateProductCaches(context.Background(), tenantID, id)
	return nil
}

// DeleteProduct soft-deletes a product. Variations and images cascade.
func (r *CatalogRepository) DeleteProduct(ctx context.Context, tenantID string, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Delete(&models.Product{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	r.invalidateProductCaches(context.Background(), tenantID, id)
	return nil
}

// Variation operations

// ListVariations returns all live variations of a product.
func (r *CatalogRepository) ListVariations(ctx context.Context, productID uuid.UUID) ([]models.ProductVariation, error) {
	var variations []models.ProductVariation
	err := r.db.WithContext(ctx).
		Preload("Size").
		Preload("FrameType").
		Where("product_id = ?", productID).
		Order("created_at ASC").
		Find(&variations).Error
	return variations, err
}

// GetVariation fetches one variation by ID.
func (r *CatalogRepository) GetVariation(ctx context.Context, id uuid.UUID) (*models.ProductVariation, error) {
	var variation models.ProductVariation
	err := r.db.WithContext(ctx).
		Preload("Size").
		Preload("FrameType").
		Where("id = ?", id).
		First(&variation).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &variation, nil
}

// CreateVariation inserts a variation row.
func (r *CatalogRepository) CreateVariation(ctx context.Context, variation *models.ProductVariation) error {
	if variation.ID == uuid.Nil {
		variation.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(variation).Error
}

// UpdateVariationFields applies a partial column update to a variation.
func (r *CatalogRepository) UpdateVariationFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	result := r.db.WithContext(ctx).
		Model(&models.ProductVariation{}).
		Where("id = ?", id).
		Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteVariation soft-deletes a variation.
func (r *CatalogRepository) DeleteVariation(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.ProductVariation{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SKUExists reports whether a SKU is taken anywhere in the catalog, soft
// deleted rows included so a pruned SKU is never reissued.
func (r *CatalogRepository) SKUExists(ctx context.Context, sku string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Unscoped().
		Model(&models.ProductVariation{}).
		Where("sku = ?", sku).
		Count(&count).Error
	return count > 0, err
}

// Image operations

// ListImages returns a product's images, primary first.
func (r *CatalogRepository) ListImages(ctx context.Context, productID uuid.UUID) ([]models.ProductImage, error) {
	var images []models.ProductImage
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("is_primary DESC, sort_order ASC").
		Find(&images).Error
	return images, err
}

// GetImage fetches one image row.
func (r *CatalogRepository) GetImage(ctx context.Context, id uuid.UUID) (*models.ProductImage, error) {
	var image models.ProductImage
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&image).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &image, nil
}

// CreateImage inserts an image row.
func (r *CatalogRepository) CreateImage(ctx context.Context, image *models.ProductImage) error {
	if image.ID == uuid.Nil {
		image.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(image).Error
}

// DeleteImage removes an image row.
func (r *CatalogRepository) DeleteImage(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.ProductImage{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Lookup tables
//
// Get-or-create runs as a single conflict-tolerant insert followed by a read,
// so concurrent workers racing on the same name both land on the same row
// instead of one of them failing on the unique index.

// GetOrCreateCategory returns the tenant's category with the given name,
// creating it if absent. The second return reports whether a row was created.
func (r *CatalogRepository) GetOrCreateCategory(ctx context.Context, tenantID, name string) (*models.Category, bool, error) {
	category := models.Category{
		ID:       uuid.New(),
		TenantID: tenantID,
		Name:     name,
		Slug:     importer.Slugify(name),
		IsActive: true,
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "name"}},
			DoNothing: true,
		}).
		Create(&category)
	if result.Error != nil {
		return nil, false, result.Error
	}
	created := result.RowsAffected > 0
	if !created {
		if err := r.db.WithContext(ctx).
			Where("tenant_id = ? AND name = ?", tenantID, name).
			First(&category).Error; err != nil {
			return nil, false, err
		}
	}
	return &category, created, nil
}

// GetOrCreateBrand returns the tenant's brand with the given name, creating
// it if absent.
func (r *CatalogRepository) GetOrCreateBrand(ctx context.Context, tenantID, name string) (*models.Brand, bool, error) {
	brand := models.Brand{
		ID:       uuid.New(),
		TenantID: tenantID,
		Name:     name,
		Slug:     importer.Slugify(name),
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "name"}},
			DoNothing: true,
		}).
		Create(&brand)
	if result.Error != nil {
		return nil, false, result.Error
	}
	created := result.RowsAffected > 0
	if !created {
		if err := r.db.WithContext(ctx).
			Where("tenant_id = ? AND name = ?", tenantID, name).
			First(&brand).Error; err != nil {
			return nil, false, err
		}
	}
	return &brand, created, nil
}

// GetOrCreateSize returns the tenant's size with the given name, creating it
// with the derived code if absent.
func (r *CatalogRepository) GetOrCreateSize(ctx context.Context, tenantID, name, code string) (*models.Size, bool, error) {
	size := models.Size{
		ID:       uuid.New(),
		TenantID: tenantID,
		Name:     name,
		Code:     code,
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "name"}},
			DoNothing: true,
		}).
		Create(&size)
	if result.Error != nil {
		return nil, false, result.Error
	}
	created := result.RowsAffected > 0
	if !created {
		if err := r.db.WithContext(ctx).
			Where("tenant_id = ? AND name = ?", tenantID, name).
			First(&size).Error; err != nil {
			return nil, false, err
		}
	}
	return &size, created, nil
}

// GetOrCreateFrameType returns the tenant's frame type with the given name,
// creating it if absent.
func (r *CatalogRepository) GetOrCreateFrameType(ctx context.Context, tenantID, name string) (*models.FrameType, bool, error) {
	frame := models.FrameType{
		ID:       uuid.New(),
		TenantID: tenantID,
		Name:     name,
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "name"}},
			DoNothing: true,
		}).
		Create(&frame)
	if result.Error != nil {
		return nil, false, result.Error
	}
	created := result.RowsAffected > 0
	if !created {
		if err := r.db.WithContext(ctx).
			Where("tenant_id = ? AND name = ?", tenantID, name).
			First(&frame).Error; err != nil {
			return nil, false, err
		}
	}
	return &frame, created, nil
}

// UpdateSizeFields applies a partial column update to a size.
func (r *CatalogRepository) UpdateSizeFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).
		Model(&models.Size{}).
		Where("id = ?", id).
		Updates(fields).Error
}

// UpdateFrameTypeFields applies a partial column update to a frame type.
func (r *CatalogRepository) UpdateFrameTypeFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).
		Model(&models.FrameType{}).
		Where("id = ?", id).
		Updates(fields).Error
}

// ListSizes returns all sizes for a tenant.
func (r *CatalogRepository) ListSizes(ctx context.Context, tenantID string) ([]models.Size, error) {
	cacheKey := fmt.Sprintf("sizes:%s", tenantID)
	var cached []models.Size
	if r.cacheGet(ctx, cacheKey, &cached) {
		return cached, nil
	}
	var sizes []models.Size
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("price_adjustment ASC").
		Find(&sizes).Error
	if err != nil {
		return nil, err
	}
	r.cacheSet(ctx, cacheKey, sizes, LookupCacheTTL)
	return sizes, nil
}

// ListFrameTypes returns all frame types for a tenant.
func (r *CatalogRepository) ListFrameTypes(ctx context.Context, tenantID string) ([]models.FrameType, error) {
	cacheKey := fmt.Sprintf("frame_types:%s", tenantID)
	var cached []models.FrameType
	if r.cacheGet(ctx, cacheKey, &cached) {
		return cached, nil
	}
	var frames []models.FrameType
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("price_adjustment ASC").
		Find(&frames).Error
	if err != nil {
		return nil, err
	}
	r.cacheSet(ctx, cacheKey, frames, LookupCacheTTL)
	return frames, nil
}

// ListCategories returns all categories for a tenant.
func (r *CatalogRepository) ListCategories(ctx context.Context, tenantID string) ([]models.Category, error) {
	cacheKey := fmt.Sprintf("categories:%s", tenantID)
	var cached []models.Category
	if r.cacheGet(ctx, cacheKey, &cached) {
		return cached, nil
	}
	var categories []models.Category
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("name ASC").
		Find(&categories).Error
	if err != nil {
		return nil, err
	}
	r.cacheSet(ctx, cacheKey, categories, LookupCacheTTL)
	return categories, nil
}
