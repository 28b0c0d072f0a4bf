package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"catalog-service/internal/clients"
	"catalog-service/internal/importer"
	"catalog-service/internal/middleware"
	"catalog-service/internal/models"
	"catalog-service/internal/repository"
)

type CatalogHandler struct {
	repo            *repository.CatalogRepository
	media           *clients.MediaClient
	events          importer.EventSink
	defaultPageSize int
	maxPageSize     int
	log             *logrus.Entry
}

func NewCatalogHandler(repo *repository.CatalogRepository, media *clients.MediaClient, events importer.EventSink, defaultPageSize, maxPageSize int) *CatalogHandler {
	return &CatalogHandler{
		repo:            repo,
		media:           media,
		events:          events,
		defaultPageSize: defaultPageSize,
		maxPageSize:     maxPageSize,
		log:             logrus.WithField("component", "catalog-handler"),
	}
}

// GetProducts lists products with pagination and filters.
// GET /api/v1/catalog/products
func (h *CatalogHandler) GetProducts(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)

	filters := repository.ProductFilters{
		Search: c.Query("search"),
	}
	filters.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	if filters.Page < 1 {
		filters.Page = 1
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	filters.Limit = clampPageSize(limit, h.defaultPageSize, h.maxPageSize)
	if v := c.Query("categoryId"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			respondError(c, http.StatusBadRequest, "INVALID_CATEGORY_ID", "categoryId must be a UUID")
			return
		}
		filters.CategoryID = &id
	}
	if v := c.Query("isFeatured"); v != "" {
		featured := v == "true"
		filters.IsFeatured = &featured
	}
	if v := c.Query("isActive"); v != "" {
		active := v == "true"
		filters.IsActive = &active
	}

	products, total, err := h.repo.ListProducts(c.Request.Context(), tenantID, filters)
	if err != nil {
		h.log.WithError(err).Error("Failed to list products")
		respondError(c, http.StatusInternalServerError, "LIST_FAILED", "Failed to list products")
		return
	}

	totalPages := int((total + int64(filters.Limit) - 1) / int64(filters.Limit))
	c.JSON(http.StatusOK, models.ProductListResponse{
		Success: true,
		Data:    products,
		Pagination: &models.PaginationInfo{
			Page:        filters.Page,
			Limit:       filters.Limit,
			Total:       total,
			TotalPages:  totalPages,
			HasNext:     filters.Page < totalPages,
			HasPrevious: filters.Page > 1,
		},
	})
}

// GetProduct fetches one product with variations and images.
// GET /api/v1/catalog/products/:id
func (h *CatalogHandler) GetProduct(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	product, err := h.repo.GetProduct(c.Request.Context(), tenantID, id)
	if err != nil {
		h.log.WithError(err).Error("Failed to fetch product")
		respondError(c, http.StatusInternalServerError, "FETCH_FAILED", "Failed to fetch product")
		return
	}
	if product == nil {
		respondError(c, http.StatusNotFound, "NOT_FOUND", "Product not found")
		return
	}

	c.JSON(http.StatusOK, models.ProductResponse{Success: true, Data: product})
}

// CreateProduct creates a product, resolving category/brand names and
// creating any requested variations.
// POST /api/v1/catalog/products
func (h *CatalogHandler) CreateProduct(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)

	var req models.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	ctx := c.Request.Context()

	product := &models.Product{
		TenantID:       tenantID,
		Name:           req.Name,
		Slug:           req.Slug,
		Description:    req.Description,
		Price:          req.Price,
		ImageURL:       req.ImageURL,
		IsActive:       true,
		SeoTitle:       req.SeoTitle,
		SeoDescription: req.SeoDescription,
		Metadata:       req.Metadata,
	}
	if req.IsFeatured != nil {
		product.IsFeatured = *req.IsFeatured
	}
	if req.IsActive != nil {
		product.IsActive = *req.IsActive
	}
	if req.StockQuantity != nil {
		product.StockQuantity = *req.StockQuantity
	}
	if len(req.SeoKeywords) > 0 {
		keywords := make(models.JSONArray, len(req.SeoKeywords))
		for i, k := range req.SeoKeywords {
			keywords[i] = k
		}
		product.SeoKeywords = &keywords
	}
	if userID := middleware.GetUserID(c); userID != "" {
		product.CreatedBy = &userID
	}

	if req.CategoryName != nil && *req.CategoryName != "" {
		category, _, err := h.repo.GetOrCreateCategory(ctx, tenantID, *req.CategoryName)
		if err != nil {
			h.log.WithError(err).Error("Failed to resolve category")
			respondError(c, http.StatusInternalServerError, "CATEGORY_FAILED", "Failed to resolve category")
			return
		}
		product.CategoryID = &category.ID
	}
	if req.BrandName != nil && *req.BrandName != "" {
		brand, _, err := h.repo.GetOrCreateBrand(ctx, tenantID, *req.BrandName)
		if err != nil {
			h.log.WithError(err).Error("Failed to resolve brand")
			respondError(c, http.StatusInternalServerError, "BRAND_FAILED", "Failed to resolve brand")
			return
		}
		product.BrandID = &brand.ID
	}

	if err := h.repo.CreateProduct(ctx, product); err != nil {
		h.log.WithError(err).Error("Failed to create product")
		respondError(c, http.StatusConflict, "CREATE_FAILED", "Failed to create product; the name may already be taken")
		return
	}

	for _, spec := range req.Variations {
		if _, err := h.createVariationFromSpec(c, tenantID, product, spec); err != nil {
			h.log.WithError(err).WithField("product_id", product.ID).Warn("Failed to create variation")
		}
	}

	if h.events != nil {
		h.events.ProductCreated(tenantID, product)
	}

	created, err := h.repo.GetProduct(ctx, tenantID, product.ID)
	if err != nil || created == nil {
		created = product
	}
	c.JSON(http.StatusCreated, models.ProductResponse{Success: true, Data: created})
}

// UpdateProduct applies a partial update.
// PUT /api/v1/catalog/products/:id
func (h *CatalogHandler) UpdateProduct(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req models.UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	ctx := c.Request.Context()
	fields := map[string]interface{}{}
	if req.Name != nil {
		fields["name"] = *req.Name
	}
	if req.Slug != nil {
		fields["slug"] = *req.Slug
	}
	if req.Description != nil {
		fields["description"] = *req.Description
	}
	if req.Price != nil {
		fields["price"] = *req.Price
	}
	if req.ImageURL != nil {
		fields["image_url"] = *req.ImageURL
	}
	if req.IsFeatured != nil {
		fields["is_featured"] = *req.IsFeatured
	}
	if req.IsActive != nil {
		fields["is_active"] = *req.IsActive
	}
	if req.StockQuantity != nil {
		fields["stock_quantity"] = *req.StockQuantity
	}
	if req.SeoTitle != nil {
		fields["seo_title"] = *req.SeoTitle
	}
	if req.SeoDescription != nil {
		fields["seo_description"] = *req.SeoDescription
	}
	if req.CategoryName != nil && *req.CategoryName != "" {
		category, _, err := h.repo.GetOrCreateCategory(ctx, tenantID, *req.CategoryName)
		if err != nil {
			respondError(c, http.StatusInternalServerError, "CATEGORY_FAILED", "Failed to resolve category")
			return
		}
		fields["category_id"] = category.ID
	}
	if req.BrandName != nil && *req.BrandName != "" {
		brand, _, err := h.repo.GetOrCreateBrand(ctx, tenantID, *req.BrandName)
		if err != nil {
			respondError(c, http.StatusInternalServerError, "BRAND_FAILED", "Failed to resolve brand")
			return
		}
		fields["brand_id"] = brand.ID
	}
	if userID := middleware.GetUserID(c); userID != "" {
		fields["updated_by"] = userID
	}

	if len(fields) == 0 {
		respondError(c, http.StatusBadRequest, "EMPTY_UPDATE", "No fields to update")
		return
	}

	if err := h.repo.UpdateProductFields(ctx, tenantID, id, fields); err != nil {
		respondError(c, http.StatusNotFound, "NOT_FOUND", "Product not found")
		return
	}

	product, err := h.repo.GetProduct(ctx, tenantID, id)
	if err != nil || product == nil {
		respondError(c, http.StatusInternalServerError, "FETCH_FAILED", "Failed to fetch updated product")
		return
	}

	if h.events != nil {
		h.events.ProductUpdated(tenantID, product)
	}
	c.JSON(http.StatusOK, models.ProductResponse{Success: true, Data: product})
}

// DeleteProduct soft-deletes a product and its variations.
// DELETE /api/v1/catalog/products/:id
func (h *CatalogHandler) DeleteProduct(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.repo.DeleteProduct(c.Request.Context(), tenantID, id); err != nil {
		respondError(c, http.StatusNotFound, "NOT_FOUND", "Product not found")
		return
	}

	message := "Product deleted"
	c.JSON(http.StatusOK, models.SuccessResponse{Success: true, Message: &message})
}

// Variations

// GetVariations lists a product's variations.
// GET /api/v1/catalog/products/:id/variations
func (h *CatalogHandler) GetVariations(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	product, err := h.repo.GetProduct(c.Request.Context(), tenantID, id)
	if err != nil || product == nil {
		respondError(c, http.StatusNotFound, "NOT_FOUND", "Product not found")
		return
	}

	variations, err := h.repo.ListVariations(c.Request.Context(), id)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "LIST_FAILED", "Failed to list variations")
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse{Success: true, Data: variations})
}

// CreateVariation creates a single variation from option names.
// POST /api/v1/catalog/products/:id/variations
func (h *CatalogHandler) CreateVariation(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var spec models.VariationSpec
	if err := c.ShouldBindJSON(&spec); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	product, err := h.repo.GetProduct(c.Request.Context(), tenantID, id)
	if err != nil || product == nil {
		respondError(c, http.StatusNotFound, "NOT_FOUND", "Product not found")
		return
	}

	variation, err := h.createVariationFromSpec(c, tenantID, product, spec)
	if err != nil {
		h.log.WithError(err).Error("Failed to create variation")
		respondError(c, http.StatusConflict, "CREATE_FAILED", "Failed to create variation; the combination may already exist")
		return
	}
	c.JSON(http.StatusCreated, models.VariationResponse{Success: true, Data: variation})
}

// UpdateVariation updates a variation's price or stock.
// PUT /api/v1/catalog/variations/:id
func (h *CatalogHandler) UpdateVariation(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req struct {
		Price         *float64 `json:"price,omitempty"`
		StockQuantity *int     `json:"stockQuantity,omitempty"`
		IsActive      *bool    `json:"isActive,omitempty"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	fields := map[string]interface{}{}
	if req.Price != nil {
		fields["price"] = *req.Price
	}
	if req.StockQuantity != nil {
		fields["stock_quantity"] = *req.StockQuantity
	}
	if req.IsActive != nil {
		fields["is_active"] = *req.IsActive
	}
	if len(fields) == 0 {
		respondError(c, http.StatusBadRequest, "EMPTY_UPDATE", "No fields to update")
		return
	}

	if err := h.repo.UpdateVariationFields(c.Request.Context(), id, fields); err != nil {
		respondError(c, http.StatusNotFound, "NOT_FOUND", "Variation not found")
		return
	}

	variation, err := h.repo.GetVariation(c.Request.Context(), id)
	if err != nil || variation == nil {
		respondError(c, http.StatusInternalServerError, "FETCH_FAILED", "Failed to fetch updated variation")
		return
	}
	c.JSON(http.StatusOK, models.VariationResponse{Success: true, Data: variation})
}

// DeleteVariation removes a variation. Deleting a purchasable option is
// destructive, so the editor path demands explicit confirmation; only the
// import pipeline prunes without asking.
// DELETE /api/v1/catalog/variations/:id?confirm=true
func (h *CatalogHandler) DeleteVariation(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	if c.Query("confirm") != "true" {
		respondError(c, http.StatusBadRequest, "CONFIRMATION_REQUIRED",
			"Deleting a variation requires confirm=true")
		return
	}

	if err := h.repo.DeleteVariation(c.Request.Context(), id); err != nil {
		respondError(c, http.StatusNotFound, "NOT_FOUND", "Variation not found")
		return
	}

	message := "Variation deleted"
	c.JSON(http.StatusOK, models.SuccessResponse{Success: true, Message: &message})
}

// Images

// AddImage links an already-hosted image URL to a product.
// POST /api/v1/catalog/products/:id/images
func (h *CatalogHandler) AddImage(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req models.AddImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	product, err := h.repo.GetProduct(c.Request.Context(), tenantID, id)
	if err != nil || product == nil {
		respondError(c, http.StatusNotFound, "NOT_FOUND", "Product not found")
		return
	}

	image := &models.ProductImage{
		ProductID: id,
		URL:       req.URL,
		IsPrimary: req.IsPrimary != nil && *req.IsPrimary,
		SortOrder: len(product.Images),
	}
	if req.SortOrder != nil {
		image.SortOrder = *req.SortOrder
	}

	if err := h.repo.CreateImage(c.Request.Context(), image); err != nil {
		respondError(c, http.StatusInternalServerError, "CREATE_FAILED", "Failed to add image")
		return
	}
	c.JSON(http.StatusCreated, models.SuccessResponse{Success: true, Data: image})
}

// DeleteImage removes an image row.
// DELETE /api/v1/catalog/images/:id
func (h *CatalogHandler) DeleteImage(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	image, err := h.repo.GetImage(c.Request.Context(), id)
	if err != nil || image == nil {
		respondError(c, http.StatusNotFound, "NOT_FOUND", "Image not found")
		return
	}

	if err := h.repo.DeleteImage(c.Request.Context(), id); err != nil {
		respondError(c, http.StatusNotFound, "NOT_FOUND", "Image not found")
		return
	}

	// Hosted copies are cleaned up after the row is gone; a failed
	// cleanup leaves an orphan on the media host, not a broken record.
	if h.media != nil && h.media.IsHosted(image.URL) {
		tenantID := middleware.GetTenantID(c)
		go h.media.Delete(context.Background(), tenantID, image.URL)
	}

	message := "Image deleted"
	c.JSON(http.StatusOK, models.SuccessResponse{Success: true, Message: &message})
}

// Lookups

// GetSizes lists the tenant's sizes.
// GET /api/v1/catalog/sizes
func (h *CatalogHandler) GetSizes(c *gin.Context) {
	sizes, err := h.repo.ListSizes(c.Request.Context(), middleware.GetTenantID(c))
	if err != nil {
		respondError(c, http.StatusInternalServerError, "LIST_FAILED", "Failed to list sizes")
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse{Success: true, Data: sizes})
}

// GetFrameTypes lists the tenant's frame types.
// GET /api/v1/catalog/frame-types
func (h *CatalogHandler) GetFrameTypes(c *gin.Context) {
	frames, err := h.repo.ListFrameTypes(c.Request.Context(), middleware.GetTenantID(c))
	if err != nil {
		respondError(c, http.StatusInternalServerError, "LIST_FAILED", "Failed to list frame types")
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse{Success: true, Data: frames})
}

// GetCategories lists the tenant's categories.
// GET /api/v1/catalog/categories
func (h *CatalogHandler) GetCategories(c *gin.Context) {
	categories, err := h.repo.ListCategories(c.Request.Context(), middleware.GetTenantID(c))
	if err != nil {
		respondError(c, http.StatusInternalServerError, "LIST_FAILED", "Failed to list categories")
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse{Success: true, Data: categories})
}

// createVariationFromSpec resolves the size and frame names, generates a SKU
// and inserts the variation with additive pricing.
func (h *CatalogHandler) createVariationFromSpec(c *gin.Context, tenantID string, product *models.Product, spec models.VariationSpec) (*models.ProductVariation, error) {
	ctx := c.Request.Context()

	size, _, err := h.repo.GetOrCreateSize(ctx, tenantID, spec.SizeName, importer.SizeCode(spec.SizeName))
	if err != nil {
		return nil, err
	}
	frame, _, err := h.repo.GetOrCreateFrameType(ctx, tenantID, spec.FrameTypeName)
	if err != nil {
		return nil, err
	}

	sku, err := importer.GenerateSKU(ctx, h.repo, product.Name, size.Code, frame.Name)
	if err != nil {
		return nil, err
	}

	price := importer.VariationPrice(product.Price, size.PriceAdjustment, frame.PriceAdjustment)
	if spec.Price != nil {
		price = *spec.Price
	}

	variation := &models.ProductVariation{
		ProductID:   product.ID,
		SizeID:      size.ID,
		FrameTypeID: frame.ID,
		SKU:         sku,
		Price:       price,
		IsActive:    true,
	}
	if spec.StockQuantity != nil {
		variation.StockQuantity = *spec.StockQuantity
	} else {
		variation.StockQuantity = 10
	}

	if err := h.repo.CreateVariation(ctx, variation); err != nil {
		return nil, err
	}
	return variation, nil
}

// clampPageSize resolves a requested page size against the configured
// default and ceiling.
func clampPageSize(requested, fallback, max int) int {
	if requested < 1 {
		return fallback
	}
	if requested > max {
		return max
	}
	return requested
}

func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_ID", "Path parameter must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}
