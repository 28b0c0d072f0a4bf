package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"catalog-service/internal/importer"
	"catalog-service/internal/middleware"
	"catalog-service/internal/models"
	"catalog-service/internal/repository"
)

// BatchOperation is one admin batch item: an operation name plus its payload.
type BatchOperation struct {
	Operation string          `json:"operation" binding:"required"`
	Data      json.RawMessage `json:"data" binding:"required"`
}

// BatchRequest is a list of operations executed in order.
type BatchRequest struct {
	Operations []BatchOperation `json:"operations" binding:"required,min=1"`
}

// BatchOperationResult is the per-item outcome of a batch run.
type BatchOperationResult struct {
	Index     int         `json:"index"`
	Operation string      `json:"operation"`
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// BatchHandler executes scripted catalog setup: seed sizes and frame types,
// then products, variations and images, all in one request.
type BatchHandler struct {
	repo *repository.CatalogRepository
	log  *logrus.Entry
}

func NewBatchHandler(repo *repository.CatalogRepository) *BatchHandler {
	return &BatchHandler{
		repo: repo,
		log:  logrus.WithField("component", "batch-handler"),
	}
}

// ExecuteBatch runs a list of operations sequentially. Items fail
// individually; one bad operation does not stop the rest.
// POST /api/v1/admin/batch
func (h *BatchHandler) ExecuteBatch(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)

	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	results := make([]BatchOperationResult, len(req.Operations))
	failed := 0
	for i, op := range req.Operations {
		data, err := h.execute(c, tenantID, op)
		results[i] = BatchOperationResult{
			Index:     i,
			Operation: op.Operation,
			Success:   err == nil,
			Data:      data,
		}
		if err != nil {
			results[i].Error = err.Error()
			failed++
			h.log.WithFields(logrus.Fields{
				"operation": op.Operation,
				"index":     i,
			}).WithError(err).Warn("Batch operation failed")
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": failed == 0,
		"total":   len(req.Operations),
		"failed":  failed,
		"results": results,
	})
}

func (h *BatchHandler) execute(c *gin.Context, tenantID string, op BatchOperation) (interface{}, error) {
	ctx := c.Request.Context()

	switch op.Operation {
	case "create_size":
		var payload struct {
			Name            string  `json:"name"`
			Code            string  `json:"code"`
			Dimensions      string  `json:"dimensions"`
			PriceAdjustment float64 `json:"priceAdjustment"`
		}
		if err := json.Unmarshal(op.Data, &payload); err != nil {
			return nil, fmt.Errorf("invalid payload: %w", err)
		}
		if payload.Name == "" {
			return nil, fmt.Errorf("name is required")
		}
		code := payload.Code
		if code == "" {
			code = importer.SizeCode(payload.Name)
		}
		size, _, err := h.repo.GetOrCreateSize(ctx, tenantID, payload.Name, code)
		if err != nil {
			return nil, err
		}
		fields := map[string]interface{}{}
		if payload.Dimensions != "" {
			fields["dimensions"] = payload.Dimensions
		}
		if payload.PriceAdjustment != 0 {
			fields["price_adjustment"] = payload.PriceAdjustment
		}
		if len(fields) > 0 {
			if err := h.repo.UpdateSizeFields(ctx, size.ID, fields); err != nil {
				return nil, err
			}
			size.Dimensions = payload.Dimensions
			size.PriceAdjustment = payload.PriceAdjustment
		}
		return size, nil

	case "create_frame_type":
		var payload struct {
			Name            string  `json:"name"`
			Material        string  `json:"material"`
			PriceAdjustment float64 `json:"priceAdjustment"`
		}
		if err := json.Unmarshal(op.Data, &payload); err != nil {
			return nil, fmt.Errorf("invalid payload: %w", err)
		}
		if payload.Name == "" {
			return nil, fmt.Errorf("name is required")
		}
		frame, _, err := h.repo.GetOrCreateFrameType(ctx, tenantID, payload.Name)
		if err != nil {
			return nil, err
		}
		fields := map[string]interface{}{}
		if payload.Material != "" {
			fields["material"] = payload.Material
		}
		if payload.PriceAdjustment != 0 {
			fields["price_adjustment"] = payload.PriceAdjustment
		}
		if len(fields) > 0 {
			if err := h.repo.UpdateFrameTypeFields(ctx, frame.ID, fields); err != nil {
				return nil, err
			}
			frame.Material = payload.Material
			frame.PriceAdjustment = payload.PriceAdjustment
		}
		return frame, nil

	case "create_product":
		var req models.CreateProductRequest
		if err := json.Unmarshal(op.Data, &req); err != nil {
			return nil, fmt.Errorf("invalid payload: %w", err)
		}
		if req.Name == "" {
			return nil, fmt.Errorf("name is required")
		}
		product := &models.Product{
			TenantID:    tenantID,
			Name:        req.Name,
			Slug:        req.Slug,
			Description: req.Description,
			Price:       req.Price,
			ImageURL:    req.ImageURL,
			IsActive:    true,
			Metadata:    req.Metadata,
		}
		if req.IsFeatured != nil {
			product.IsFeatured = *req.IsFeatured
		}
		if req.StockQuantity != nil {
			product.StockQuantity = *req.StockQuantity
		}
		if req.CategoryName != nil && *req.CategoryName != "" {
			category, _, err := h.repo.GetOrCreateCategory(ctx, tenantID, *req.CategoryName)
			if err != nil {
				return nil, err
			}
			product.CategoryID = &category.ID
		}
		if err := h.repo.CreateProduct(ctx, product); err != nil {
			return nil, err
		}
		return product, nil

	case "update_product":
		var payload struct {
			ID     uuid.UUID              `json:"id"`
			Fields map[string]interface{} `json:"fields"`
		}
		if err := json.Unmarshal(op.Data, &payload); err != nil {
			return nil, fmt.Errorf("invalid payload: %w", err)
		}
		if payload.ID == uuid.Nil || len(payload.Fields) == 0 {
			return nil, fmt.Errorf("id and fields are required")
		}
		if err := h.repo.UpdateProductFields(ctx, tenantID, payload.ID, payload.Fields); err != nil {
			return nil, err
		}
		return h.repo.GetProduct(ctx, tenantID, payload.ID)

	case "create_variation":
		var payload struct {
			ProductID uuid.UUID `json:"productId"`
			models.VariationSpec
		}
		if err := json.Unmarshal(op.Data, &payload); err != nil {
			return nil, fmt.Errorf("invalid payload: %w", err)
		}
		product, err := h.repo.GetProduct(ctx, tenantID, payload.ProductID)
		if err != nil {
			return nil, err
		}
		if product == nil {
			return nil, fmt.Errorf("product %s not found", payload.ProductID)
		}
		size, _, err := h.repo.GetOrCreateSize(ctx, tenantID, payload.SizeName, importer.SizeCode(payload.SizeName))
		if err != nil {
			return nil, err
		}
		frame, _, err := h.repo.GetOrCreateFrameType(ctx, tenantID, payload.FrameTypeName)
		if err != nil {
			return nil, err
		}
		sku, err := importer.GenerateSKU(ctx, h.repo, product.Name, size.Code, frame.Name)
		if err != nil {
			return nil, err
		}
		price := importer.VariationPrice(product.Price, size.PriceAdjustment, frame.PriceAdjustment)
		if payload.Price != nil {
			price = *payload.Price
		}
		variation := &models.ProductVariation{
			ProductID:     product.ID,
			SizeID:        size.ID,
			FrameTypeID:   frame.ID,
			SKU:           sku,
			Price:         price,
			StockQuantity: 10,
			IsActive:      true,
		}
		if payload.StockQuantity != nil {
			variation.StockQuantity = *payload.StockQuantity
		}
		if err := h.repo.CreateVariation(ctx, variation); err != nil {
			return nil, err
		}
		return variation, nil

	case "create_product_image":
		var payload struct {
			ProductID uuid.UUID `json:"productId"`
			URL       string    `json:"url"`
			IsPrimary bool      `json:"isPrimary"`
			SortOrder int       `json:"sortOrder"`
		}
		if err := json.Unmarshal(op.Data, &payload); err != nil {
			return nil, fmt.Errorf("invalid payload: %w", err)
		}
		if payload.ProductID == uuid.Nil || payload.URL == "" {
			return nil, fmt.Errorf("productId and url are required")
		}
		image := &models.ProductImage{
			ProductID: payload.ProductID,
			URL:       payload.URL,
			IsPrimary: payload.IsPrimary,
			SortOrder: payload.SortOrder,
		}
		if err := h.repo.CreateImage(ctx, image); err != nil {
			return nil, err
		}
		return image, nil

	default:
		return nil, fmt.Errorf("unknown operation %q", op.Operation)
	}
}
