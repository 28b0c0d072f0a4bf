package importer

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"catalog-service/internal/models"
)

// DefaultBatchSize is how many products are processed concurrently. Batches
// run sequentially; records within a batch run in parallel.
const DefaultBatchSize = 10

// Store is the persistence surface the pipeline needs. Lookup methods return
// (nil, nil) when no row matches. Transaction runs fn against a store bound
// to one database transaction; each imported record gets its own.
type Store interface {
	SKUChecker

	GetProductByName(ctx context.Context, tenantID, name string) (*models.Product, error)
	GetProductByHandle(ctx context.Context, tenantID, handle string) (*models.Product, error)
	CreateProduct(ctx context.Context, product *models.Product) error
	UpdateProductFields(ctx context.Context, tenantID string, id uuid.UUID, fields map[string]interface{}) error

	GetOrCreateCategory(ctx context.Context, tenantID, name string) (*models.Category, bool, error)
	GetOrCreateSize(ctx context.Context, tenantID, name, code string) (*models.Size, bool, error)
	GetOrCreateFrameType(ctx context.Context, tenantID, name string) (*models.FrameType, bool, error)

	ListVariations(ctx context.Context, productID uuid.UUID) ([]models.ProductVariation, error)
	CreateVariation(ctx context.Context, variation *models.ProductVariation) error
	UpdateVariationFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error
	DeleteVariation(ctx context.Context, id uuid.UUID) error

	CreateImage(ctx context.Context, image *models.ProductImage) error

	Transaction(ctx context.Context, fn func(tx Store) error) error
}

// MediaUploader rehosts external image URLs on the tenant's media store.
type MediaUploader interface {
	// Upload fetches sourceURL and returns the hosted URL.
	Upload(ctx context.Context, tenantID, sourceURL string) (string, error)
	// IsHosted reports whether url already points at the media store, in
	// which case re-import reuses it instead of uploading again.
	IsHosted(url string) bool
}

// EventSink publishes lifecycle events. A nil sink disables publishing.
type EventSink interface {
	ProductCreated(tenantID string, product *models.Product)
	ProductUpdated(tenantID string, product *models.Product)
	ImportCompleted(tenantID string, result *models.ImportResult)
}

// Options control a single import run.
type Options struct {
	TenantID string
	// Format overrides detection when set.
	Format models.ImportFormat
	// Mappings overrides the auto-suggested column mapping when set.
	Mappings []models.FieldMapping
	// BatchSize defaults to DefaultBatchSize.
	BatchSize int
	// ValidateOnly stops after parse/map and reports what would happen.
	ValidateOnly bool
	Progress     ProgressFunc
}

// Pipeline drives an import run end to end: detect, map, then upsert products
// batch by batch.
type Pipeline struct {
	store  Store
	media  MediaUploader
	events EventSink
	log    *logrus.Entry
}

// New builds a pipeline. media and events may be nil; image URLs then pass
// through unhosted and no events are published.
func New(store Store, media MediaUploader, events EventSink) *Pipeline {
	return &Pipeline{
		store:  store,
		media:  media,
		events: events,
		log:    logrus.WithField("component", "import-pipeline"),
	}
}

// recordOutcome is one worker's result, folded into the run totals at the
// batch join point.
type recordOutcome struct {
	stats     models.ImportStats
	errs      []models.ImportRowError
	warnings  []string
	createdID string
	updatedID string
}

// Run executes an import over an already-parsed file.
func (p *Pipeline) Run(ctx context.Context, parsed *ParsedFile, opts Options) *models.ImportResult {
	start := time.Now()

	format := opts.Format
	if format == "" || format == models.ImportFormatUnknown {
		format = DetectFormat(parsed.Headers)
	}

	result := &models.ImportResult{
		Format:    format,
		TotalRows: len(parsed.Records),
	}

	mappings := opts.Mappings
	if len(mappings) == 0 {
		mappings = AutoMapping(format, parsed.Headers)
	}
	if len(mappings) == 0 {
		result.Errors = append(result.Errors, models.ImportRowError{
			Code:    "FORMAT_UNKNOWN",
			Message: "Could not detect the file format; provide a column mapping",
		})
		result.ProcessingMs = time.Since(start).Milliseconds()
		return result
	}

	var candidates []Candidate
	var mapErrs []models.ImportRowError

	if format == models.ImportFormatShopify {
		groups, orphans := GroupByHandle(parsed.Records)
		for _, o := range orphans {
			mapErrs = append(mapErrs, models.ImportRowError{
				Row:     o.Row,
				Column:  "Handle",
				Code:    "HANDLE_MISSING",
				Message: "Shopify rows must carry a handle",
			})
		}
		var groupErrs []models.ImportRowError
		candidates, groupErrs = MapShopify(groups, mappings)
		mapErrs = append(mapErrs, groupErrs...)
	} else {
		candidates, mapErrs = MapStandard(parsed.Records, mappings)
	}

	result.Errors = append(result.Errors, mapErrs...)
	for i := range candidates {
		result.Warnings = append(result.Warnings, candidates[i].Warnings...)
		candidates[i].Warnings = nil
	}

	if len(candidates) == 0 {
		result.Errors = append(result.Errors, models.ImportRowError{
			Code:    "NO_VALID_RECORDS",
			Message: "No importable records after mapping",
		})
		result.ProcessingMs = time.Since(start).Milliseconds()
		return result
	}

	if opts.ValidateOnly {
		result.Success = len(result.Errors) == 0
		result.Stats.TotalProducts = len(candidates)
		result.ProcessingMs = time.Since(start).Milliseconds()
		return result
	}

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	totalBatches := (len(candidates) + batchSize - 1) / batchSize
	result.TotalBatches = totalBatches

	reporter := newProgressReporter(totalBatches, opts.Progress, p.log)
	reporter.stage("importing")

	for bi := 0; bi < totalBatches; bi++ {
		lo := bi * batchSize
		hi := lo + batchSize
		if hi > len(candidates) {
			hi = len(candidates)
		}
		batch := candidates[lo:hi]

		outcomes := make([]recordOutcome, len(batch))
		var wg sync.WaitGroup
		for i := range batch {
			wg.Add(1)
			go func(i int, cand Candidate) {
				defer wg.Done()
				outcomes[i] = p.processRecord(ctx, opts.TenantID, format, cand, reporter)
			}(i, batch[i])
		}
		wg.Wait()

		var batchStats models.ImportStats
		var batchErrs []models.ImportRowError
		for _, o := range outcomes {
			batchStats = MergeStats(batchStats, o.stats)
			batchErrs = append(batchErrs, o.errs...)
			result.Warnings = append(result.Warnings, o.warnings...)
			if o.createdID != "" {
				result.CreatedIDs = append(result.CreatedIDs, o.createdID)
			}
			if o.updatedID != "" {
				result.UpdatedIDs = append(result.UpdatedIDs, o.updatedID)
			}
		}

		result.Stats = MergeStats(result.Stats, batchStats)
		result.Errors = append(result.Errors, batchErrs...)
		result.BatchResults = append(result.BatchResults, models.BatchResult{
			BatchNumber: bi + 1,
			StartRow:    batch[0].Row,
			EndRow:      batch[len(batch)-1].Row,
			Stats:       batchStats,
			Errors:      batchErrs,
		})

		reporter.batchDone(bi + 1)
	}

	result.Success = result.Stats.ProductsFailed == 0
	result.ProcessingMs = time.Since(start).Milliseconds()

	if p.events != nil {
		p.events.ImportCompleted(opts.TenantID, result)
	}

	return result
}

// processRecord imports a single candidate: image rehosting, then product
// upsert and variation reconciliation inside one transaction, then image row
// linkage. A failure here marks this record failed and touches nothing else.
func (p *Pipeline) processRecord(ctx context.Context, tenantID string, format models.ImportFormat, cand Candidate, reporter *progressReporter) recordOutcome {
	out := recordOutcome{}
	out.stats.TotalProducts = 1

	hostedURLs := p.resolveImages(ctx, tenantID, cand, &out, reporter)

	var categoryID *uuid.UUID
	if cand.Category != "" {
		category, created, err := p.store.GetOrCreateCategory(ctx, tenantID, cand.Category)
		if err != nil {
			return p.failRecord(out, cand, fmt.Errorf("failed to resolve category: %w", err))
		}
		categoryID = &category.ID
		if created {
			out.stats.CategoriesCreated++
		}
	}

	var product *models.Product
	var created bool

	err := p.store.Transaction(ctx, func(tx Store) error {
		var err error
		product, created, err = p.upsertProduct(ctx, tx, tenantID, format, cand, categoryID, hostedURLs)
		if err != nil {
			return err
		}
		return p.reconcileVariations(ctx, tx, tenantID, cand, product, &out)
	})
	if err != nil {
		return p.failRecord(out, cand, err)
	}

	if created {
		out.stats.ProductsCreated++
		out.createdID = product.ID.String()
		p.linkImages(ctx, product.ID, hostedURLs, &out)
		if p.events != nil {
			p.events.ProductCreated(tenantID, product)
		}
	} else {
		out.stats.ProductsUpdated++
		out.updatedID = product.ID.String()
		if p.events != nil {
			p.events.ProductUpdated(tenantID, product)
		}
	}

	return out
}

// resolveImages rehosts the candidate's image URLs. Already-hosted URLs are
// reused untouched; a failed upload is recorded as a row-scoped error but
// never fails the product. Each image emits a progress update.
func (p *Pipeline) resolveImages(ctx context.Context, tenantID string, cand Candidate, out *recordOutcome, reporter *progressReporter) []string {
	var hosted []string
	for _, src := range cand.ImageURLs {
		out.stats.ImagesProcessed++
		switch {
		case p.media == nil || p.media.IsHosted(src):
			hosted = append(hosted, src)
		default:
			url, err := p.media.Upload(ctx, tenantID, src)
			if err != nil {
				out.stats.ImagesFailed++
				out.errs = append(out.errs, models.ImportRowError{
					Row:     cand.Row,
					Column:  "image_url",
					Code:    "IMAGE_UPLOAD_FAILED",
					Message: fmt.Sprintf("image upload failed for %s: %v", src, err),
				})
			} else {
				out.stats.ImagesUploaded++
				hosted = append(hosted, url)
			}
		}
		if reporter != nil {
			reporter.imageDone()
		}
	}
	return hosted
}

func (p *Pipeline) upsertProduct(ctx context.Context, tx Store, tenantID string, format models.ImportFormat, cand Candidate, categoryID *uuid.UUID, hostedURLs []string) (*models.Product, bool, error) {
	var existing *models.Product
	var err error

	if cand.Handle != "" {
		existing, err = tx.GetProductByHandle(ctx, tenantID, cand.Handle)
		if err != nil {
			return nil, false, fmt.Errorf("failed to look up product by handle: %w", err)
		}
	}
	if existing == nil {
		existing, err = tx.GetProductByName(ctx, tenantID, cand.Name)
		if err != nil {
			return nil, false, fmt.Errorf("failed to look up product by name: %w", err)
		}
	}

	var imageURL *string
	if len(hostedURLs) > 0 {
		imageURL = &hostedURLs[0]
	}

	if existing != nil {
		fields := map[string]interface{}{
			"price":       cand.Price,
			"is_featured": cand.IsFeatured,
		}
		// Shopify re-imports never rename: the storefront name may have
		// been edited since the first import and the handle already pins
		// identity.
		if format != models.ImportFormatShopify {
			fields["name"] = cand.Name
		}
		if cand.Description != "" {
			fields["description"] = cand.Description
		}
		if categoryID != nil {
			fields["category_id"] = *categoryID
		}
		if imageURL != nil {
			fields["image_url"] = *imageURL
		}
		if cand.StockQuantity != nil {
			fields["stock_quantity"] = *cand.StockQuantity
		}
		if err := tx.UpdateProductFields(ctx, tenantID, existing.ID, fields); err != nil {
			return nil, false, fmt.Errorf("failed to update product: %w", err)
		}
		return existing, false, nil
	}

	slug := Slugify(cand.Name)
	product := &models.Product{
		TenantID:   tenantID,
		Name:       cand.Name,
		Slug:       &slug,
		Price:      cand.Price,
		CategoryID: categoryID,
		ImageURL:   imageURL,
		IsFeatured: cand.IsFeatured,
		IsActive:   true,
	}
	if cand.Description != "" {
		desc := cand.Description
		product.Description = &desc
	}
	if cand.StockQuantity != nil {
		product.StockQuantity = *cand.StockQuantity
	}
	product.SetHandle(cand.Handle)

	if err := tx.CreateProduct(ctx, product); err != nil {
		return nil, false, fmt.Errorf("failed to create product: %w", err)
	}
	return product, true, nil
}

// reconcileVariations brings the stored variation set in line with the
// candidate's desired size x frame combinations: create missing pairs,
// reprice existing ones, prune leftovers.
func (p *Pipeline) reconcileVariations(ctx context.Context, tx Store, tenantID string, cand Candidate, product *models.Product, out *recordOutcome) error {
	pairs := DesiredOptions(cand.Sizes, cand.Frames)
	if pairs == nil {
		out.warnings = append(out.warnings,
			fmt.Sprintf("row %d: only one option axis present, skipping variation generation", cand.Row))
		return nil
	}

	existing, err := tx.ListVariations(ctx, product.ID)
	if err != nil {
		return fmt.Errorf("failed to list variations: %w", err)
	}
	existingByKey := make(map[string]models.ProductVariation, len(existing))
	for _, v := range existing {
		existingByKey[variationKey(v.SizeID, v.FrameTypeID)] = v
	}

	desired := make(map[string]bool, len(pairs))
	for _, pair := range pairs {
		sizeName, frameName := pair[0], pair[1]

		size, _, err := tx.GetOrCreateSize(ctx, tenantID, sizeName, SizeCode(sizeName))
		if err != nil {
			return fmt.Errorf("failed to resolve size %q: %w", sizeName, err)
		}
		frame, _, err := tx.GetOrCreateFrameType(ctx, tenantID, frameName)
		if err != nil {
			return fmt.Errorf("failed to resolve frame type %q: %w", frameName, err)
		}

		key := variationKey(size.ID, frame.ID)
		desired[key] = true
		price := VariationPrice(cand.Price, size.PriceAdjustment, frame.PriceAdjustment)

		if v, ok := existingByKey[key]; ok {
			fields := map[string]interface{}{"price": price}
			if cand.StockQuantity != nil {
				fields["stock_quantity"] = *cand.StockQuantity
			}
			if err := tx.UpdateVariationFields(ctx, v.ID, fields); err != nil {
				return fmt.Errorf("failed to update variation %s: %w", v.SKU, err)
			}
			out.stats.VariationsUpdated++
			continue
		}

		sku, err := GenerateSKU(ctx, tx, product.Name, size.Code, frame.Name)
		if err != nil {
			return err
		}
		variation := &models.ProductVariation{
			ProductID:     product.ID,
			SizeID:        size.ID,
			FrameTypeID:   frame.ID,
			SKU:           sku,
			Price:         price,
			StockQuantity: stockOrDefault(cand.StockQuantity),
			IsActive:      true,
		}
		if err := tx.CreateVariation(ctx, variation); err != nil {
			return fmt.Errorf("failed to create variation %s: %w", sku, err)
		}
		out.stats.VariationsCreated++
	}

	// Import is authoritative for the variation set: combinations the file
	// no longer lists are removed without a confirmation step. The editor
	// delete endpoint is the path that asks first.
	for key, v := range existingByKey {
		if desired[key] {
			continue
		}
		if err := tx.DeleteVariation(ctx, v.ID); err != nil {
			return fmt.Errorf("failed to prune variation %s: %w", v.SKU, err)
		}
		out.stats.VariationsPruned++
	}

	return nil
}

// linkImages writes image rows for a newly created product. The first hosted
// image becomes primary. Failures degrade to warnings.
func (p *Pipeline) linkImages(ctx context.Context, productID uuid.UUID, hostedURLs []string, out *recordOutcome) {
	for i, url := range hostedURLs {
		image := &models.ProductImage{
			ProductID: productID,
			URL:       url,
			IsPrimary: i == 0,
			SortOrder: i,
		}
		if err := p.store.CreateImage(ctx, image); err != nil {
			out.warnings = append(out.warnings,
				fmt.Sprintf("failed to link image %s: %v", url, err))
		}
	}
}

func (p *Pipeline) failRecord(out recordOutcome, cand Candidate, err error) recordOutcome {
	p.log.WithFields(logrus.Fields{
		"row":     cand.Row,
		"product": cand.Name,
	}).WithError(err).Error("Failed to import record")
	out.stats.ProductsFailed++
	out.errs = append(out.errs, models.ImportRowError{
		Row:     cand.Row,
		Code:    "IMPORT_FAILED",
		Message: err.Error(),
	})
	return out
}

func variationKey(sizeID, frameID uuid.UUID) string {
	return sizeID.String() + "|" + frameID.String()
}

func stockOrDefault(qty *int) int {
	if qty != nil {
		return *qty
	}
	return 10
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify turns a display name into a URL slug.
func Slugify(name string) string {
	slug := slugPattern.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(slug, "-")
}
