package importer

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catalog-service/internal/models"
)

// memStore is an in-memory Store. It is safe for the concurrent access the
// pipeline performs within a batch.
type memStore struct {
	mu sync.Mutex

	products   map[uuid.UUID]*models.Product
	variations map[uuid.UUID]*models.ProductVariation
	images     []*models.ProductImage
	sizes      map[string]*models.Size
	frames     map[string]*models.FrameType
	categories map[string]*models.Category

	failCreateNames map[string]bool
}

func newMemStore() *memStore {
	return &memStore{
		products:        map[uuid.UUID]*models.Product{},
		variations:      map[uuid.UUID]*models.ProductVariation{},
		sizes:           map[string]*models.Size{},
		frames:          map[string]*models.FrameType{},
		categories:      map[string]*models.Category{},
		failCreateNames: map[string]bool{},
	}
}

func (s *memStore) GetProductByName(_ context.Context, tenantID, name string) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.products {
		if p.TenantID == tenantID && p.Name == name {
			return p, nil
		}
	}
	return nil, nil
}

func (s *memStore) GetProductByHandle(_ context.Context, tenantID, handle string) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.products {
		if p.TenantID == tenantID && p.Handle() == handle {
			return p, nil
		}
	}
	return nil, nil
}

func (s *memStore) CreateProduct(_ context.Context, product *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreateNames[product.Name] {
		return fmt.Errorf("simulated insert failure")
	}
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}
	s.products[product.ID] = product
	return nil
}

func (s *memStore) UpdateProductFields(_ context.Context, tenantID string, id uuid.UUID, fields map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok || p.TenantID != tenantID {
		return fmt.Errorf("product not found")
	}
	if v, ok := fields["name"]; ok {
		p.Name = v.(string)
	}
	if v, ok := fields["price"]; ok {
		p.Price = v.(float64)
	}
	if v, ok := fields["description"]; ok {
		desc := v.(string)
		p.Description = &desc
	}
	if v, ok := fields["is_featured"]; ok {
		p.IsFeatured = v.(bool)
	}
	if v, ok := fields["image_url"]; ok {
		url := v.(string)
		p.ImageURL = &url
	}
	if v, ok := fields["stock_quantity"]; ok {
		p.StockQuantity = v.(int)
	}
	return nil
}

func (s *memStore) GetOrCreateCategory(_ context.Context, tenantID, name string) (*models.Category, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := tenantID + "/" + name
	if c, ok := s.categories[key]; ok {
		return c, false, nil
	}
	c := &models.Category{ID: uuid.New(), TenantID: tenantID, Name: name, Slug: Slugify(name), IsActive: true}
	s.categories[key] = c
	return c, true, nil
}

func (s *memStore) GetOrCreateSize(_ context.Context, tenantID, name, code string) (*models.Size, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := tenantID + "/" + name
	if sz, ok := s.sizes[key]; ok {
		return sz, false, nil
	}
	sz := &models.Size{ID: uuid.New(), TenantID: tenantID, Name: name, Code: code}
	s.sizes[key] = sz
	return sz, true, nil
}

func (s *memStore) GetOrCreateFrameType(_ context.Context, tenantID, name string) (*models.FrameType, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := tenantID + "/" + name
	if f, ok := s.frames[key]; ok {
		return f, false, nil
	}
	f := &models.FrameType{ID: uuid.New(), TenantID: tenantID, Name: name}
	s.frames[key] = f
	return f, true, nil
}

func (s *memStore) ListVariations(_ context.Context, productID uuid.UUID) ([]models.ProductVariation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ProductVariation
	for _, v := range s.variations {
		if v.ProductID == productID {
			out = append(out, *v)
		}
	}
	return out, nil
}

func (s *memStore) CreateVariation(_ context.Context, variation *models.ProductVariation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if variation.ID == uuid.Nil {
		variation.ID = uuid.New()
	}
	s.variations[variation.ID] = variation
	return nil
}

func (s *memStore) UpdateVariationFields(_ context.Context, id uuid.UUID, fields map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.variations[id]
	if !ok {
		return fmt.Errorf("variation not found")
	}
	if price, ok := fields["price"]; ok {
		v.Price = price.(float64)
	}
	if qty, ok := fields["stock_quantity"]; ok {
		v.StockQuantity = qty.(int)
	}
	return nil
}

func (s *memStore) DeleteVariation(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.variations[id]; !ok {
		return fmt.Errorf("variation not found")
	}
	delete(s.variations, id)
	return nil
}

func (s *memStore) SKUExists(_ context.Context, sku string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.variations {
		if v.SKU == sku {
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) CreateImage(_ context.Context, image *models.ProductImage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if image.ID == uuid.Nil {
		image.ID = uuid.New()
	}
	s.images = append(s.images, image)
	return nil
}

func (s *memStore) Transaction(_ context.Context, fn func(tx Store) error) error {
	return fn(s)
}

// memMedia fakes the media client: anything under hosted/ is already hosted.
type memMedia struct {
	mu       sync.Mutex
	uploads  int
	failURLs map[string]bool
}

func (m *memMedia) IsHosted(url string) bool {
	return strings.HasPrefix(url, "https://cdn.example.com/")
}

func (m *memMedia) Upload(_ context.Context, _ string, sourceURL string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failURLs[sourceURL] {
		return "", fmt.Errorf("fetch failed")
	}
	m.uploads++
	return "https://cdn.example.com/hosted/" + Slugify(sourceURL), nil
}

func standardFile(rows ...string) *ParsedFile {
	header := "name,description,price,category,image_url,is_featured,stock_quantity"
	parsed, err := ParseCSV(strings.NewReader(header + "\n" + strings.Join(rows, "\n") + "\n"))
	if err != nil {
		panic(err)
	}
	return parsed
}

func TestPipelineCreatesProductFromStandardFile(t *testing.T) {
	store := newMemStore()
	media := &memMedia{}
	p := New(store, media, nil)

	parsed := standardFile(`Acrylic Painting,Hand finished,199.99,Paintings,https://example.com/art.jpg,true,5`)
	result := p.Run(context.Background(), parsed, Options{TenantID: "t1"})

	assert.True(t, result.Success)
	assert.Equal(t, models.ImportFormatStandard, result.Format)
	assert.Equal(t, 1, result.Stats.ProductsCreated)
	assert.Equal(t, 1, result.Stats.CategoriesCreated)
	assert.Equal(t, 1, result.Stats.ImagesUploaded)
	assert.Len(t, result.CreatedIDs, 1)

	product, err := store.GetProductByName(context.Background(), "t1", "Acrylic Painting")
	require.NoError(t, err)
	require.NotNil(t, product)
	assert.InDelta(t, 199.99, product.Price, 0.0001)
	assert.Equal(t, 5, product.StockQuantity)
	require.NotNil(t, product.ImageURL)
	assert.True(t, strings.HasPrefix(*product.ImageURL, "https://cdn.example.com/"))

	// No option axes in the flat template: the default pair is created.
	variations, _ := store.ListVariations(context.Background(), product.ID)
	require.Len(t, variations, 1)
	assert.Equal(t, 1, result.Stats.VariationsCreated)

	// First hosted image is linked as primary.
	require.Len(t, store.images, 1)
	assert.True(t, store.images[0].IsPrimary)
}

func TestPipelineReimportIsIdempotent(t *testing.T) {
	store := newMemStore()
	p := New(store, nil, nil)

	parsed := standardFile(`Sunset Print,A print,49.99,Prints,,false,10`)
	first := p.Run(context.Background(), parsed, Options{TenantID: "t1"})
	require.True(t, first.Success)
	require.Equal(t, 1, first.Stats.ProductsCreated)

	second := p.Run(context.Background(), standardFile(`Sunset Print,A print,59.99,Prints,,false,10`), Options{TenantID: "t1"})
	assert.True(t, second.Success)
	assert.Equal(t, 0, second.Stats.ProductsCreated)
	assert.Equal(t, 1, second.Stats.ProductsUpdated)
	assert.Equal(t, 0, second.Stats.CategoriesCreated)
	assert.Equal(t, 0, second.Stats.VariationsCreated)
	assert.Equal(t, 1, second.Stats.VariationsUpdated)

	product, _ := store.GetProductByName(context.Background(), "t1", "Sunset Print")
	require.NotNil(t, product)
	assert.InDelta(t, 59.99, product.Price, 0.0001)
	assert.Len(t, store.products, 1)
}

func TestPipelineRecordFailureIsIsolated(t *testing.T) {
	store := newMemStore()
	store.failCreateNames["Broken Product"] = true
	p := New(store, nil, nil)

	parsed := standardFile(
		`Good Product,desc,10,,,false,`,
		`Broken Product,desc,20,,,false,`,
		`Another Good,desc,30,,,false,`,
	)
	result := p.Run(context.Background(), parsed, Options{TenantID: "t1"})

	assert.False(t, result.Success)
	assert.Equal(t, 2, result.Stats.ProductsCreated)
	assert.Equal(t, 1, result.Stats.ProductsFailed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 2, result.Errors[0].Row)
	assert.Equal(t, "IMPORT_FAILED", result.Errors[0].Code)
}

func TestPipelineBatchBoundaries(t *testing.T) {
	store := newMemStore()
	p := New(store, nil, nil)

	var rows []string
	for i := 0; i < 25; i++ {
		rows = append(rows, fmt.Sprintf("Product %03d,desc,%d,,,false,", i, i+1))
	}
	var progress []models.ImportProgress
	result := p.Run(context.Background(), standardFile(rows...), Options{
		TenantID:  "t1",
		BatchSize: 10,
		Progress: func(update models.ImportProgress) {
			progress = append(progress, update)
		},
	})

	assert.True(t, result.Success)
	assert.Equal(t, 3, result.TotalBatches)
	require.Len(t, result.BatchResults, 3)
	assert.Equal(t, 1, result.BatchResults[0].StartRow)
	assert.Equal(t, 10, result.BatchResults[0].EndRow)
	assert.Equal(t, 21, result.BatchResults[2].StartRow)
	assert.Equal(t, 25, result.BatchResults[2].EndRow)
	assert.Equal(t, 25, result.Stats.ProductsCreated)

	// Folded batch stats sum to the run totals.
	var sum models.ImportStats
	for _, b := range result.BatchResults {
		sum = MergeStats(sum, b.Stats)
	}
	assert.Equal(t, result.Stats, sum)

	// Stage update plus one per batch, final at 100 percent.
	require.NotEmpty(t, progress)
	last := progress[len(progress)-1]
	assert.Equal(t, 3, last.CurrentBatch)
	assert.Equal(t, 100, last.PercentComplete)
}

func TestPipelineReportsProgressPerImage(t *testing.T) {
	store := newMemStore()
	media := &memMedia{}
	p := New(store, media, nil)

	parsed := standardFile(
		`Art One,desc,10,,https://example.com/a.jpg,false,`,
		`Art Two,desc,20,,https://example.com/b.jpg,false,`,
		`Art Three,desc,30,,https://example.com/c.jpg,false,`,
	)

	var progress []models.ImportProgress
	result := p.Run(context.Background(), parsed, Options{
		TenantID: "t1",
		Progress: func(update models.ImportProgress) {
			progress = append(progress, update)
		},
	})

	assert.True(t, result.Success)
	assert.Equal(t, 3, result.Stats.ImagesProcessed)

	// One stage update, one per image, one per batch.
	require.Len(t, progress, 5)

	var imageCounts []int
	for _, update := range progress {
		imageCounts = append(imageCounts, update.ImagesProcessed)
	}
	assert.Equal(t, []int{0, 1, 2, 3, 3}, imageCounts)
}

func TestPipelineValidateOnlyTouchesNothing(t *testing.T) {
	store := newMemStore()
	p := New(store, nil, nil)

	result := p.Run(context.Background(), standardFile(`Art,desc,10,,,false,`), Options{
		TenantID:     "t1",
		ValidateOnly: true,
	})

	assert.True(t, result.Success)
	assert.Equal(t, 1, result.Stats.TotalProducts)
	assert.Empty(t, store.products)
	assert.Empty(t, result.CreatedIDs)
}

func TestPipelineUnknownFormatFails(t *testing.T) {
	p := New(newMemStore(), nil, nil)
	parsed, err := ParseCSV(strings.NewReader("foo,bar\n1,2\n"))
	require.NoError(t, err)

	result := p.Run(context.Background(), parsed, Options{TenantID: "t1"})
	assert.False(t, result.Success)
	require.NotEmpty(t, result.Errors)
	assert.Equal(t, "FORMAT_UNKNOWN", result.Errors[0].Code)
}

func shopifyFile(t *testing.T, rows ...string) *ParsedFile {
	t.Helper()
	header := "Handle,Title,Body (HTML),Variant Price,Type,Published,Option1 Name,Option1 Value,Option2 Name,Option2 Value,Image Src,Variant Inventory Qty"
	parsed, err := ParseCSV(strings.NewReader(header + "\n" + strings.Join(rows, "\n") + "\n"))
	require.NoError(t, err)
	return parsed
}

func TestPipelineShopifyImport(t *testing.T) {
	store := newMemStore()
	p := New(store, nil, nil)

	parsed := shopifyFile(t,
		`sunset,Sunset Print,<p>Lovely</p>,49.99,Prints,true,Size,Small,Frame,Oak,https://example.com/a.jpg,7`,
		`sunset,,,,,,Size,Large,Frame,Oak,,`,
		`sunset,,,,,,Size,Large,Frame,Walnut,,`,
	)
	result := p.Run(context.Background(), parsed, Options{TenantID: "t1"})

	require.True(t, result.Success, "errors: %v", result.Errors)
	assert.Equal(t, 1, result.Stats.ProductsCreated)
	// 2 sizes x 2 frames
	assert.Equal(t, 4, result.Stats.VariationsCreated)

	product, _ := store.GetProductByHandle(context.Background(), "t1", "sunset")
	require.NotNil(t, product)
	assert.Equal(t, "Sunset Print", product.Name)
	assert.Equal(t, 7, product.StockQuantity)

	variations, _ := store.ListVariations(context.Background(), product.ID)
	assert.Len(t, variations, 4)
	skus := map[string]bool{}
	for _, v := range variations {
		assert.False(t, skus[v.SKU], "duplicate SKU %s", v.SKU)
		skus[v.SKU] = true
		assert.Equal(t, 7, v.StockQuantity)
	}
}

func TestPipelineShopifyReimportKeepsRenamedProduct(t *testing.T) {
	store := newMemStore()
	p := New(store, nil, nil)

	parsed := shopifyFile(t, `sunset,Sunset Print,,49.99,,,Size,Small,Frame,Oak,,`)
	require.True(t, p.Run(context.Background(), parsed, Options{TenantID: "t1"}).Success)

	// Operator renames the product in the editor after the first import.
	product, _ := store.GetProductByHandle(context.Background(), "t1", "sunset")
	require.NotNil(t, product)
	product.Name = "Sunset Print (Signed)"

	second := p.Run(context.Background(), shopifyFile(t, `sunset,Sunset Print,,59.99,,,Size,Small,Frame,Oak,,`), Options{TenantID: "t1"})
	assert.True(t, second.Success)
	assert.Equal(t, 1, second.Stats.ProductsUpdated)

	// The handle matched, the price updated, the rename survived.
	after, _ := store.GetProductByHandle(context.Background(), "t1", "sunset")
	require.NotNil(t, after)
	assert.Equal(t, "Sunset Print (Signed)", after.Name)
	assert.InDelta(t, 59.99, after.Price, 0.0001)
}

func TestPipelinePrunesStaleVariations(t *testing.T) {
	store := newMemStore()
	p := New(store, nil, nil)

	first := shopifyFile(t,
		`sunset,Sunset Print,,49.99,,,Size,Small,Frame,Oak,,`,
		`sunset,,,,,,Size,Large,Frame,Oak,,`,
	)
	require.True(t, p.Run(context.Background(), first, Options{TenantID: "t1"}).Success)

	// The second file drops the Large size; its variation is pruned without
	// a confirmation step.
	second := shopifyFile(t, `sunset,Sunset Print,,49.99,,,Size,Small,Frame,Oak,,`)
	result := p.Run(context.Background(), second, Options{TenantID: "t1"})

	assert.True(t, result.Success)
	assert.Equal(t, 1, result.Stats.VariationsPruned)
	assert.Equal(t, 1, result.Stats.VariationsUpdated)

	product, _ := store.GetProductByHandle(context.Background(), "t1", "sunset")
	variations, _ := store.ListVariations(context.Background(), product.ID)
	assert.Len(t, variations, 1)
}

func TestPipelineSingleAxisSkipsVariationsWithWarning(t *testing.T) {
	store := newMemStore()
	p := New(store, nil, nil)

	parsed := shopifyFile(t, `lonely,Lonely Print,,10,,,Size,Small,,,,`)
	result := p.Run(context.Background(), parsed, Options{TenantID: "t1"})

	assert.True(t, result.Success)
	assert.Equal(t, 0, result.Stats.VariationsCreated)
	require.NotEmpty(t, result.Warnings)
	found := false
	for _, w := range result.Warnings {
		if strings.Contains(w, "one option axis") {
			found = true
		}
	}
	assert.True(t, found)
}

func TestPipelineImageFailureDoesNotFailProduct(t *testing.T) {
	store := newMemStore()
	media := &memMedia{failURLs: map[string]bool{"https://example.com/broken.jpg": true}}
	p := New(store, media, nil)

	parsed := standardFile(`Art,desc,10,,https://example.com/broken.jpg,false,`)
	result := p.Run(context.Background(), parsed, Options{TenantID: "t1"})

	assert.True(t, result.Success)
	assert.Equal(t, 1, result.Stats.ProductsCreated)
	assert.Equal(t, 1, result.Stats.ImagesFailed)
	assert.Equal(t, 0, result.Stats.ImagesUploaded)

	// The failure lands on the row's error list but leaves the product in.
	require.NotEmpty(t, result.Errors)
	assert.Equal(t, "IMAGE_UPLOAD_FAILED", result.Errors[0].Code)
	assert.Equal(t, 1, result.Errors[0].Row)
	assert.Equal(t, "image_url", result.Errors[0].Column)
	assert.Contains(t, result.Errors[0].Message, "broken.jpg")

	product, _ := store.GetProductByName(context.Background(), "t1", "Art")
	require.NotNil(t, product)
	assert.Nil(t, product.ImageURL)
}

func TestPipelineAlreadyHostedImageIsReused(t *testing.T) {
	store := newMemStore()
	media := &memMedia{}
	p := New(store, media, nil)

	parsed := standardFile(`Art,desc,10,,https://cdn.example.com/existing.jpg,false,`)
	result := p.Run(context.Background(), parsed, Options{TenantID: "t1"})

	assert.True(t, result.Success)
	assert.Equal(t, 1, result.Stats.ImagesProcessed)
	assert.Equal(t, 0, result.Stats.ImagesUploaded)
	assert.Equal(t, 0, media.uploads)

	product, _ := store.GetProductByName(context.Background(), "t1", "Art")
	require.NotNil(t, product)
	require.NotNil(t, product.ImageURL)
	assert.Equal(t, "https://cdn.example.com/existing.jpg", *product.ImageURL)
}
