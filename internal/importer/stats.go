package importer

import (
	"sync"

	"catalog-service/internal/models"

	"github.com/sirupsen/logrus"
)

// ProgressFunc receives pipeline progress updates. Image updates originate in
// worker goroutines but all callbacks are serialized through the reporter's
// mutex, so implementers need no locking.
type ProgressFunc func(models.ImportProgress)

// MergeStats returns the element-wise sum of two stat sets. Per-record stats
// are produced independently by workers and folded at the batch join point;
// nothing mutates a shared counter mid-batch.
func MergeStats(a, b models.ImportStats) models.ImportStats {
	return models.ImportStats{
		TotalProducts:     a.TotalProducts + b.TotalProducts,
		ProductsCreated:   a.ProductsCreated + b.ProductsCreated,
		ProductsUpdated:   a.ProductsUpdated + b.ProductsUpdated,
		ProductsFailed:    a.ProductsFailed + b.ProductsFailed,
		ProductsSkipped:   a.ProductsSkipped + b.ProductsSkipped,
		VariationsCreated: a.VariationsCreated + b.VariationsCreated,
		VariationsUpdated: a.VariationsUpdated + b.VariationsUpdated,
		VariationsPruned:  a.VariationsPruned + b.VariationsPruned,
		ImagesProcessed:   a.ImagesProcessed + b.ImagesProcessed,
		ImagesUploaded:    a.ImagesUploaded + b.ImagesUploaded,
		ImagesFailed:      a.ImagesFailed + b.ImagesFailed,
		CategoriesCreated: a.CategoriesCreated + b.CategoriesCreated,
	}
}

// progressReporter emits stage, per-batch and per-image updates to an
// optional callback and the log. Image updates arrive concurrently from
// workers; the mutex serializes them against batch updates.
type progressReporter struct {
	total int
	fn    ProgressFunc
	log   *logrus.Entry

	mu        sync.Mutex
	completed int
	images    int
}

func newProgressReporter(totalBatches int, fn ProgressFunc, log *logrus.Entry) *progressReporter {
	return &progressReporter{total: totalBatches, fn: fn, log: log}
}

func (p *progressReporter) percent() int {
	if p.total == 0 {
		return 0
	}
	return p.completed * 100 / p.total
}

func (p *progressReporter) stage(stage string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fn != nil {
		p.fn(models.ImportProgress{Stage: stage, TotalBatches: p.total})
	}
}

func (p *progressReporter) imageDone() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.images++
	if p.fn != nil {
		p.fn(models.ImportProgress{
			Stage:           "importing",
			CurrentBatch:    p.completed,
			TotalBatches:    p.total,
			PercentComplete: p.percent(),
			ImagesProcessed: p.images,
		})
	}
}

func (p *progressReporter) batchDone(completed int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.completed = completed
	percent := p.percent()
	p.log.WithFields(logrus.Fields{
		"batch":   completed,
		"batches": p.total,
		"percent": percent,
	}).Info("Import batch completed")
	if p.fn != nil {
		p.fn(models.ImportProgress{
			Stage:           "importing",
			CurrentBatch:    completed,
			TotalBatches:    p.total,
			PercentComplete: percent,
			ImagesProcessed: p.images,
		})
	}
}
