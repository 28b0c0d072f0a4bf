package importer

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"
)

// Names used when a product has no option axes at all. Every product carries
// at least one variation so the storefront can always add to cart.
const (
	DefaultSizeName  = "Default Size"
	DefaultFrameName = "Default Frame"
)

// maxSKUCollisionRetries bounds the numeric-suffix search before falling back
// to a timestamp suffix.
const maxSKUCollisionRetries = 999

// SKUChecker answers whether a SKU is already taken anywhere in the catalog.
type SKUChecker interface {
	SKUExists(ctx context.Context, sku string) (bool, error)
}

// GenerateSKU builds a unique SKU from the product name, size code and frame
// name, e.g. "Sunset Print" + "L" + "Oak Frame" -> "sunsetpr-l-oakframe".
// Collisions get an incrementing numeric suffix; if the search is exhausted
// the current timestamp guarantees uniqueness.
func GenerateSKU(ctx context.Context, checker SKUChecker, productName, sizeCode, frameName string) (string, error) {
	base := fmt.Sprintf("%s-%s-%s",
		skuFragment(productName, 8),
		skuFragment(sizeCode, 8),
		skuFragment(frameName, 8))

	exists, err := checker.SKUExists(ctx, base)
	if err != nil {
		return "", fmt.Errorf("failed to check SKU uniqueness: %w", err)
	}
	if !exists {
		return base, nil
	}

	for i := 1; i <= maxSKUCollisionRetries; i++ {
		candidate := fmt.Sprintf("%s-%d", base, i)
		exists, err := checker.SKUExists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("failed to check SKU uniqueness: %w", err)
		}
		if !exists {
			return candidate, nil
		}
	}

	return fmt.Sprintf("%s-%d", base, time.Now().UnixNano()), nil
}

// skuFragment lowercases and strips everything but letters and digits, then
// truncates to maxLen.
func skuFragment(s string, maxLen int) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	out := b.String()
	if out == "" {
		out = "x"
	}
	if len(out) > maxLen {
		out = out[:maxLen]
	}
	return out
}

// SizeCode derives a short display code from a size name: initials for
// multi-word names ("Extra Large" -> "XL"), otherwise the first letters of
// the word ("Large" -> "LAR").
func SizeCode(name string) string {
	fields := strings.FieldsFunc(name, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(fields) == 0 {
		return ""
	}
	if len(fields) > 1 {
		var b strings.Builder
		for _, f := range fields {
			r := []rune(f)
			b.WriteRune(unicode.ToUpper(r[0]))
		}
		return b.String()
	}
	word := strings.ToUpper(fields[0])
	if len(word) > 3 {
		word = word[:3]
	}
	return word
}

// VariationPrice is the additive pricing rule: base product price plus the
// size and frame adjustments.
func VariationPrice(basePrice, sizeAdjustment, frameAdjustment float64) float64 {
	return basePrice + sizeAdjustment + frameAdjustment
}

// DesiredOptions expands a candidate's axes into the full cartesian set of
// size/frame name pairs. A candidate with no options gets the single default
// pair. A candidate with only one axis populated gets no pairs; the caller
// records an advisory instead of guessing the missing axis.
func DesiredOptions(sizes, frames []string) [][2]string {
	if len(sizes) == 0 && len(frames) == 0 {
		return [][2]string{{DefaultSizeName, DefaultFrameName}}
	}
	if len(sizes) == 0 || len(frames) == 0 {
		return nil
	}
	pairs := make([][2]string, 0, len(sizes)*len(frames))
	for _, s := range sizes {
		for _, f := range frames {
			pairs = append(pairs, [2]string{s, f})
		}
	}
	return pairs
}
