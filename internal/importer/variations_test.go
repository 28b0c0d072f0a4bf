package importer

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type skuSet map[string]bool

func (s skuSet) SKUExists(_ context.Context, sku string) (bool, error) {
	return s[sku], nil
}

func TestGenerateSKU(t *testing.T) {
	sku, err := GenerateSKU(context.Background(), skuSet{}, "Sunset Print", "L", "Oak Frame")
	require.NoError(t, err)
	assert.Equal(t, "sunsetpr-l-oakframe", sku)
}

func TestGenerateSKUFragmentsAreSanitizedAndTruncated(t *testing.T) {
	sku, err := GenerateSKU(context.Background(), skuSet{}, "Café & Gallery #12", "XL", "Brushed-Aluminium")
	require.NoError(t, err)
	parts := strings.Split(sku, "-")
	require.Len(t, parts, 3)
	for _, part := range parts {
		assert.LessOrEqual(t, len(part), 8)
		assert.Regexp(t, "^[a-z0-9]+$", part)
	}
}

func TestGenerateSKUCollisionSuffix(t *testing.T) {
	taken := skuSet{
		"sunsetpr-l-oak":   true,
		"sunsetpr-l-oak-1": true,
		"sunsetpr-l-oak-2": true,
	}
	sku, err := GenerateSKU(context.Background(), taken, "Sunset Print", "L", "Oak")
	require.NoError(t, err)
	assert.Equal(t, "sunsetpr-l-oak-3", sku)
}

type alwaysTaken struct{}

func (alwaysTaken) SKUExists(context.Context, string) (bool, error) { return true, nil }

func TestGenerateSKUTimestampFallback(t *testing.T) {
	sku, err := GenerateSKU(context.Background(), alwaysTaken{}, "Sunset Print", "L", "Oak")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sku, "sunsetpr-l-oak-"))
	suffix := strings.TrimPrefix(sku, "sunsetpr-l-oak-")
	// The numeric-suffix search stops at 999; the fallback is a timestamp,
	// which is far larger.
	assert.Greater(t, len(suffix), 4)
}

type erroringChecker struct{}

func (erroringChecker) SKUExists(context.Context, string) (bool, error) {
	return false, fmt.Errorf("db down")
}

func TestGenerateSKUPropagatesCheckErrors(t *testing.T) {
	_, err := GenerateSKU(context.Background(), erroringChecker{}, "A", "B", "C")
	assert.Error(t, err)
}

func TestSizeCode(t *testing.T) {
	assert.Equal(t, "XL", SizeCode("Extra Large"))
	assert.Equal(t, "LAR", SizeCode("Large"))
	assert.Equal(t, "S", SizeCode("S"))
	assert.Equal(t, "2X3", SizeCode("2 x 3"))
	assert.Equal(t, "", SizeCode("  "))
}

func TestVariationPrice(t *testing.T) {
	assert.InDelta(t, 110.0, VariationPrice(100, 15, -5), 0.0001)
	assert.InDelta(t, 100.0, VariationPrice(100, 0, 0), 0.0001)
}

func TestDesiredOptions(t *testing.T) {
	// Both axes empty: the default pair.
	pairs := DesiredOptions(nil, nil)
	require.Len(t, pairs, 1)
	assert.Equal(t, [2]string{DefaultSizeName, DefaultFrameName}, pairs[0])

	// One axis empty: no pairs, the caller records an advisory.
	assert.Nil(t, DesiredOptions([]string{"Small"}, nil))
	assert.Nil(t, DesiredOptions(nil, []string{"Oak"}))

	// Full cartesian product.
	pairs = DesiredOptions([]string{"Small", "Large"}, []string{"Oak", "Walnut"})
	require.Len(t, pairs, 4)
	assert.Contains(t, pairs, [2]string{"Small", "Oak"})
	assert.Contains(t, pairs, [2]string{"Large", "Walnut"})
}
