package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClampPageSize(t *testing.T) {
	tests := []struct {
		name      string
		requested int
		want      int
	}{
		{"absent uses default", 0, 20},
		{"negative uses default", -5, 20},
		{"in range passes through", 50, 50},
		{"above ceiling clamps", 500, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, clampPageSize(tt.requested, 20, 100))
		})
	}
}
