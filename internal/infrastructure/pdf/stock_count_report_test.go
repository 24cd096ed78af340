package pdf

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/jhoicas/invorya-core/internal/application/dto"
	"github.com/jhoicas/invorya-core/internal/domain/entity"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatQty(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"0", "0"},
		{"25000", "25.000"},
		{"1000000", "1.000.000"},
		{"-1234.5", "-1.234,5"},
		{"12.3456", "12,35"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, formatQty(decimal.RequireFromString(tc.in)), tc.in)
	}
	assert.Equal(t, "+2", signed(decimal.NewFromInt(2)))
	assert.Equal(t, "-3", signed(decimal.NewFromInt(-3)))
}

func TestRenderStockCount_GeneraPDF(t *testing.T) {
	applied := time.Date(2026, 3, 2, 18, 30, 0, 0, time.UTC)
	report := dto.StockCountReport{
		CountID:   "7f0c2a9e-1111-2222-3333-444455556666",
		StoreName: "Centro",
		Status:    entity.StockCountApplied,
		Notes:     "Conteo mensual",
		CreatedBy: "ana",
		CreatedAt: applied.Add(-2 * time.Hour),
		AppliedAt: &applied,
		AppliedBy: "ana",
		Lines: []dto.StockCountReportLine{
			{SKU: "CAF-500", Name: "Café Molido 500g", System: decimal.NewFromInt(5), Counted: decimal.NewFromInt(7), Adjustment: decimal.NewFromInt(2)},
			{SKU: "TAZ-01", Name: "Taza Cerámica", System: decimal.NewFromInt(4), Counted: decimal.NewFromInt(1), Adjustment: decimal.NewFromInt(-3)},
		},
	}

	out, err := NewMarotoReportRenderer().RenderStockCount(context.Background(), report)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestRenderStockCount_SinLineas(t *testing.T) {
	out, err := NewMarotoReportRenderer().RenderStockCount(context.Background(), dto.StockCountReport{
		CountID: "abc", Status: entity.StockCountOpen, CreatedAt: time.Now(),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}
