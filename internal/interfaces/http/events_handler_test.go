package http

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jhoicas/invorya-core/internal/domain"
	"github.com/jhoicas/invorya-core/internal/domain/event"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSSEFrame_Formato(t *testing.T) {
	frame, err := sseFrame(event.InventoryUpdated{TenantID: "t1", StoreID: "s1", ProductID: "cafe"})
	require.NoError(t, err)
	assert.Equal(t,
		"event: inventory.updated\ndata: {\"tenant_id\":\"t1\",\"store_id\":\"s1\",\"product_id\":\"cafe\"}\n\n",
		string(frame))
}

func TestEventTenant_PorTipo(t *testing.T) {
	assert.Equal(t, "t1", eventTenant(event.InventoryUpdated{TenantID: "t1"}))
	assert.Equal(t, "t2", eventTenant(event.LowStockTriggered{TenantID: "t2", OnHand: decimal.Zero}))
	assert.Equal(t, "t3", eventTenant(event.PurchaseOrderUpdated{TenantID: "t3", ID: "po-1"}))
}

func TestErrorCode_YStatus(t *testing.T) {
	cases := []struct {
		err    error
		code   string
		status int
	}{
		{fmt.Errorf("%w: conteo x", domain.ErrNotFound), "NOT_FOUND", 404},
		{fmt.Errorf("%w: cafe", domain.ErrInsufficientStock), "INSUFFICIENT_STOCK", 409},
		{domain.ErrRequestInProgress, "REQUEST_IN_PROGRESS", 409},
		{domain.ErrBundleEmpty, "BUNDLE_EMPTY", 400},
		{fmt.Errorf("%w: cantidad", domain.ErrInvalidInput), "VALIDATION", 400},
		{domain.ErrRateLimited, "RATE_LIMITED", 429},
		{domain.ErrJobFailed, "JOB_FAILED", 422},
		{errors.New("conexión rechazada"), "INTERNAL", 500},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.code, errorCode(tc.err), tc.err.Error())
		assert.Equal(t, tc.status, statusFor(domain.Kind(tc.err)), tc.err.Error())
	}
}
