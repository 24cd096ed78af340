package inventory

import (
	"context"

	"github.com/jhoicas/invorya-core/internal/application/dto"
	"github.com/jhoicas/invorya-core/internal/domain/event"
)

// Publisher recibe los eventos que se emiten después de confirmar la transacción.
type Publisher interface {
	Publish(ctx context.Context, ev event.Event)
}

// StockCountReportRenderer genera el documento imprimible de un conteo (PDF).
type StockCountReportRenderer interface {
	RenderStockCount(ctx context.Context, report dto.StockCountReport) ([]byte, error)
}
