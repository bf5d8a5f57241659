package tipout

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/mmeshcher/tipout/internal/model"
)

// ErrOrderNotFound возвращается источником данных, если заказ отсутствует.
var ErrOrderNotFound = errors.New("order not found")

// OrderSource описывает получение сервисных сборов заказа.
type OrderSource interface {
	GetOrderServiceCharges(ctx context.Context, orderID string) ([]model.ServiceCharge, error)
}

// GratuityResolver возвращает сумму автоматических чаевых заказа в центах.
type GratuityResolver interface {
	AutoGratuity(ctx context.Context, orderID string) int64
}

// ServiceChargeResolver суммирует сборы AUTO_GRATUITY заказа.
// Результаты не кэшируются: каждый вызов обращается к источнику.
type ServiceChargeResolver struct {
	orders OrderSource
	logger *zap.Logger
}

// NewServiceChargeResolver создаёт резолвер поверх источника заказов.
func NewServiceChargeResolver(orders OrderSource, logger *zap.Logger) *ServiceChargeResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ServiceChargeResolver{orders: orders, logger: logger}
}

// AutoGratuity возвращает 0, если заказа нет, у него нет сборов или запрос не удался.
func (r *ServiceChargeResolver) AutoGratuity(ctx context.Context, orderID string) int64 {
	if orderID == "" || r == nil || r.orders == nil {
		return 0
	}

	charges, err := r.orders.GetOrderServiceCharges(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			r.logger.Debug("order not found", zap.String("order_id", orderID))
			return 0
		}
		r.logger.Warn("could not fetch service charges", zap.String("order_id", orderID), zap.Error(err))
		return 0
	}

	return SumAutoGratuity(charges)
}

// SumAutoGratuity суммирует применённые суммы сборов AUTO_GRATUITY.
func SumAutoGratuity(charges []model.ServiceCharge) int64 {
	var total int64
	for _, sc := range charges {
		if sc.Type == model.ServiceChargeAutoGratuity {
			total += sc.AppliedCents
		}
	}
	return total
}
