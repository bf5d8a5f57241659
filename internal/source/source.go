// Package source описывает источник данных о сменах, платежах и заказах.
package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mmeshcher/tipout/internal/model"
	"github.com/mmeshcher/tipout/internal/square"
	"github.com/mmeshcher/tipout/internal/tipout"
)

// Source описывает контракт источника данных для расчёта чаевых.
type Source interface {
	ListLocations(ctx context.Context) ([]model.Location, error)
	ListTeamMembers(ctx context.Context, locationIDs []string) ([]model.TeamMember, error)
	ListShifts(ctx context.Context, locationID string, start, end time.Time) ([]model.Shift, error)
	ListPayments(ctx context.Context, locationID string, start, end time.Time) ([]model.Payment, error)
	GetOrderServiceCharges(ctx context.Context, orderID string) ([]model.ServiceCharge, error)
}

// SquareAPI описывает используемые методы клиента Square.
type SquareAPI interface {
	ListLocations(ctx context.Context) ([]square.Location, error)
	SearchTimecards(ctx context.Context, locationID string, start, end time.Time) ([]square.Timecard, error)
	ListPayments(ctx context.Context, locationID string, begin, end time.Time) ([]square.Payment, error)
	GetOrder(ctx context.Context, orderID string) (*square.Order, error)
	SearchTeamMembers(ctx context.Context, locationIDs []string) ([]square.TeamMember, error)
}

// Square реализует источник данных поверх API Square.
type Square struct {
	api SquareAPI
}

// NewSquare создаёт источник поверх клиента Square.
func NewSquare(api SquareAPI) *Square {
	return &Square{api: api}
}

// ListLocations возвращает точки продавца.
func (s *Square) ListLocations(ctx context.Context) ([]model.Location, error) {
	locs, err := s.api.ListLocations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	out := make([]model.Location, 0, len(locs))
	for _, l := range locs {
		out = append(out, NormalizeLocation(l))
	}
	return out, nil
}

// ListTeamMembers возвращает активных сотрудников точек.
func (s *Square) ListTeamMembers(ctx context.Context, locationIDs []string) ([]model.TeamMember, error) {
	members, err := s.api.SearchTeamMembers(ctx, locationIDs)
	if err != nil {
		return nil, fmt.Errorf("search team members: %w", err)
	}
	out := make([]model.TeamMember, 0, len(members))
	for _, m := range members {
		out = append(out, NormalizeTeamMember(m))
	}
	return out, nil
}

// ListShifts возвращает нормализованные смены точки.
func (s *Square) ListShifts(ctx context.Context, locationID string, start, end time.Time) ([]model.Shift, error) {
	cards, err := s.api.SearchTimecards(ctx, locationID, start, end)
	if err != nil {
		return nil, fmt.Errorf("search timecards: %w", err)
	}
	out := make([]model.Shift, 0, len(cards))
	for _, tc := range cards {
		if shift, ok := NormalizeTimecard(tc); ok {
			if shift.LocationID == "" {
				shift.LocationID = locationID
			}
			out = append(out, shift)
		}
	}
	return out, nil
}

// ListPayments возвращает нормализованные платежи точки.
func (s *Square) ListPayments(ctx context.Context, locationID string, start, end time.Time) ([]model.Payment, error) {
	payments, err := s.api.ListPayments(ctx, locationID, start, end)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	out := make([]model.Payment, 0, len(payments))
	for _, p := range payments {
		if payment, ok := NormalizePayment(p); ok {
			if payment.LocationID == "" {
				payment.LocationID = locationID
			}
			out = append(out, payment)
		}
	}
	return out, nil
}

// GetOrderServiceCharges возвращает сборы заказа; отсутствующий заказ даёт tipout.ErrOrderNotFound.
func (s *Square) GetOrderServiceCharges(ctx context.Context, orderID string) ([]model.ServiceCharge, error) {
	order, err := s.api.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, square.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", tipout.ErrOrderNotFound, orderID)
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return NormalizeServiceCharges(*order), nil
}
