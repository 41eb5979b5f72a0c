package services

import (
	"context"
	"errors"
	"math"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"bankops/internal/core"
	applog "bankops/internal/log"
)

var (
	ErrInvalidOperand = errors.New("operands must be finite numbers")
	ErrEmptyName      = errors.New("name is required")
)

const maxNameLength = 100

// HistoryStore persists the calculator and greeting history.
type HistoryStore interface {
	SaveCalculation(ctx context.Context, a, b, result float64) (core.Calculation, error)
	RecentCalculations(ctx context.Context, limit int) ([]core.Calculation, error)
	SaveGreeting(ctx context.Context, name string) (core.Greeting, error)
	RecentGreetings(ctx context.Context, limit int) ([]core.Greeting, error)
}

type HistoryService struct {
	store  HistoryStore
	policy *bluemonday.Policy
}

func NewHistoryService(store HistoryStore) *HistoryService {
	return &HistoryService{store: store, policy: bluemonday.StrictPolicy()}
}

// Sum adds a and b and records the calculation.
func (s *HistoryService) Sum(ctx context.Context, a, b float64) (core.Calculation, error) {
	result := a + b
	for _, v := range []float64{a, b, result} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return core.Calculation{}, ErrInvalidOperand
		}
	}
	c, err := s.store.SaveCalculation(ctx, a, b, result)
	if err != nil {
		applog.FromContext(ctx).ErrorContext(ctx, "Failed to save calculation",
			applog.FieldComponent, applog.ComponentHistory, applog.FieldError, err)
		return core.Calculation{}, err
	}
	return c, nil
}

// Greet stores a greeting for name. Markup is stripped from the name.
func (s *HistoryService) Greet(ctx context.Context, name string) (core.Greeting, error) {
	name = strings.TrimSpace(s.policy.Sanitize(strings.TrimSpace(name)))
	if name == "" {
		return core.Greeting{}, ErrEmptyName
	}
	if r := []rune(name); len(r) > maxNameLength {
		name = string(r[:maxNameLength])
	}
	g, err := s.store.SaveGreeting(ctx, name)
	if err != nil {
		applog.FromContext(ctx).ErrorContext(ctx, "Failed to save greeting",
			applog.FieldComponent, applog.ComponentHistory, applog.FieldError, err)
		return core.Greeting{}, err
	}
	return g, nil
}

func (s *HistoryService) RecentCalculations(ctx context.Context, limit int) ([]core.Calculation, error) {
	return s.store.RecentCalculations(ctx, clampLimit(limit))
}

func (s *HistoryService) RecentGreetings(ctx context.Context, limit int) ([]core.Greeting, error) {
	return s.store.RecentGreetings(ctx, clampLimit(limit))
}

func clampLimit(limit int) int {
	switch {
	case limit < 1:
		return 10
	case limit > 100:
		return 100
	}
	return limit
}
