package cart

import (
	"context"
	"fmt"

	"github.com/rawconnect/marketplace/internal/catalog"
)

// Service holds the cart business rules: merge-on-add, minimum order,
// and validation against the stock snapshot captured at add-time.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// AddItem inserts a new cart row for (user, product) or, when one
// already exists, sums the quantities and re-validates the merged
// quantity against the product's current stock.
func (s *Service) AddItem(ctx context.Context, userEmail string, p catalog.Product, quantity int) (*Item, error) {
	if quantity < 1 {
		return nil, fmt.Errorf("%w: quantity must be at least 1", ErrBelowMinimumOrder)
	}
	if quantity < p.MinimumOrder {
		return nil, fmt.Errorf("%w: minimum order is %d %s", ErrBelowMinimumOrder, p.MinimumOrder, p.UnitMeasure)
	}

	existing, err := s.repo.GetByUserAndProduct(ctx, userEmail, p.ID)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		merged := existing.Quantity + quantity
		if merged > p.Quantity {
			return nil, fmt.Errorf("%w: you already have %d in your cart, only %d available",
				ErrInsufficientStock, existing.Quantity, p.Quantity)
		}
		if err := s.repo.UpdateQuantity(ctx, existing.ID, merged); err != nil {
			return nil, err
		}
		existing.Quantity = merged
		return existing, nil
	}

	if quantity > p.Quantity {
		return nil, fmt.Errorf("%w: only %d available", ErrInsufficientStock, p.Quantity)
	}

	item := &Item{
		UserEmail:    userEmail,
		ProductID:    p.ID,
		ProductName:  p.Name,
		Price:        p.Price,
		Quantity:     quantity,
		UnitMeasure:  p.UnitMeasure,
		VendorEmail:  p.VendorEmail,
		ProductStock: p.Quantity,
	}
	if err := s.repo.Insert(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// UpdateQuantity overwrites the row's quantity. The row is left
// unchanged when the new quantity exceeds the stored stock snapshot.
func (s *Service) UpdateQuantity(ctx context.Context, itemID string, quantity int) (*Item, error) {
	if quantity < 1 {
		return nil, fmt.Errorf("%w: quantity must be at least 1", ErrBelowMinimumOrder)
	}

	item, err := s.repo.GetByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrNotFound
	}

	if quantity > item.ProductStock {
		return nil, fmt.Errorf("%w: only %d units available in stock", ErrInsufficientStock, item.ProductStock)
	}

	if err := s.repo.UpdateQuantity(ctx, itemID, quantity); err != nil {
		return nil, err
	}
	item.Quantity = quantity
	return item, nil
}

func (s *Service) RemoveItem(ctx context.Context, itemID string) error {
	return s.repo.Remove(ctx, itemID)
}

func (s *Service) List(ctx context.Context, userEmail string) ([]Item, error) {
	return s.repo.ListByUser(ctx, userEmail)
}
