package store

import (
	"context"
	"fmt"

	"github.com/erazemk/vitrina/internal/model"
)

// Collection names.
const (
	WishlistCollection         = "wishlist"
	WarrantyCollection         = "warranty"
	MaterialRequestsCollection = "material-requests"
	settingsCollection         = "settings"
)

// Typed collections for each record kind.
type (
	WishlistStore        = Collection[model.WishlistItem, model.WishlistPatch]
	WarrantyStore        = Collection[model.WarrantyItem, model.WarrantyPatch]
	MaterialRequestStore = Collection[model.MaterialRequest, model.MaterialRequestPatch]
)

// NewWishlist returns the customer wishlist collection.
func NewWishlist(b Backend, opts ...Option) *WishlistStore {
	return NewCollection[model.WishlistItem, model.WishlistPatch](b, WishlistCollection, opts...)
}

// NewWarranties returns the warranty claim collection.
func NewWarranties(b Backend, opts ...Option) *WarrantyStore {
	return NewCollection[model.WarrantyItem, model.WarrantyPatch](b, WarrantyCollection, opts...)
}

// NewMaterialRequests returns the material requisition collection.
func NewMaterialRequests(b Backend, opts ...Option) *MaterialRequestStore {
	return NewCollection[model.MaterialRequest, model.MaterialRequestPatch](b, MaterialRequestsCollection, opts...)
}

// Store groups the three record collections over one backend.
type Store struct {
	Backend          Backend
	Wishlist         *WishlistStore
	Warranties       *WarrantyStore
	MaterialRequests *MaterialRequestStore
}

// New builds the record collections on backend.
func New(b Backend, opts ...Option) *Store {
	return &Store{
		Backend:          b,
		Wishlist:         NewWishlist(b, opts...),
		Warranties:       NewWarranties(b, opts...),
		MaterialRequests: NewMaterialRequests(b, opts...),
	}
}

// Counts is the number of records in each list.
type Counts struct {
	Wishlist         int64 `json:"wishlist"`
	Warranty         int64 `json:"warranty"`
	MaterialRequests int64 `json:"materialRequests"`
}

// Counts returns how many records each list holds.
func (s *Store) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	var err error
	if c.Wishlist, err = s.Wishlist.Count(ctx); err != nil {
		return Counts{}, err
	}
	if c.Warranty, err = s.Warranties.Count(ctx); err != nil {
		return Counts{}, err
	}
	if c.MaterialRequests, err = s.MaterialRequests.Count(ctx); err != nil {
		return Counts{}, err
	}
	return c, nil
}

// Close closes the backend.
func (s *Store) Close() error {
	if err := s.Backend.Close(); err != nil {
		return fmt.Errorf("closing store: %w", err)
	}
	return nil
}
