package model

import "time"

// WishlistItem is a customer's request for a product the shop does not have on hand.
type WishlistItem struct {
	ID               string     `json:"id,omitempty"`
	Name             string     `json:"name"`
	Phone            string     `json:"phone"`
	Email            string     `json:"email"`
	Product          string     `json:"product"`
	AlreadyPurchased bool       `json:"alreadyPurchased"`
	TargetStore      string     `json:"targetStore"`
	ImageRef         string     `json:"imageRef,omitempty"`
	Description      string     `json:"description"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        *time.Time `json:"updatedAt,omitempty"`
}

// WishlistPatch is a partial update of a WishlistItem. Nil fields are left unchanged.
type WishlistPatch struct {
	Name             *string `json:"name,omitempty"`
	Phone            *string `json:"phone,omitempty"`
	Email            *string `json:"email,omitempty"`
	Product          *string `json:"product,omitempty"`
	AlreadyPurchased *bool   `json:"alreadyPurchased,omitempty"`
	TargetStore      *string `json:"targetStore,omitempty"`
	ImageRef         *string `json:"imageRef,omitempty"`
	Description      *string `json:"description,omitempty"`
}

// Validate checks the fields the wishlist form requires.
func (w *WishlistItem) Validate() error {
	return required(
		"name", w.Name,
		"phone", w.Phone,
		"product", w.Product,
	)
}

// Validate checks that the patch does not blank a required field.
func (p *WishlistPatch) Validate() error {
	return notBlanked(
		"name", p.Name,
		"phone", p.Phone,
		"product", p.Product,
	)
}

// Matches reports whether the item matches a list search term.
func (w WishlistItem) Matches(term string) bool {
	return containsFold(term, w.Name, w.Email, w.Product)
}

// BlobRefs returns the image references held by the item.
func (w WishlistItem) BlobRefs() []string {
	return nonEmpty(w.ImageRef)
}
