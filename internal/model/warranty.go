package model

import (
	"fmt"
	"slices"
	"time"
)

// WarrantyItem is a warranty claim for pieces a customer brought back.
type WarrantyItem struct {
	ID                string     `json:"id,omitempty"`
	Name              string     `json:"name"`
	PurchaseDate      string     `json:"purchaseDate"`
	ExpiryDate        string     `json:"expiryDate"`
	Status            string     `json:"status"`
	Store             string     `json:"store"`
	Note              string     `json:"note"`
	PurchaseReceipt   string     `json:"purchaseReceipt"`
	Whatsapp          string     `json:"whatsapp"`
	Email             string     `json:"email"`
	PiecesImageRef    string     `json:"piecesImageRef,omitempty"`
	PiecesDescription string     `json:"piecesDescription"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         *time.Time `json:"updatedAt,omitempty"`
}

// Warranty statuses. Any status may follow any other.
const (
	WarrantyReturnedToStore = "Devolvida para loja"
	WarrantyLostCredited    = "Extraviada-crédito cliente"
	WarrantyInReview        = "Em análise"
	WarrantyConcluded       = "Concluída"
	WarrantyPending         = "Pendente"
)

// WarrantyStatuses lists the accepted warranty statuses in form order.
var WarrantyStatuses = []string{
	WarrantyReturnedToStore,
	WarrantyLostCredited,
	WarrantyInReview,
	WarrantyConcluded,
	WarrantyPending,
}

// WarrantyPatch is a partial update of a WarrantyItem. Nil fields are left unchanged.
type WarrantyPatch struct {
	Name              *string `json:"name,omitempty"`
	PurchaseDate      *string `json:"purchaseDate,omitempty"`
	ExpiryDate        *string `json:"expiryDate,omitempty"`
	Status            *string `json:"status,omitempty"`
	Store             *string `json:"store,omitempty"`
	Note              *string `json:"note,omitempty"`
	PurchaseReceipt   *string `json:"purchaseReceipt,omitempty"`
	Whatsapp          *string `json:"whatsapp,omitempty"`
	Email             *string `json:"email,omitempty"`
	PiecesImageRef    *string `json:"piecesImageRef,omitempty"`
	PiecesDescription *string `json:"piecesDescription,omitempty"`
}

// ApplyDefaults fills the values a new warranty form starts with.
func (w *WarrantyItem) ApplyDefaults() {
	if w.Status == "" {
		w.Status = WarrantyReturnedToStore
	}
}

// Validate checks required fields and enumerations.
func (w *WarrantyItem) Validate() error {
	if err := required(
		"name", w.Name,
		"store", w.Store,
		"purchaseDate", w.PurchaseDate,
		"expiryDate", w.ExpiryDate,
	); err != nil {
		return err
	}
	return checkWarranty(&w.Status, &w.Store)
}

// Validate checks the fields present in the patch.
func (p *WarrantyPatch) Validate() error {
	if err := notBlanked(
		"name", p.Name,
		"store", p.Store,
		"purchaseDate", p.PurchaseDate,
		"expiryDate", p.ExpiryDate,
	); err != nil {
		return err
	}
	return checkWarranty(p.Status, p.Store)
}

func checkWarranty(status, store *string) error {
	if status != nil && !slices.Contains(WarrantyStatuses, *status) {
		return fmt.Errorf("%w: unknown warranty status %q", ErrValidation, *status)
	}
	if store != nil && !IsStore(*store) {
		return fmt.Errorf("%w: unknown store %q", ErrValidation, *store)
	}
	return nil
}

// Matches reports whether the claim matches a list search term.
func (w WarrantyItem) Matches(term string) bool {
	return containsFold(term, w.Name, w.Status)
}

// BlobRefs returns the image references held by the claim.
func (w WarrantyItem) BlobRefs() []string {
	return nonEmpty(w.PiecesImageRef)
}
