package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestWishlistMatches(t *testing.T) {
	item := WishlistItem{Name: "Ana Souza", Email: "ana@example.com", Product: "Brinco Gota"}

	tests := []struct {
		term string
		want bool
	}{
		{"", true},
		{"ana", true},
		{"SOUZA", true},
		{"example.com", true},
		{"gota", true},
		{"anel", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, item.Matches(tt.term), "term %q", tt.term)
	}
}

func TestWarrantyFilterByStatus(t *testing.T) {
	items := []WarrantyItem{
		{Name: "Carla", Status: WarrantyConcluded},
		{Name: "Bruno", Status: WarrantyPending},
		{Name: "Diana", Status: WarrantyInReview},
	}

	concluded := Filter(items, "Concluída")
	require.Len(t, concluded, 1)
	assert.Equal(t, "Carla", concluded[0].Name)

	pending := Filter(items, "pendente")
	require.Len(t, pending, 1)
	assert.Equal(t, "Bruno", pending[0].Name)

	assert.Len(t, Filter(items, ""), 3)
	assert.Empty(t, Filter(items, "Extraviada"))
}

func TestMaterialRequestMatches(t *testing.T) {
	req := MaterialRequest{Sector: StoreTeresina, Description: "Caixas de presente", Status: RequestRejected}

	assert.True(t, req.Matches("teresina"))
	assert.True(t, req.Matches("caixas"))
	assert.True(t, req.Matches("recusado"))
	assert.False(t, req.Matches("urgente"))
}

func TestWarrantyDefaultsAndValidate(t *testing.T) {
	w := WarrantyItem{Name: "Eva", Store: StoreCocais, PurchaseDate: "2025-03-01", ExpiryDate: "2026-03-01"}
	w.ApplyDefaults()
	assert.Equal(t, WarrantyReturnedToStore, w.Status)
	require.NoError(t, w.Validate())

	w.Status = "Perdida"
	assert.ErrorIs(t, w.Validate(), ErrValidation)

	w.Status = WarrantyPending
	w.Store = "Shopping Desconhecido"
	assert.ErrorIs(t, w.Validate(), ErrValidation)

	missing := WarrantyItem{Store: StoreCocais, PurchaseDate: "2025-03-01", ExpiryDate: "2026-03-01"}
	err := missing.Validate()
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "name required")

	noExpiry := WarrantyItem{Name: "Eva", Store: StoreCocais, PurchaseDate: "2025-03-01"}
	err = noExpiry.Validate()
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "expiryDate required")

	blank := ""
	err = (&WarrantyPatch{ExpiryDate: &blank}).Validate()
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "expiryDate cannot be empty")
}

func TestMaterialRequestDefaultsAndValidate(t *testing.T) {
	m := MaterialRequest{Sector: StoreRioPoty, Description: "Sacolas", Justification: "Estoque baixo"}
	m.ApplyDefaults()
	assert.Equal(t, UrgencyMedium, m.Urgency)
	assert.Equal(t, RequestPending, m.Status)
	require.NoError(t, m.Validate())

	m.Urgency = "Medium"
	assert.ErrorIs(t, m.Validate(), ErrValidation)
}

func TestPatchValidate(t *testing.T) {
	tests := []struct {
		name    string
		patch   interface{ Validate() error }
		wantErr bool
	}{
		{"empty wishlist patch", &WishlistPatch{}, false},
		{"blank wishlist name", &WishlistPatch{Name: ptr(" ")}, true},
		{"purchased flag only", &WishlistPatch{AlreadyPurchased: ptr(false)}, false},
		{"known warranty status", &WarrantyPatch{Status: ptr(WarrantyConcluded)}, false},
		{"unknown warranty status", &WarrantyPatch{Status: ptr("Done")}, true},
		{"known request status", &MaterialRequestPatch{Status: ptr(RequestCompleted)}, false},
		{"unknown request status", &MaterialRequestPatch{Status: ptr("Completed")}, true},
		{"unknown sector", &MaterialRequestPatch{Sector: ptr("Depósito")}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.patch.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrValidation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBlobRefs(t *testing.T) {
	assert.Nil(t, WishlistItem{}.BlobRefs())
	assert.Equal(t, []string{"abc.jpg"}, WishlistItem{ImageRef: "abc.jpg"}.BlobRefs())
	assert.Equal(t, []string{"def.jpg"}, WarrantyItem{PiecesImageRef: "def.jpg"}.BlobRefs())
	assert.Nil(t, MaterialRequest{}.BlobRefs())
}
