package model

import (
	"fmt"
	"slices"
	"time"
)

// MaterialRequest is an internal requisition raised by a store.
type MaterialRequest struct {
	ID            string     `json:"id,omitempty"`
	Sector        string     `json:"sector"`
	Description   string     `json:"description"`
	Justification string     `json:"justification"`
	Urgency       string     `json:"urgency"`
	Status        string     `json:"status"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     *time.Time `json:"updatedAt,omitempty"`
}

// Urgency levels.
const (
	UrgencyUrgent = "Urgente"
	UrgencyMedium = "Médio"
	UrgencyLow    = "Baixo"
)

// Material request statuses.
const (
	RequestPending   = "Pendente"
	RequestCompleted = "Concluído"
	RequestRejected  = "Recusado"
)

// Urgencies and RequestStatuses list the accepted values in form order.
var (
	Urgencies       = []string{UrgencyUrgent, UrgencyMedium, UrgencyLow}
	RequestStatuses = []string{RequestPending, RequestCompleted, RequestRejected}
)

// MaterialRequestPatch is a partial update of a MaterialRequest.
type MaterialRequestPatch struct {
	Sector        *string `json:"sector,omitempty"`
	Description   *string `json:"description,omitempty"`
	Justification *string `json:"justification,omitempty"`
	Urgency       *string `json:"urgency,omitempty"`
	Status        *string `json:"status,omitempty"`
}

// ApplyDefaults fills the values a new request form starts with.
func (m *MaterialRequest) ApplyDefaults() {
	if m.Urgency == "" {
		m.Urgency = UrgencyMedium
	}
	if m.Status == "" {
		m.Status = RequestPending
	}
}

// Validate checks required fields and enumerations.
func (m *MaterialRequest) Validate() error {
	if err := required(
		"sector", m.Sector,
		"description", m.Description,
		"justification", m.Justification,
	); err != nil {
		return err
	}
	return checkRequest(&m.Sector, &m.Urgency, &m.Status)
}

// Validate checks the fields present in the patch.
func (p *MaterialRequestPatch) Validate() error {
	if err := notBlanked(
		"sector", p.Sector,
		"description", p.Description,
		"justification", p.Justification,
	); err != nil {
		return err
	}
	return checkRequest(p.Sector, p.Urgency, p.Status)
}

func checkRequest(sector, urgency, status *string) error {
	if sector != nil && !IsStore(*sector) {
		return fmt.Errorf("%w: unknown sector %q", ErrValidation, *sector)
	}
	if urgency != nil && !slices.Contains(Urgencies, *urgency) {
		return fmt.Errorf("%w: unknown urgency %q", ErrValidation, *urgency)
	}
	if status != nil && !slices.Contains(RequestStatuses, *status) {
		return fmt.Errorf("%w: unknown request status %q", ErrValidation, *status)
	}
	return nil
}

// Matches reports whether the request matches a list search term.
func (m MaterialRequest) Matches(term string) bool {
	return containsFold(term, m.Sector, m.Description, m.Status)
}

// BlobRefs returns nil; material requests carry no attachments.
func (m MaterialRequest) BlobRefs() []string {
	return nil
}
