package models

import "time"

const (
	ContractStatusActive  = "active"
	ContractStatusClosed  = "closed"
	ContractStatusAwarded = "awarded"
)

// Contract is a procurement opportunity as stored after ingestion or manual entry.
// Value, Deadline and OpportunityScore are nil when the source did not supply them.
type Contract struct {
	ID               int64      `json:"id"`
	Title            string     `json:"title"`
	Agency           string     `json:"agency"`
	NAICSCode        string     `json:"naics_code"`
	Value            *float64   `json:"value"`
	Deadline         *time.Time `json:"deadline"`
	Status           string     `json:"status"`
	OpportunityScore *int       `json:"opportunity_score"`
	Notes            string     `json:"notes"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

type ProcurementOfficer struct {
	ID                   int64      `json:"id"`
	Name                 string     `json:"name"`
	Agency               string     `json:"agency"`
	Email                string     `json:"email"`
	Phone                string     `json:"phone"`
	LastContactDate      *time.Time `json:"last_contact_date"`
	RelationshipStrength *int       `json:"relationship_strength"`
	Notes                string     `json:"notes"`
	CreatedAt            time.Time  `json:"created_at"`
}

type RevenueRecord struct {
	ID            int64     `json:"id"`
	ContractID    int64     `json:"contract_id"`
	PlacementDate time.Time `json:"placement_date"`
	FeeAmount     float64   `json:"fee_amount"`
	SuccessRate   *float64  `json:"success_rate"`
	CreatedAt     time.Time `json:"created_at"`
}
