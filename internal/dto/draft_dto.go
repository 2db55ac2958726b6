package dto

import (
	"retailpos/internal/model"

	"github.com/shopspring/decimal"
)

// DraftFilter is bound from query string of GET /v1/drafts.
type DraftFilter struct {
	Status string `form:"status" validate:"omitempty,oneof=DRAFT CONFIRMED"`
	Page   int    `form:"page,default=1"   validate:"min=1"`
	Limit  int    `form:"limit,default=20" validate:"min=1,max=200"`
}

type DraftListResponse struct {
	Data  []DraftResponse `json:"data"`
	Total int64           `json:"total"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
}

// CreateDraftRequest is posted by the external text/voice parser.
type CreateDraftRequest struct {
	Source          string             `json:"source"           validate:"required,oneof=TEXT VOICE"`
	RawInput        string             `json:"raw_input"        validate:"max=10000"`
	ParsedData      model.DraftPayload `json:"parsed_data"`
	ConfidenceScore decimal.Decimal    `json:"confidence_score"`
	MissingFields   []string           `json:"missing_fields"`
	Questions       []string           `json:"questions"`
}

// UpdateDraftRequest replaces whichever fields are present.
type UpdateDraftRequest struct {
	ParsedData    *model.DraftPayload `json:"parsed_data"`
	MissingFields *[]string           `json:"missing_fields"`
	Questions     *[]string           `json:"questions"`
}

// ConfirmDraftRequest carries optional last-minute edits merged over parsed_data.
type ConfirmDraftRequest struct {
	Overrides *model.DraftPayload `json:"overrides"`
}

type DraftResponse struct {
	ID               string             `json:"id"`
	DraftCode        string             `json:"draft_code"`
	Source           string             `json:"source"`
	RawInput         string             `json:"raw_input"`
	ParsedData       model.DraftPayload `json:"parsed_data"`
	ConfidenceScore  decimal.Decimal    `json:"confidence_score"`
	MissingFields    []string           `json:"missing_fields"`
	Questions        []string           `json:"questions"`
	Status           string             `json:"status"`
	ConfirmedOrderID *string            `json:"confirmed_order_id"`
	ConfirmedAt      *string            `json:"confirmed_at"`
	CreatedAt        string             `json:"created_at"`
}

// ConfirmDraftResponse returns both the order and the customer created for it, if any.
type ConfirmDraftResponse struct {
	Order           OrderResponse     `json:"order"`
	CreatedCustomer *CustomerResponse `json:"created_customer,omitempty"`
	Draft           DraftResponse     `json:"draft"`
}
