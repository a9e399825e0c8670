package transaction

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/tally/internal/ledger"
)

type Response struct {
	ID               uuid.UUID       `json:"id"`
	LedgerID         uuid.UUID       `json:"ledger_id"`
	Sequence         int64           `json:"sequence"`
	Date             string          `json:"date"`
	Amount           decimal.Decimal `json:"amount"`
	RunningBalance   decimal.Decimal `json:"running_balance"`
	Description      string          `json:"description"`
	Category         string          `json:"category"`
	Member           string          `json:"member,omitempty"`
	Source           string          `json:"source,omitempty"`
	Vendor           string          `json:"vendor,omitempty"`
	ParentID         *uuid.UUID      `json:"parent_id,omitempty"`
	IsBreakoutParent bool            `json:"is_breakout_parent"`
	ImportTag        string          `json:"import_tag,omitempty"`
	ReferenceNumber  string          `json:"reference_number,omitempty"`
	PostedDate       *string         `json:"posted_date,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

func ToResponse(tx *ledger.Transaction) Response {
	resp := Response{
		ID:               tx.ID,
		LedgerID:         tx.LedgerID,
		Sequence:         tx.Sequence,
		Date:             tx.Date.Format(ledger.DateLayout),
		Amount:           tx.Amount,
		RunningBalance:   tx.RunningBalance,
		Description:      tx.Description,
		Category:         tx.Category,
		Member:           tx.Member,
		Source:           tx.Source,
		Vendor:           tx.Vendor,
		ParentID:         tx.ParentID,
		IsBreakoutParent: tx.IsBreakoutParent,
		ImportTag:        tx.ImportTag,
		ReferenceNumber:  tx.ReferenceNumber,
		CreatedAt:        tx.CreatedAt,
		UpdatedAt:        tx.UpdatedAt,
	}

	if tx.PostedDate != nil {
		resp.PostedDate = new(tx.PostedDate.Format(ledger.DateLayout))
	}

	return resp
}

func ToResponseList(txs []*ledger.Transaction) []Response {
	resp := make([]Response, len(txs))
	for i, tx := range txs {
		resp[i] = ToResponse(tx)
	}

	return resp
}

type relationResponse struct {
	ID    uuid.UUID           `json:"id"`
	A     uuid.UUID           `json:"a"`
	B     uuid.UUID           `json:"b"`
	Type  ledger.RelationType `json:"type"`
	Notes string              `json:"notes,omitempty"`
}

func toRelationResponse(r *ledger.Relation) relationResponse {
	return relationResponse{ID: r.ID, A: r.A, B: r.B, Type: r.Type, Notes: r.Notes}
}

type breakoutResponse struct {
	Parent   Response   `json:"parent"`
	Children []Response `json:"children"`
	Removed  int        `json:"removed"`
}
