package ledger

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/tally/internal/http/render"
	"github.com/MrJamesThe3rd/tally/internal/ledger"
	"github.com/MrJamesThe3rd/tally/internal/scenario"
)

type Handler struct {
	svc       *ledger.Service
	scenarios *scenario.Manager
}

func NewHandler(svc *ledger.Service, scenarios *scenario.Manager) *Handler {
	return &Handler{svc: svc, scenarios: scenarios}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{ledgerID}", h.get)
	r.Patch("/{ledgerID}", h.update)
	r.Delete("/{ledgerID}", h.delete)
	r.Post("/{ledgerID}/recalculate", h.recalculate)
	r.Post("/{ledgerID}/copy", h.copy)
	r.Get("/{ledgerID}/imports", h.imports)
}

type ledgerResponse struct {
	ID        uuid.UUID   `json:"id"`
	Name      string      `json:"name"`
	Notes     string      `json:"notes,omitempty"`
	GroupID   *uuid.UUID  `json:"group_id,omitempty"`
	Kind      ledger.Kind `json:"kind"`
	SourceID  *uuid.UUID  `json:"source_id,omitempty"`
	Sequence  int64       `json:"sequence"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

func toResponse(l *ledger.Ledger) ledgerResponse {
	return ledgerResponse{
		ID:        l.ID,
		Name:      l.Name,
		Notes:     l.Notes,
		GroupID:   l.GroupID,
		Kind:      l.Kind,
		SourceID:  l.SourceID,
		Sequence:  l.Sequence,
		CreatedAt: l.CreatedAt,
		UpdatedAt: l.UpdatedAt,
	}
}

type createLedgerRequest struct {
	Name    string     `json:"name"`
	Notes   string     `json:"notes"`
	GroupID *uuid.UUID `json:"group_id,omitempty"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createLedgerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		render.BadRequest(w, err.Error())
		return
	}

	l, err := h.svc.CreateLedger(r.Context(), ledger.CreateLedgerParams{
		Name:    req.Name,
		Notes:   req.Notes,
		GroupID: req.GroupID,
	})
	if err != nil {
		render.Error(w, r, err)
		return
	}

	render.JSON(w, http.StatusCreated, toResponse(l))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	ledgers, err := h.svc.ListLedgers(r.Context())
	if err != nil {
		render.Error(w, r, err)
		return
	}

	resp := make([]ledgerResponse, 0, len(ledgers))
	for _, l := range ledgers {
		resp = append(resp, toResponse(l))
	}

	render.JSON(w, http.StatusOK, resp)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := render.ID(w, chi.URLParam(r, "ledgerID"))
	if !ok {
		return
	}

	l, err := h.svc.GetLedger(r.Context(), id)
	if err != nil {
		render.Error(w, r, err)
		return
	}

	render.JSON(w, http.StatusOK, toResponse(l))
}

type updateLedgerRequest struct {
	Name       *string    `json:"name,omitempty"`
	Notes      *string    `json:"notes,omitempty"`
	GroupID    *uuid.UUID `json:"group_id,omitempty"`
	ClearGroup bool       `json:"clear_group"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := render.ID(w, chi.URLParam(r, "ledgerID"))
	if !ok {
		return
	}

	var req updateLedgerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		render.BadRequest(w, err.Error())
		return
	}

	l, err := h.svc.UpdateLedger(r.Context(), id, ledger.UpdateLedgerParams{
		Name:       req.Name,
		Notes:      req.Notes,
		GroupID:    req.GroupID,
		ClearGroup: req.ClearGroup,
	})
	if err != nil {
		render.Error(w, r, err)
		return
	}

	render.JSON(w, http.StatusOK, toResponse(l))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := render.ID(w, chi.URLParam(r, "ledgerID"))
	if !ok {
		return
	}

	if err := h.svc.DeleteLedger(r.Context(), id); err != nil {
		render.Error(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type recalculateRequest struct {
	FromDate     string `json:"from_date"`
	FromSequence int64  `json:"from_sequence"`
}

type recalculateResponse struct {
	Affected int `json:"affected"`
}

func (h *Handler) recalculate(w http.ResponseWriter, r *http.Request) {
	id, ok := render.ID(w, chi.URLParam(r, "ledgerID"))
	if !ok {
		return
	}

	var req recalculateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		render.BadRequest(w, err.Error())
		return
	}

	from := ledger.FromStart

	if req.FromDate != "" {
		d, err := time.Parse(time.DateOnly, req.FromDate)
		if err != nil {
			render.BadRequest(w, "from_date must be YYYY-MM-DD")
			return
		}

		from = ledger.OrderKey{Date: ledger.Day(d), Sequence: req.FromSequence}
	}

	affected, err := h.svc.Recalculate(r.Context(), id, from)
	if err != nil {
		render.Error(w, r, err)
		return
	}

	render.JSON(w, http.StatusOK, recalculateResponse{Affected: affected})
}

type copyRequest struct {
	Mode string `json:"mode"`
	Name string `json:"name"`
}

func (h *Handler) copy(w http.ResponseWriter, r *http.Request) {
	id, ok := render.ID(w, chi.URLParam(r, "ledgerID"))
	if !ok {
		return
	}

	var req copyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		render.BadRequest(w, err.Error())
		return
	}

	mode := ledger.KindCopy

	switch req.Mode {
	case "", "copy":
	case "what-if", "what_if", "whatif":
		mode = ledger.KindWhatIf
	default:
		mode = ledger.Kind(req.Mode)
	}

	l, err := h.scenarios.CopyLedger(r.Context(), id, mode, req.Name)
	if err != nil {
		render.Error(w, r, err)
		return
	}

	render.JSON(w, http.StatusCreated, toResponse(l))
}

type importSummaryResponse struct {
	ID               uuid.UUID `json:"id"`
	Tag              string    `json:"tag"`
	FileName         string    `json:"file_name,omitempty"`
	Policy           string    `json:"policy"`
	Imported         int       `json:"imported"`
	SkippedDuplicate int       `json:"skipped_duplicate"`
	Replaced         int       `json:"replaced"`
	FailedValidation int       `json:"failed_validation"`
	CreatedAt        time.Time `json:"created_at"`
}

func (h *Handler) imports(w http.ResponseWriter, r *http.Request) {
	id, ok := render.ID(w, chi.URLParam(r, "ledgerID"))
	if !ok {
		return
	}

	summaries, err := h.svc.Imports(r.Context(), id)
	if err != nil {
		render.Error(w, r, err)
		return
	}

	resp := make([]importSummaryResponse, 0, len(summaries))
	for _, s := range summaries {
		resp = append(resp, importSummaryResponse{
			ID:               s.ID,
			Tag:              s.Tag,
			FileName:         s.FileName,
			Policy:           s.Policy,
			Imported:         s.Imported,
			SkippedDuplicate: s.SkippedDuplicate,
			Replaced:         s.Replaced,
			FailedValidation: s.FailedValidation,
			CreatedAt:        s.CreatedAt,
		})
	}

	render.JSON(w, http.StatusOK, resp)
}
