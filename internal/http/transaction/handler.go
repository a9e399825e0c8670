package transaction

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/tally/internal/http/render"
	"github.com/MrJamesThe3rd/tally/internal/ledger"
)

type Handler struct {
	svc *ledger.Service
}

func NewHandler(svc *ledger.Service) *Handler {
	return &Handler{svc: svc}
}

// LedgerRoutes serves the transactions of the ledger in the {ledgerID} parameter.
func (h *Handler) LedgerRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
}

// RelationRoutes serves the relations of the ledger in the {ledgerID} parameter.
func (h *Handler) RelationRoutes(r chi.Router) {
	r.Get("/", h.relations)
	r.Post("/", h.link)
	r.Delete("/{relationID}", h.unlink)
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/{id}", h.get)
	r.Patch("/{id}", h.update)
	r.Delete("/{id}", h.delete)
	r.Put("/{id}/breakout", h.attach)
	r.Delete("/{id}/breakout", h.detach)
}

func parseDate(s string) (time.Time, error) {
	return time.Parse(time.DateOnly, s)
}

type createTransactionRequest struct {
	Date            string          `json:"date"`
	Amount          decimal.Decimal `json:"amount"`
	Description     string          `json:"description"`
	Category        string          `json:"category"`
	Member          string          `json:"member"`
	Source          string          `json:"source"`
	Vendor          string          `json:"vendor"`
	ReferenceNumber string          `json:"reference_number"`
	PostedDate      *string         `json:"posted_date,omitempty"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	ledgerID, ok := render.ID(w, chi.URLParam(r, "ledgerID"))
	if !ok {
		return
	}

	var req createTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		render.BadRequest(w, err.Error())
		return
	}

	date, err := parseDate(req.Date)
	if err != nil {
		render.BadRequest(w, "date must be YYYY-MM-DD")
		return
	}

	params := ledger.CreateParams{
		Date:            date,
		Amount:          req.Amount,
		Description:     req.Description,
		Category:        req.Category,
		Member:          req.Member,
		Source:          req.Source,
		Vendor:          req.Vendor,
		ReferenceNumber: req.ReferenceNumber,
	}

	if req.PostedDate != nil {
		posted, err := parseDate(*req.PostedDate)
		if err != nil {
			render.BadRequest(w, "posted_date must be YYYY-MM-DD")
			return
		}

		params.PostedDate = &posted
	}

	tx, err := h.svc.Create(r.Context(), ledgerID, params)
	if err != nil {
		render.Error(w, r, err)
		return
	}

	render.JSON(w, http.StatusCreated, ToResponse(tx))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	ledgerID, ok := render.ID(w, chi.URLParam(r, "ledgerID"))
	if !ok {
		return
	}

	rng := ledger.All

	if s := r.URL.Query().Get("start_date"); s != "" {
		t, err := parseDate(s)
		if err != nil {
			render.BadRequest(w, "start_date must be YYYY-MM-DD")
			return
		}

		rng.From = new(ledger.DayStart(t))
	}

	if s := r.URL.Query().Get("end_date"); s != "" {
		t, err := parseDate(s)
		if err != nil {
			render.BadRequest(w, "end_date must be YYYY-MM-DD")
			return
		}

		rng.To = new(ledger.DayEnd(t))
	}

	if _, err := h.svc.GetLedger(r.Context(), ledgerID); err != nil {
		render.Error(w, r, err)
		return
	}

	txs, err := h.svc.List(r.Context(), ledgerID, rng)
	if err != nil {
		render.Error(w, r, err)
		return
	}

	render.JSON(w, http.StatusOK, ToResponseList(txs))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := render.ID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	tx, err := h.svc.Get(r.Context(), id)
	if err != nil {
		render.Error(w, r, err)
		return
	}

	render.JSON(w, http.StatusOK, ToResponse(tx))
}

type updateTransactionRequest struct {
	Date            *string          `json:"date,omitempty"`
	Amount          *decimal.Decimal `json:"amount,omitempty"`
	Description     *string          `json:"description,omitempty"`
	Category        *string          `json:"category,omitempty"`
	Member          *string          `json:"member,omitempty"`
	Source          *string          `json:"source,omitempty"`
	Vendor          *string          `json:"vendor,omitempty"`
	ReferenceNumber *string          `json:"reference_number,omitempty"`
	RecomputeParent bool             `json:"recompute_parent"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := render.ID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req updateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		render.BadRequest(w, err.Error())
		return
	}

	params := ledger.UpdateParams{
		Amount:          req.Amount,
		Description:     req.Description,
		Category:        req.Category,
		Member:          req.Member,
		Source:          req.Source,
		Vendor:          req.Vendor,
		ReferenceNumber: req.ReferenceNumber,
	}

	if req.Date != nil {
		date, err := parseDate(*req.Date)
		if err != nil {
			render.BadRequest(w, "date must be YYYY-MM-DD")
			return
		}

		params.Date = &date
	}

	tx, err := h.svc.Update(r.Context(), id, params, ledger.UpdateOptions{RecomputeParent: req.RecomputeParent})
	if err != nil {
		render.Error(w, r, err)
		return
	}

	render.JSON(w, http.StatusOK, ToResponse(tx))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := render.ID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	recompute, _ := strconv.ParseBool(r.URL.Query().Get("recompute_parent"))

	if err := h.svc.Delete(r.Context(), id, ledger.DeleteOptions{RecomputeParent: recompute}); err != nil {
		render.Error(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type childRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Member      string          `json:"member"`
	Source      string          `json:"source"`
	Vendor      string          `json:"vendor"`
}

type breakoutRequest struct {
	Children []childRequest `json:"children"`
}

func (h *Handler) attach(w http.ResponseWriter, r *http.Request) {
	id, ok := render.ID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req breakoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		render.BadRequest(w, err.Error())
		return
	}

	children := make([]ledger.ChildParams, 0, len(req.Children))
	for _, c := range req.Children {
		children = append(children, ledger.ChildParams{
			Amount:      c.Amount,
			Description: c.Description,
			Category:    c.Category,
			Member:      c.Member,
			Source:      c.Source,
			Vendor:      c.Vendor,
		})
	}

	res, err := h.svc.AttachChildren(r.Context(), id, children)
	if err != nil {
		render.Error(w, r, err)
		return
	}

	render.JSON(w, http.StatusOK, breakoutResponse{
		Parent:   ToResponse(res.Parent),
		Children: ToResponseList(res.Children),
		Removed:  res.Removed,
	})
}

func (h *Handler) detach(w http.ResponseWriter, r *http.Request) {
	id, ok := render.ID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	removed, err := h.svc.DetachChildren(r.Context(), id)
	if err != nil {
		render.Error(w, r, err)
		return
	}

	render.JSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func (h *Handler) relations(w http.ResponseWriter, r *http.Request) {
	ledgerID, ok := render.ID(w, chi.URLParam(r, "ledgerID"))
	if !ok {
		return
	}

	rels, err := h.svc.Relations(r.Context(), ledgerID)
	if err != nil {
		render.Error(w, r, err)
		return
	}

	resp := make([]relationResponse, 0, len(rels))
	for _, rel := range rels {
		resp = append(resp, toRelationResponse(rel))
	}

	render.JSON(w, http.StatusOK, resp)
}

type linkRequest struct {
	A     string              `json:"a"`
	B     string              `json:"b"`
	Type  ledger.RelationType `json:"type"`
	Notes string              `json:"notes"`
}

func (h *Handler) link(w http.ResponseWriter, r *http.Request) {
	ledgerID, ok := render.ID(w, chi.URLParam(r, "ledgerID"))
	if !ok {
		return
	}

	var req linkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		render.BadRequest(w, err.Error())
		return
	}

	a, ok := render.ID(w, req.A)
	if !ok {
		return
	}

	b, ok := render.ID(w, req.B)
	if !ok {
		return
	}

	tx, err := h.svc.Get(r.Context(), a)
	if err != nil {
		render.Error(w, r, err)
		return
	}

	if tx.LedgerID != ledgerID {
		http.Error(w, "transaction not found", http.StatusNotFound)
		return
	}

	rel, err := h.svc.Link(r.Context(), ledger.LinkParams{A: a, B: b, Type: req.Type, Notes: req.Notes})
	if err != nil {
		render.Error(w, r, err)
		return
	}

	render.JSON(w, http.StatusCreated, toRelationResponse(rel))
}

func (h *Handler) unlink(w http.ResponseWriter, r *http.Request) {
	ledgerID, ok := render.ID(w, chi.URLParam(r, "ledgerID"))
	if !ok {
		return
	}

	relID, ok := render.ID(w, chi.URLParam(r, "relationID"))
	if !ok {
		return
	}

	if err := h.svc.Unlink(r.Context(), ledgerID, relID); err != nil {
		render.Error(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
