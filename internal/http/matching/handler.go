package matching

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/tally/internal/http/render"
	"github.com/MrJamesThe3rd/tally/internal/matching"
)

type Handler struct {
	svc *matching.Service
}

func NewHandler(svc *matching.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/suggest", h.suggest)
	r.Get("/", h.list)
	r.Post("/", h.learn)
	r.Delete("/{id}", h.forget)
}

type ruleResponse struct {
	ID          uuid.UUID `json:"id"`
	RawPattern  string    `json:"raw_pattern"`
	Category    string    `json:"category,omitempty"`
	Vendor      string    `json:"vendor,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func toResponse(rule *matching.Rule) ruleResponse {
	return ruleResponse{
		ID:          rule.ID,
		RawPattern:  rule.RawPattern,
		Category:    rule.Category,
		Vendor:      rule.Vendor,
		Description: rule.Description,
		CreatedAt:   rule.CreatedAt,
	}
}

type suggestResponse struct {
	RawDescription string        `json:"raw_description"`
	Rule           *ruleResponse `json:"rule"`
}

func (h *Handler) suggest(w http.ResponseWriter, r *http.Request) {
	rawDesc := r.URL.Query().Get("raw_description")
	if rawDesc == "" {
		render.BadRequest(w, "raw_description query parameter is required")
		return
	}

	rule, err := h.svc.Suggest(r.Context(), rawDesc)
	if err != nil {
		render.Error(w, r, err)
		return
	}

	resp := suggestResponse{RawDescription: rawDesc}
	if rule != nil {
		resp.Rule = new(toResponse(rule))
	}

	render.JSON(w, http.StatusOK, resp)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	rules, err := h.svc.Rules(r.Context())
	if err != nil {
		render.Error(w, r, err)
		return
	}

	resp := make([]ruleResponse, 0, len(rules))
	for _, rule := range rules {
		resp = append(resp, toResponse(rule))
	}

	render.JSON(w, http.StatusOK, resp)
}

type learnRequest struct {
	RawPattern  string `json:"raw_pattern"`
	Category    string `json:"category"`
	Vendor      string `json:"vendor"`
	Description string `json:"description"`
}

func (h *Handler) learn(w http.ResponseWriter, r *http.Request) {
	var req learnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		render.BadRequest(w, err.Error())
		return
	}

	rule, err := h.svc.Learn(r.Context(), matching.Rule{
		RawPattern:  req.RawPattern,
		Category:    req.Category,
		Vendor:      req.Vendor,
		Description: req.Description,
	})
	if err != nil {
		render.Error(w, r, err)
		return
	}

	render.JSON(w, http.StatusCreated, toResponse(rule))
}

func (h *Handler) forget(w http.ResponseWriter, r *http.Request) {
	id, ok := render.ID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	if err := h.svc.Forget(r.Context(), id); err != nil {
		render.Error(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
