package group

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/tally/internal/group"
	"github.com/MrJamesThe3rd/tally/internal/http/render"
)

type Handler struct {
	svc *group.Service
}

func NewHandler(svc *group.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Patch("/{id}", h.update)
	r.Delete("/{id}", h.delete)
}

type groupResponse struct {
	ID        uuid.UUID  `json:"id"`
	ParentID  *uuid.UUID `json:"parent_id,omitempty"`
	Name      string     `json:"name"`
	Notes     string     `json:"notes,omitempty"`
	Path      string     `json:"path"`
	CreatedAt time.Time  `json:"created_at"`
}

type groupDetailResponse struct {
	groupResponse
	Ancestors   []groupResponse `json:"ancestors"`
	Descendants []groupResponse `json:"descendants"`
}

func toResponse(tree *group.Tree, g *group.Group) groupResponse {
	return groupResponse{
		ID:        g.ID,
		ParentID:  g.ParentID,
		Name:      g.Name,
		Notes:     g.Notes,
		Path:      tree.Path(g.ID),
		CreatedAt: g.CreatedAt,
	}
}

func toResponseList(tree *group.Tree, groups []*group.Group) []groupResponse {
	resp := make([]groupResponse, 0, len(groups))
	for _, g := range groups {
		resp = append(resp, toResponse(tree, g))
	}

	return resp
}

// list returns every group depth-first, roots in name order.
func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	tree, err := h.svc.Tree(r.Context())
	if err != nil {
		render.Error(w, r, err)
		return
	}

	var groups []*group.Group
	for _, root := range tree.Roots() {
		groups = append(groups, root)
		groups = append(groups, tree.Descendants(root.ID)...)
	}

	render.JSON(w, http.StatusOK, toResponseList(tree, groups))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := render.ID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	h.detail(w, r, id, http.StatusOK)
}

func (h *Handler) detail(w http.ResponseWriter, r *http.Request, id uuid.UUID, status int) {
	tree, err := h.svc.Tree(r.Context())
	if err != nil {
		render.Error(w, r, err)
		return
	}

	g, ok := tree.Get(id)
	if !ok {
		http.Error(w, "budget group not found", http.StatusNotFound)
		return
	}

	render.JSON(w, status, groupDetailResponse{
		groupResponse: toResponse(tree, g),
		Ancestors:     toResponseList(tree, tree.Ancestors(id)),
		Descendants:   toResponseList(tree, tree.Descendants(id)),
	})
}

type createGroupRequest struct {
	Name     string     `json:"name"`
	Notes    string     `json:"notes"`
	ParentID *uuid.UUID `json:"parent_id,omitempty"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		render.BadRequest(w, err.Error())
		return
	}

	g, err := h.svc.Create(r.Context(), group.CreateParams{
		Name:     req.Name,
		Notes:    req.Notes,
		ParentID: req.ParentID,
	})
	if err != nil {
		render.Error(w, r, err)
		return
	}

	h.detail(w, r, g.ID, http.StatusCreated)
}

type updateGroupRequest struct {
	Name     *string    `json:"name,omitempty"`
	Notes    *string    `json:"notes,omitempty"`
	Move     bool       `json:"move"`
	ParentID *uuid.UUID `json:"parent_id,omitempty"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := render.ID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req updateGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		render.BadRequest(w, err.Error())
		return
	}

	if _, err := h.svc.Update(r.Context(), id, group.UpdateParams{
		Name:     req.Name,
		Notes:    req.Notes,
		Move:     req.Move,
		ParentID: req.ParentID,
	}); err != nil {
		render.Error(w, r, err)
		return
	}

	h.detail(w, r, id, http.StatusOK)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := render.ID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		render.Error(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
