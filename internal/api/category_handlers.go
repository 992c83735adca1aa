package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/example/marketplace/internal/command"
	"github.com/example/marketplace/internal/domain/category"
	"github.com/example/marketplace/internal/query"
)

// CategoryNode is a category with its children, for navigation menus.
type CategoryNode struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Slug         string         `json:"slug"`
	CompleteName string         `json:"complete_name"`
	Sequence     int            `json:"sequence"`
	Children     []CategoryNode `json:"children,omitempty"`
}

// buildTree nests categories under their parents, keeping the input order.
// Categories whose parent is missing from the input become roots.
func buildTree(categories []*query.CategoryReadModel) []CategoryNode {
	present := make(map[string]bool, len(categories))
	children := make(map[string][]*query.CategoryReadModel)
	for _, c := range categories {
		present[c.ID] = true
	}
	var roots []*query.CategoryReadModel
	for _, c := range categories {
		if c.ParentID == "" || !present[c.ParentID] {
			roots = append(roots, c)
			continue
		}
		children[c.ParentID] = append(children[c.ParentID], c)
	}

	var nest func(list []*query.CategoryReadModel) []CategoryNode
	nest = func(list []*query.CategoryReadModel) []CategoryNode {
		nodes := make([]CategoryNode, 0, len(list))
		for _, c := range list {
			nodes = append(nodes, CategoryNode{
				ID:           c.ID,
				Name:         c.Name,
				Slug:         c.Slug,
				CompleteName: c.CompleteName,
				Sequence:     c.Sequence,
				Children:     nest(children[c.ID]),
			})
		}
		return nodes
	}
	return nest(roots)
}

// ListCategories returns active categories, flat or as a tree with ?tree=true.
func (h *Handlers) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.queryHandler.ListCategories(!isAdmin(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	if r.URL.Query().Get("tree") == "true" {
		respondJSON(w, http.StatusOK, buildTree(categories))
		return
	}
	respondJSON(w, http.StatusOK, categories)
}

func (h *Handlers) GetCategory(w http.ResponseWriter, r *http.Request) {
	reply(w, r)(h.queryHandler.GetCategory(chi.URLParam(r, "categoryID")))
}

// CreateCategory creates a new category (admin only)
func (h *Handlers) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var fields category.Fields
	if err := decodeBody(r, &fields); err != nil {
		respondError(w, r, err)
		return
	}
	c, err := h.cmdHandler.SaveCategory(r.Context(), command.SaveCategory{Fields: fields})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, c)
}

// UpdateCategory replaces a category's fields (admin only)
func (h *Handlers) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	var fields category.Fields
	if err := decodeBody(r, &fields); err != nil {
		respondError(w, r, err)
		return
	}
	reply(w, r)(h.cmdHandler.SaveCategory(r.Context(), command.SaveCategory{
		CategoryID: chi.URLParam(r, "categoryID"),
		Fields:     fields,
	}))
}

func (h *Handlers) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := h.cmdHandler.DeleteCategory(r.Context(), chi.URLParam(r, "categoryID")); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
