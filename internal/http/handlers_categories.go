package http

import (
	"errors"
	"net/http"

	"smartasset/internal/core"
	"smartasset/internal/ledger"
	"smartasset/internal/log"
)

func (s *Server) renderCategories(w http.ResponseWriter, r *http.Request, resp *HTMXResponseBuilder) {
	cats, err := s.ledger.Categories(r.Context())
	if err != nil {
		s.storeFailed(w, r, log.OpList, "Failed to load categories", err)
		return
	}
	s.render(w, r, "categories", categoriesView{Categories: cats}, resp)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	s.renderCategories(w, r, nil)
}

func (s *Server) handleAddCategory(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		BadRequestError("Invalid form data").Write(w)
		return
	}
	cat, err := s.ledger.AddCategory(r.Context(), p.Get("name"))
	switch {
	case errors.Is(err, core.ErrInvalidCategory):
		UnprocessableEntityError("Category names must be 1 to 64 characters").Write(w)
		return
	case errors.Is(err, ledger.ErrDuplicateCategory):
		ConflictError("That category already exists").Write(w)
		return
	case err != nil:
		s.storeFailed(w, r, log.OpCreate, "Failed to add category", err)
		return
	}
	s.renderCategories(w, r, NewHTMXResponse().
		TriggerCategoriesChanged().
		TriggerFormReset().
		TriggerSuccessNotification("Added "+cat.Name))
}

// handleDeleteCategory leaves transactions that use the name untouched.
func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	switch err := s.ledger.DeleteCategory(r.Context(), name); {
	case errors.Is(err, ledger.ErrNotFound):
		NotFoundError("Category not found").Write(w)
		return
	case err != nil:
		s.storeFailed(w, r, log.OpDelete, "Failed to delete category", err)
		return
	}
	s.renderCategories(w, r, NewHTMXResponse().
		TriggerCategoriesChanged().
		TriggerSuccessNotification("Deleted "+name))
}
