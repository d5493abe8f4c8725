package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"umkm/internal/core"
	applog "umkm/internal/log"
)

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	p, _, err := principal(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	products, err := s.deps.Products.ListProducts(r.Context(), p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if products == nil {
		products = []core.Product{}
	}
	NewResponse().JSON(products).Write(w)
}

func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	p, _, err := principal(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	in, err := parseProduct(w, r, "")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	saved, err := s.deps.Products.CreateProduct(r.Context(), p, in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logProduct(r, applog.OpCreate, saved.ID)
	NewResponse().Status(http.StatusCreated).JSON(map[string]core.Product{"product": saved}).Write(w)
}

func (s *Server) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	p, _, err := principal(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	in, err := parseProduct(w, r, core.ID(chi.URLParam(r, "id")))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	saved, err := s.deps.Products.UpdateProduct(r.Context(), p, in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logProduct(r, applog.OpUpdate, saved.ID)
	NewResponse().JSON(map[string]core.Product{"product": saved}).Write(w)
}

func (s *Server) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	p, _, err := principal(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	id := core.ID(chi.URLParam(r, "id"))
	if err := s.deps.Products.DeleteProduct(r.Context(), p, id); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logProduct(r, applog.OpDelete, id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) logProduct(r *http.Request, op string, id core.ID) {
	applog.FromContext(r.Context()).WithComponent(applog.ComponentProduct).Info("Product "+op+"d",
		applog.FieldOperation, op,
		applog.FieldProductID, string(id))
}
