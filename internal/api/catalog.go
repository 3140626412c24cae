package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/safar/catalog-store/internal/catalog"
	"github.com/safar/catalog-store/internal/models"
	"github.com/safar/catalog-store/internal/store"
)

func (h *Handler) RegisterCatalogRoutes(r chi.Router) {
	r.Get("/products", h.listProducts)
	r.Post("/products", h.createProduct)
	r.Get("/products/{id}", h.getProduct)
	r.Patch("/products/{id}", h.updateProduct)
	r.Delete("/products/{id}", h.deleteProduct)

	r.Get("/categories", h.listCategories)
	r.Post("/categories", h.createCategory)
	r.Get("/categories/{id}", h.getCategory)
	r.Patch("/categories/{id}", h.updateCategory)
	r.Delete("/categories/{id}", h.deleteCategory)

	r.Get("/users", h.listUsers)
	r.Post("/users", h.registerUser)
	r.Get("/users/{id}", h.getUser)
	r.Patch("/users/{id}", h.updateUser)
	r.Put("/users/{id}/password", h.changePassword)
}

// Products

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	q := newQueryParams(r)
	filter := store.ProductFilter{
		Search:     q.String("search"),
		CategoryID: q.OptionalInt64("category_id"),
		Brand:      q.String("brand"),
		MinPrice:   q.OptionalDecimal("min_price"),
		MaxPrice:   q.OptionalDecimal("max_price"),
		Available:  q.OptionalBool("available"),
		SortBy:     q.String("sort_by"),
		Order:      q.String("order"),
	}
	page := q.Page()
	if err := q.Err(); err != nil {
		h.respondWithError(w, r, err)
		return
	}

	result, err := h.catalog.ListProducts(r.Context(), filter, page)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var in catalog.CreateProductInput
	if err := decodeJSON(r, &in); err != nil {
		h.respondWithError(w, r, err)
		return
	}

	p, err := h.catalog.CreateProduct(r.Context(), in)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, p)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}

	p, err := h.catalog.GetProduct(r.Context(), id)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, p)
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}

	var upd models.ProductUpdate
	if err := decodeJSON(r, &upd); err != nil {
		h.respondWithError(w, r, err)
		return
	}

	p, err := h.catalog.UpdateProduct(r.Context(), id, upd)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, p)
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}

	if err := h.catalog.DeleteProduct(r.Context(), id); err != nil {
		h.respondWithError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Categories

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	q := newQueryParams(r)
	page := q.Page()
	if err := q.Err(); err != nil {
		h.respondWithError(w, r, err)
		return
	}

	result, err := h.catalog.ListCategories(r.Context(), page)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

func (h *Handler) createCategory(w http.ResponseWriter, r *http.Request) {
	var in catalog.CreateCategoryInput
	if err := decodeJSON(r, &in); err != nil {
		h.respondWithError(w, r, err)
		return
	}

	c, err := h.catalog.CreateCategory(r.Context(), in)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, c)
}

func (h *Handler) getCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}

	c, err := h.catalog.GetCategory(r.Context(), id)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, c)
}

func (h *Handler) updateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}

	var upd models.CategoryUpdate
	if err := decodeJSON(r, &upd); err != nil {
		h.respondWithError(w, r, err)
		return
	}

	c, err := h.catalog.UpdateCategory(r.Context(), id, upd)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, c)
}

func (h *Handler) deleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}

	if err := h.catalog.DeleteCategory(r.Context(), id); err != nil {
		h.respondWithError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Users

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	q := newQueryParams(r)
	page := q.Page()
	if err := q.Err(); err != nil {
		h.respondWithError(w, r, err)
		return
	}

	result, err := h.catalog.ListUsers(r.Context(), page)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

func (h *Handler) registerUser(w http.ResponseWriter, r *http.Request) {
	var in catalog.RegisterUserInput
	if err := decodeJSON(r, &in); err != nil {
		h.respondWithError(w, r, err)
		return
	}

	u, err := h.catalog.RegisterUser(r.Context(), in)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, u)
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}

	u, err := h.catalog.GetUser(r.Context(), id)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, u)
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}

	var upd models.UserUpdate
	if err := decodeJSON(r, &upd); err != nil {
		h.respondWithError(w, r, err)
		return
	}

	u, err := h.catalog.UpdateUser(r.Context(), id, upd)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, u)
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}

	var in catalog.ChangePasswordInput
	if err := decodeJSON(r, &in); err != nil {
		h.respondWithError(w, r, err)
		return
	}

	if err := h.catalog.ChangePassword(r.Context(), id, in); err != nil {
		h.respondWithError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
