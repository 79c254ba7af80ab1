package handlers

import "net/http"

// PageHandler renders the static informational pages.
type PageHandler struct {
	Renderer Renderer
}

// Static returns a handler rendering the named template.
func (h PageHandler) Static(name, title string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		render(r.Context(), w, h.Renderer, http.StatusOK, name, title, nil)
	}
}

// NotFound renders the 404 page.
func (h PageHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	renderError(r.Context(), w, h.Renderer, http.StatusNotFound)
}
