package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) listProviders(w http.ResponseWriter, r *http.Request) {
	page, err := pageFromQuery(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	items, total, err := h.catalog.ListProviders(r.Context(), page)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPage(items, total, page, providerToAPI))
}

func (h *Handler) getProvider(w http.ResponseWriter, r *http.Request) {
	p, err := h.catalog.GetProvider(r.Context(), chi.URLParam(r, "providerID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, providerToAPI(p))
}

func (h *Handler) listAttributions(w http.ResponseWriter, r *http.Request) {
	page, err := pageFromQuery(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	items, total, err := h.catalog.ListAttributions(r.Context(), page)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPage(items, total, page, attributionToAPI))
}

func (h *Handler) getAttribution(w http.ResponseWriter, r *http.Request) {
	a, err := h.catalog.GetAttribution(r.Context(), chi.URLParam(r, "attributionID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, attributionToAPI(a))
}

func (h *Handler) listDatasets(w http.ResponseWriter, r *http.Request) {
	page, err := pageFromQuery(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	items, total, err := h.catalog.ListDatasets(r.Context(), page)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPage(items, total, page, datasetToAPI))
}

func (h *Handler) getDataset(w http.ResponseWriter, r *http.Request) {
	d, err := h.catalog.GetDataset(r.Context(), chi.URLParam(r, "datasetID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, datasetToAPI(d))
}

func (h *Handler) listDistributions(w http.ResponseWriter, r *http.Request) {
	page, err := pageFromQuery(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	items, total, err := h.catalog.ListDistributions(r.Context(), page)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPage(items, total, page, distributionToAPI))
}
