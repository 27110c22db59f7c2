package api

import (
	"net/http"
)

func (h *Handler) listHospitals(w http.ResponseWriter, r *http.Request) {
	hospitals, err := h.svc.Reference.Hospitals(r.Context())
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, hospitals)
}

type hospitalRequest struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

func (h *Handler) createHospital(w http.ResponseWriter, r *http.Request) {
	if !h.requireSuperAdmin(w, r) {
		return
	}
	var req hospitalRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := h.svc.Reference.CreateHospital(r.Context(), req.Name, req.Address)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"id": id, "name": req.Name})
}

func (h *Handler) listBloodTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.svc.Reference.BloodTypes(r.Context())
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, types)
}
