package api

import (
	"net/http"

	"donateblood/m/domain"
	"donateblood/m/internal/auth"
)

type donationRequest struct {
	HospitalID   int64  `json:"hospital_id"`
	BloodTypeID  int64  `json:"blood_type_id"`
	DonorUserID  *int64 `json:"donor_user_id"`
	DonationDate string `json:"donation_date"`
}

func (h *Handler) recordDonation(w http.ResponseWriter, r *http.Request) {
	var req donationRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if admin, _ := auth.AdminFromContext(r.Context()); admin.HospitalID != nil {
		req.HospitalID = *admin.HospitalID
	}
	if _, err := h.svc.Reference.HospitalName(r.Context(), req.HospitalID); err != nil {
		h.respondErr(w, r, err)
		return
	}
	if _, err := h.svc.Reference.BloodTypeLabel(r.Context(), req.BloodTypeID); err != nil {
		h.respondErr(w, r, err)
		return
	}
	unit, err := h.svc.Ledger.RecordDonation(r.Context(), req.HospitalID, req.BloodTypeID, req.DonorUserID, req.DonationDate)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, unit)
}

func (h *Handler) availableUnits(w http.ResponseWriter, r *http.Request) {
	bloodTypeID, err := queryInt(r, "blood_type_id")
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	hospital, err := h.scopedHospital(r)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	if hospital == nil {
		h.respondErr(w, r, domain.Invalid("hospital_id", "hospital_id is required"))
		return
	}
	units, err := h.svc.Ledger.AvailableUnits(r.Context(), *hospital, bloodTypeID)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{
		"hospital_id":   *hospital,
		"blood_type_id": bloodTypeID,
		"available":     units,
	})
}

func (h *Handler) hospitalsWithStock(w http.ResponseWriter, r *http.Request) {
	bloodTypeID, err := queryInt(r, "blood_type_id")
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	minUnits, err := queryInt(r, "min_units")
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	ids, err := h.svc.Ledger.HospitalsWithStock(r.Context(), bloodTypeID, minUnits)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"hospital_ids": ids})
}
