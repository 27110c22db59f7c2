package api

import (
	"errors"
	"io"
	"net/http"

	"donateblood/m/domain"
	"donateblood/m/internal/auth"
	"donateblood/m/internal/requests"
)

func (h *Handler) listRecipients(w http.ResponseWriter, r *http.Request) {
	hospital, err := h.scopedHospital(r)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	var status domain.RequestStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		if status, err = domain.ParseRequestStatus(raw); err != nil {
			h.respondErr(w, r, domain.Invalid("status", err.Error()))
			return
		}
	}
	rows, err := h.svc.Requests.ListForHospital(r.Context(), hospital)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	if status != "" {
		filtered := make([]domain.RequestRow, 0, len(rows))
		for _, row := range rows {
			if row.Status == status {
				filtered = append(filtered, row)
			}
		}
		rows = filtered
	}
	respondJSON(w, http.StatusOK, rows)
}

type recipientRequest struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	DateOfBirth  string `json:"date_of_birth"`
	Address      string `json:"address"`
	Gender       string `json:"gender"`
	Password     string `json:"password"`
	HospitalID   int64  `json:"hospital_id"`
	BloodTypeID  int64  `json:"blood_type_id"`
	Quantity     int64  `json:"quantity"`
	Urgency      string `json:"urgency"`
	RequiredDate string `json:"required_date"`
}

func (h *Handler) createRecipient(w http.ResponseWriter, r *http.Request) {
	var req recipientRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := h.svc.Requests.Create(r.Context(), requests.NewRequest{
		Recipient: domain.Profile{
			Name:        req.Name,
			Email:       req.Email,
			Phone:       req.Phone,
			DateOfBirth: req.DateOfBirth,
			Address:     req.Address,
			Gender:      req.Gender,
		},
		Password:     req.Password,
		HospitalID:   req.HospitalID,
		BloodTypeID:  req.BloodTypeID,
		Quantity:     req.Quantity,
		Urgency:      req.Urgency,
		RequiredDate: req.RequiredDate,
	})
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

// loadScoped fetches the request named in the path, refusing requests of
// another hospital to a hospital-bound admin.
func (h *Handler) loadScoped(w http.ResponseWriter, r *http.Request) (domain.BloodRequest, bool) {
	id, err := pathID(r)
	if err != nil {
		h.respondErr(w, r, err)
		return domain.BloodRequest{}, false
	}
	req, err := h.svc.Requests.Get(r.Context(), id)
	if err != nil {
		h.respondErr(w, r, err)
		return domain.BloodRequest{}, false
	}
	if admin, _ := auth.AdminFromContext(r.Context()); admin.HospitalID != nil && *admin.HospitalID != req.HospitalID {
		respondError(w, http.StatusForbidden, "request belongs to another hospital")
		return domain.BloodRequest{}, false
	}
	return req, true
}

type recipientDetail struct {
	domain.BloodRequest
	Fulfillments []domain.FulfillmentRecord `json:"fulfillments"`
}

func (h *Handler) getRecipient(w http.ResponseWriter, r *http.Request) {
	req, ok := h.loadScoped(w, r)
	if !ok {
		return
	}
	records, err := h.svc.Requests.FulfillmentRecords(r.Context(), req.ID)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, recipientDetail{BloodRequest: req, Fulfillments: records})
}

func (h *Handler) completeRecipient(w http.ResponseWriter, r *http.Request) {
	req, ok := h.loadScoped(w, r)
	if !ok {
		return
	}
	var payload struct {
		Units *int64 `json:"units"`
	}
	if err := decodeJSON(r, &payload); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	units := req.Quantity
	if payload.Units != nil {
		units = *payload.Units
	}
	result, err := h.svc.Requests.Fulfill(r.Context(), req.ID, units)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *Handler) transferRecipient(w http.ResponseWriter, r *http.Request) {
	req, ok := h.loadScoped(w, r)
	if !ok {
		return
	}
	var payload struct {
		TargetHospitalID int64 `json:"target_hospital_id"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	targetID, err := h.svc.Requests.Transfer(r.Context(), req.ID, payload.TargetHospitalID)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]int64{
		"request_id":         req.ID,
		"target_request_id":  targetID,
		"target_hospital_id": payload.TargetHospitalID,
	})
}

func (h *Handler) cancelRecipient(w http.ResponseWriter, r *http.Request) {
	req, ok := h.loadScoped(w, r)
	if !ok {
		return
	}
	var payload struct {
		Reason  string `json:"reason"`
		Details string `json:"details"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	n, err := h.svc.Requests.Cancel(r.Context(), req.ID, payload.Reason, payload.Details)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"request_id": req.ID, "cancelled": n})
}

func (h *Handler) userMessages(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	messages, err := h.svc.Inbox.Inbox(r.Context(), id)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, messages)
}
