package api

import (
	"net/http"

	"donateblood/m/domain"
	"donateblood/m/internal/auth"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.svc.Users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}

	token, err := h.issuer.Generate(domain.Admin{UserID: user.ID, HospitalID: user.HospitalID})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to generate token")
		return
	}
	respondJSON(w, http.StatusOK, authResponse{Token: token, User: user})
}

func (h *Handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		NewPassword string `json:"new_password"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	admin, _ := auth.AdminFromContext(r.Context())
	if err := h.svc.Users.SetPassword(r.Context(), admin.UserID, payload.NewPassword); err != nil {
		h.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "password updated"})
}

type adminRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	HospitalID *int64 `json:"hospital_id"`
}

func (h *Handler) createAdmin(w http.ResponseWriter, r *http.Request) {
	if !h.requireSuperAdmin(w, r) {
		return
	}
	var req adminRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.HospitalID != nil {
		if _, err := h.svc.Reference.HospitalName(r.Context(), *req.HospitalID); err != nil {
			h.respondErr(w, r, err)
			return
		}
	}
	id, err := h.svc.Users.CreateAdmin(r.Context(), req.Name, req.Email, req.Password, req.HospitalID)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"id": id, "email": req.Email, "hospital_id": req.HospitalID})
}
