package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"donateblood/m/domain"
	"donateblood/m/internal/auth"
	"donateblood/m/internal/identity"
	"donateblood/m/internal/inventory"
	"donateblood/m/internal/notify"
	"donateblood/m/internal/reference"
	"donateblood/m/internal/requests"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Services are the stores the HTTP API is served from.
type Services struct {
	Requests  *requests.Store
	Ledger    *inventory.Ledger
	Reference *reference.Store
	Users     *identity.Store
	Inbox     *notify.DBSender
}

// Handler bundles dependencies for HTTP handlers.
type Handler struct {
	svc    Services
	issuer *auth.Issuer
	log    *zap.Logger
}

// New constructs a Handler.
func New(svc Services, issuer *auth.Issuer, log *zap.Logger) *Handler {
	return &Handler{svc: svc, issuer: issuer, log: log}
}

// Router wires up the HTTP API.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.health)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.login)
		r.Group(func(protected chi.Router) {
			protected.Use(h.authMiddleware)
			protected.Post("/reset-password", h.resetPassword)
		})
	})

	r.Group(func(pr chi.Router) {
		pr.Use(h.authMiddleware)

		pr.Post("/admins", h.createAdmin)

		pr.Get("/hospitals", h.listHospitals)
		pr.Post("/hospitals", h.createHospital)
		pr.Get("/blood-types", h.listBloodTypes)

		pr.Route("/recipients", func(r chi.Router) {
			r.Get("/", h.listRecipients)
			r.Post("/", h.createRecipient)
			r.Get("/export", h.exportRecipients)
			r.Get("/{id}", h.getRecipient)
			r.Post("/{id}/complete", h.completeRecipient)
			r.Post("/{id}/transfer", h.transferRecipient)
			r.Post("/{id}/cancel", h.cancelRecipient)
		})

		pr.Get("/users/{id}/messages", h.userMessages)

		pr.Route("/inventory", func(r chi.Router) {
			r.Post("/donations", h.recordDonation)
			r.Get("/available", h.availableUnits)
			r.Get("/hospitals-with-stock", h.hospitalsWithStock)
		})
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			h.log.Info("http request",
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)))
		}()
		next.ServeHTTP(ww, r)
	})
}

func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
			respondError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		admin, err := h.issuer.Parse(strings.TrimSpace(header[len("Bearer "):]))
		if err != nil {
			respondError(w, http.StatusUnauthorized, err.Error())
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithAdmin(r.Context(), admin)))
	})
}

// requireSuperAdmin allows only admins not bound to a hospital.
func (h *Handler) requireSuperAdmin(w http.ResponseWriter, r *http.Request) bool {
	admin, ok := auth.AdminFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "missing admin")
		return false
	}
	if admin.HospitalID != nil {
		respondError(w, http.StatusForbidden, "insufficient permissions")
		return false
	}
	return true
}

// scopedHospital resolves which hospital a listing is for: the admin's own,
// or for a super admin the optional hospital_id query parameter.
func (h *Handler) scopedHospital(r *http.Request) (*int64, error) {
	admin, _ := auth.AdminFromContext(r.Context())
	if admin.HospitalID != nil {
		return admin.HospitalID, nil
	}
	raw := r.URL.Query().Get("hospital_id")
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, domain.Invalid("hospital_id", "invalid hospital id")
	}
	return &id, nil
}

// Helpers

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.Invalid("id", "invalid id")
	}
	return id, nil
}

func queryInt(r *http.Request, key string) (int64, error) {
	v, err := strconv.ParseInt(r.URL.Query().Get(key), 10, 64)
	if err != nil {
		return 0, domain.Invalid(key, key+" must be a number")
	}
	return v, nil
}

func decodeJSON(r *http.Request, dest interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	_ = encoder.Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondErr maps store errors onto HTTP statuses. Unexpected errors are
// logged and hidden from the client.
func (h *Handler) respondErr(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr *domain.ValidationError
		nf   *domain.NotFoundError
		se   *domain.StateError
	)
	switch {
	case errors.As(err, &verr):
		fields := make(map[string]string, len(verr.Fields))
		for _, f := range verr.Fields {
			fields[f.Field] = f.Message
		}
		respondJSON(w, http.StatusBadRequest, map[string]interface{}{"error": "validation failed", "fields": fields})
	case errors.As(err, &nf):
		respondError(w, http.StatusNotFound, nf.Error())
	case errors.As(err, &se):
		respondError(w, http.StatusConflict, se.Error())
	case errors.Is(err, identity.ErrInvalidCredentials):
		respondError(w, http.StatusUnauthorized, "invalid credentials")
	default:
		h.log.Error("request failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}
