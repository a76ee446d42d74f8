package handler

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/rl1809/pricechek-rider/internal/core/service"
	"github.com/rl1809/pricechek-rider/internal/port"
)

const maxBodyBytes = 64 << 10

type HTTPHandler struct {
	ussd *service.USSDService
	sms  *service.SMSService
	db   port.DatabaseRepository
	log  *zap.Logger
}

type USSDJSONRequest struct {
	SessionID   string `json:"sessionId"`
	ServiceCode string `json:"serviceCode"`
	PhoneNumber string `json:"phoneNumber"`
	Text        string `json:"text"`
}

type USSDJSONResponse struct {
	Response string `json:"response"`
}

type SMSWebhookRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Text   string `json:"text"`
	Date   string `json:"date"`
	ID     string `json:"id"`
	LinkID string `json:"linkId"`
}

type AckResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func NewHTTPHandler(ussd *service.USSDService, sms *service.SMSService, db port.DatabaseRepository, log *zap.Logger) *HTTPHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &HTTPHandler{ussd: ussd, sms: sms, db: db, log: log}
}

// Router wires all endpoints. metricsHandler may be nil; middleware runs in
// the order given, after request logging.
func (h *HTTPHandler) Router(metricsHandler http.Handler, middleware ...mux.MiddlewareFunc) *mux.Router {
	r := mux.NewRouter()
	r.Use(h.logRequests)
	for _, mw := range middleware {
		r.Use(mw)
	}

	r.HandleFunc("/ussd", h.USSD).Methods(http.MethodPost)
	r.HandleFunc("/ussd/json", h.USSDJSON).Methods(http.MethodPost)
	r.HandleFunc("/incoming-sms", h.IncomingSMS).Methods(http.MethodPost)

	admin := r.PathPrefix("/admin").Methods(http.MethodGet).Subrouter()
	admin.HandleFunc("/users", h.ListUsers)
	admin.HandleFunc("/users/{phone}", h.GetUser)
	admin.HandleFunc("/orders", h.ListOrders)
	admin.HandleFunc("/orders/{id}", h.GetOrder)

	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler).Methods(http.MethodGet)
	}
	return r
}

// USSD answers the Africa's Talking USSD callback with a plain CON/END body.
func (h *HTTPHandler) USSD(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		h.log.Warn("bad ussd form", zap.Error(err))
	}

	text := r.PostFormValue("text")
	if _, ok := r.PostForm["text"]; !ok {
		text = r.PostFormValue("input")
	}

	screen := h.ussd.Handle(r.Context(), service.USSDRequest{
		PhoneNumber: r.PostFormValue("phoneNumber"),
		SessionID:   r.PostFormValue("sessionId"),
		ServiceCode: r.PostFormValue("serviceCode"),
		Text:        text,
	})

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(screen.String()))
}

func (h *HTTPHandler) USSDJSON(w http.ResponseWriter, r *http.Request) {
	var req USSDJSONRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, AckResponse{Status: "error", Message: "invalid request body"})
		return
	}

	screen := h.ussd.Handle(r.Context(), service.USSDRequest{
		PhoneNumber: req.PhoneNumber,
		SessionID:   req.SessionID,
		ServiceCode: req.ServiceCode,
		Text:        req.Text,
	})
	writeJSON(w, http.StatusOK, USSDJSONResponse{Response: screen.String()})
}

// IncomingSMS acknowledges an inbound SMS. The dialog reply goes out through
// the dispatcher, not in this response.
func (h *HTTPHandler) IncomingSMS(w http.ResponseWriter, r *http.Request) {
	req, err := decodeSMS(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, AckResponse{Status: "error", Message: "invalid request body"})
		return
	}
	if strings.TrimSpace(req.From) == "" {
		writeJSON(w, http.StatusBadRequest, AckResponse{Status: "error", Message: "missing sender"})
		return
	}

	_, err = h.sms.HandleInbound(r.Context(), service.InboundSMS{
		From:   strings.TrimSpace(req.From),
		To:     req.To,
		Text:   req.Text,
		Date:   req.Date,
		ID:     req.ID,
		LinkID: req.LinkID,
	})
	if errors.Is(err, service.ErrDuplicateMessage) {
		h.log.Info("duplicate sms ignored", zap.String("phone", req.From), zap.String("id", req.ID))
		writeJSON(w, http.StatusOK, AckResponse{Status: "success", Message: "Duplicate message ignored"})
		return
	}
	if err != nil {
		h.log.Error("failed to handle sms", zap.String("phone", req.From), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, AckResponse{Status: "error", Message: "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, AckResponse{Status: "success", Message: "SMS processed"})
}

func decodeSMS(w http.ResponseWriter, r *http.Request) (SMSWebhookRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req SMSWebhookRequest
	if mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mt == "application/json" {
		err := json.NewDecoder(r.Body).Decode(&req)
		return req, err
	}

	if err := r.ParseForm(); err != nil {
		return req, err
	}
	req.From = r.PostFormValue("from")
	req.To = r.PostFormValue("to")
	req.Text = r.PostFormValue("text")
	req.Date = r.PostFormValue("date")
	req.ID = r.PostFormValue("id")
	req.LinkID = r.PostFormValue("linkId")
	return req, nil
}

func (h *HTTPHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.db.ListUsers(r.Context())
	if err != nil {
		h.internalError(w, "failed to list users", err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *HTTPHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	phone := mux.Vars(r)["phone"]
	user, err := h.db.GetUser(r.Context(), phone)
	if err != nil {
		h.internalError(w, "failed to get user", err)
		return
	}
	if user == nil {
		writeJSON(w, http.StatusNotFound, AckResponse{Status: "error", Message: "user not found"})
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *HTTPHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.db.ListOrders(r.Context())
	if err != nil {
		h.internalError(w, "failed to list orders", err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *HTTPHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.db.GetOrder(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.internalError(w, "failed to get order", err)
		return
	}
	if order == nil {
		writeJSON(w, http.StatusNotFound, AckResponse{Status: "error", Message: "order not found"})
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) internalError(w http.ResponseWriter, msg string, err error) {
	h.log.Error(msg, zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, AckResponse{Status: "error", Message: "internal error"})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (s *statusWriter) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (h *HTTPHandler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		h.log.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", sw.status),
			zap.Duration("duration", time.Since(start)))
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
