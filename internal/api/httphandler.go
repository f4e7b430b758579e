package api

import (
	"cartsync/internal/backends/memory"
	"cartsync/internal/flow"
	"cartsync/internal/types"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"
)

const (
	ShopperIDHdrName = "X-Shopper-ID"
	CartIDHdrName    = "X-Cart-ID"
	DefaultShopperID = "default"

	maxBodyBytes = 1 << 20
)

// EngineFactory builds the engine of one shopper.
type EngineFactory func(shopper string) *flow.Engine

// Handler is the storefront's HTTP surface. Each shopper gets an engine, kept while in use and
// dropped after idle without requests.
type Handler struct {
	engines *memory.TTL[string, *flow.Engine]
	build   EngineFactory
	idle    time.Duration
}

func NewHandler(build EngineFactory, idle time.Duration) *Handler {
	engines := memory.NewTTL[string, *flow.Engine]()
	// an engine still draining its lanes is never replaced
	engines.SetPinned((*flow.Engine).Busy)
	return &Handler{
		engines: engines,
		build:   build,
		idle:    idle,
	}
}

func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /cart", h.handleGetCart)
	mux.HandleFunc("POST /cart/lines", h.handleAddLine)
	mux.HandleFunc("DELETE /cart/lines/{lineId}", h.handleRemoveLine)
	mux.HandleFunc("POST /cart/discount-codes", h.handleApplyPromo)
	mux.HandleFunc("DELETE /cart", h.handleClearCart)
	mux.HandleFunc("POST /session/login", h.handleLogin)
	mux.HandleFunc("POST /session/signup", h.handleSignUp)
	mux.HandleFunc("GET /catalog", h.handleSearchCatalog)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

// PurgeIdle closes and drops the engines of shoppers idle for longer than the idle timeout. Engines
// with mutations still in their lanes are kept.
func (h *Handler) PurgeIdle() int {
	dropped := h.engines.Purge()
	for _, e := range dropped {
		e.Close()
	}
	return len(dropped)
}

func (h *Handler) engine(r *http.Request) *flow.Engine {
	shopper := r.Header.Get(ShopperIDHdrName)
	if shopper == "" {
		shopper = DefaultShopperID
	}
	return h.engines.GetOrSet(shopper, h.idle, func() *flow.Engine {
		log.WithField("shopper", shopper).Debug("engine created")
		return h.build(shopper)
	})
}

type addLineRequest struct {
	ProductID string `json:"productId"`
	VariantID int    `json:"variantId,omitempty"`
	Quantity  int    `json:"quantity,omitempty"`
}

type promoRequest struct {
	Code string `json:"code"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signUpRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

type cartResponse struct {
	Ticket string `json:"ticket,omitempty"`
	Cart   any    `json:"cart"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (h *Handler) handleGetCart(w http.ResponseWriter, r *http.Request) {
	res, err := h.engine(r).View(r.Context())
	writeResult(w, res, err)
}

func (h *Handler) handleAddLine(w http.ResponseWriter, r *http.Request) {
	var req addLineRequest
	if !readJSON(w, r, &req) {
		return
	}
	m := types.AddLine{ProductID: req.ProductID, VariantID: req.VariantID, Quantity: req.Quantity}
	res, err := h.engine(r).Apply(r.Context(), r.Header.Get(CartIDHdrName), m)
	writeResult(w, res, err)
}

func (h *Handler) handleRemoveLine(w http.ResponseWriter, r *http.Request) {
	m := types.RemoveLine{LineID: r.PathValue("lineId")}
	if q := r.URL.Query().Get("quantity"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil {
			writeError(w, types.Err(types.ErrInvalidMutation, err, "quantity must be an integer"))
			return
		}
		m.Quantity = n
	}
	res, err := h.engine(r).Apply(r.Context(), r.Header.Get(CartIDHdrName), m)
	writeResult(w, res, err)
}

func (h *Handler) handleApplyPromo(w http.ResponseWriter, r *http.Request) {
	var req promoRequest
	if !readJSON(w, r, &req) {
		return
	}
	res, err := h.engine(r).Apply(r.Context(), r.Header.Get(CartIDHdrName), types.ApplyPromo{Code: req.Code})
	writeResult(w, res, err)
}

func (h *Handler) handleClearCart(w http.ResponseWriter, r *http.Request) {
	res, err := h.engine(r).Apply(r.Context(), r.Header.Get(CartIDHdrName), types.ClearCart{})
	writeResult(w, res, err)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !readJSON(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, types.Err(types.ErrSessionUnavailable, nil, "email and password are required"))
		return
	}
	res, err := h.engine(r).Login(r.Context(), req.Email, req.Password)
	writeResult(w, res, err)
}

func (h *Handler) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if !readJSON(w, r, &req) {
		return
	}
	res, err := h.engine(r).SignUp(r.Context(), types.CustomerDraft{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	writeResult(w, res, err)
}

// handleSearchCatalog lists products. Every `filter` query parameter is one filter.query expression.
func (h *Handler) handleSearchCatalog(w http.ResponseWriter, r *http.Request) {
	page, err := h.engine(r).Search(r.Context(), r.URL.Query()["filter"])
	if err != nil {
		writeError(w, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, page); err != nil {
		log.WithError(err).Error("failed to write response")
	}
}

func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	defer func() {
		_ = r.Body.Close()
	}()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "read error", http.StatusBadRequest)
		return false
	}
	if len(body) == 0 {
		http.Error(w, "empty body", http.StatusBadRequest)
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return false
	}
	return true
}

func writeResult(w http.ResponseWriter, res flow.Result, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set(CartIDHdrName, res.Cart.ID)
	if err := writeJSON(w, http.StatusOK, cartResponse{Ticket: res.Ticket, Cart: res.View}); err != nil {
		log.WithError(err).Error("failed to write response")
	}
}

// StatusFor maps an engine error onto the HTTP status the UI receives.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, types.ErrSessionUnavailable):
		return http.StatusUnauthorized
	case errors.Is(err, types.ErrInvalidMutation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, types.ErrMutationConflict), errors.Is(err, types.ErrCustomerExists):
		return http.StatusConflict
	case errors.Is(err, types.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrRemoteUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		log.WithError(err).Error("request failed")
	}
	if werr := writeJSON(w, status, errorResponse{Error: types.Kind(err), Message: err.Error()}); werr != nil {
		log.WithError(werr).Error("failed to write response")
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(v)
}
