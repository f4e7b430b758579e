package emulator

import (
	"cartsync/internal/ctp"
	"cartsync/internal/httpserver"
	"cartsync/internal/types"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"
)

const maxBodyBytes = 1 << 20

// Handler serves a Platform with the commerce platform's HTTP contract.
type Handler struct {
	Platform *Platform
}

func NewHandler(p *Platform) *Handler {
	return &Handler{Platform: p}
}

func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+ctp.AnonymousTokenPath, h.handleAnonymousToken)
	mux.HandleFunc("POST "+ctp.CustomerTokenPath, h.handlePasswordToken)
	mux.HandleFunc("POST "+ctp.TokenPath, h.handleRefreshToken)
	mux.HandleFunc("POST /carts", h.handleCreateCart)
	mux.HandleFunc("GET /me/carts", h.handleListCarts)
	mux.HandleFunc("GET /carts/{id}", h.handleGetCart)
	mux.HandleFunc("POST /carts/{id}", h.handleUpdateCart)
	mux.HandleFunc("DELETE /carts/{id}", h.handleDeleteCart)
	mux.HandleFunc("GET /product-projections/search", h.handleSearchProducts)
	mux.HandleFunc("POST /customers", h.handleCreateCustomer)
	mux.HandleFunc("GET /customers", h.handleQueryCustomers)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func (h *Handler) handleAnonymousToken(w http.ResponseWriter, r *http.Request) {
	if !h.clientAuthorized(w, r) {
		return
	}
	sess, err := h.Platform.AnonymousSession(r.Context())
	h.writeToken(w, sess, err)
}

func (h *Handler) handlePasswordToken(w http.ResponseWriter, r *http.Request) {
	if !h.clientAuthorized(w, r) {
		return
	}
	if err := r.ParseForm(); err != nil {
		writeOAuthError(w, "invalid_request", "malformed form body")
		return
	}
	if r.PostForm.Get("grant_type") != "password" {
		writeOAuthError(w, "unsupported_grant_type", "grant_type must be password")
		return
	}
	sess, err := h.Platform.PasswordSession(r.Context(), r.PostForm.Get("username"), r.PostForm.Get("password"))
	h.writeToken(w, sess, err)
}

func (h *Handler) handleRefreshToken(w http.ResponseWriter, r *http.Request) {
	if !h.clientAuthorized(w, r) {
		return
	}
	if err := r.ParseForm(); err != nil {
		writeOAuthError(w, "invalid_request", "malformed form body")
		return
	}
	if r.PostForm.Get("grant_type") != "refresh_token" {
		writeOAuthError(w, "unsupported_grant_type", "grant_type must be refresh_token")
		return
	}
	sess, err := h.Platform.RefreshSession(r.Context(), r.PostForm.Get("refresh_token"))
	h.writeToken(w, sess, err)
}

// clientAuthorized checks the basic auth credentials when the catalog lists API clients.
func (h *Handler) clientAuthorized(w http.ResponseWriter, r *http.Request) bool {
	clients := h.Platform.Catalog().Clients
	if len(clients) == 0 {
		return true
	}
	id, secret, ok := r.BasicAuth()
	if ok {
		for _, c := range clients {
			if c.ClientID == id && subtle.ConstantTimeCompare([]byte(c.ClientSecret), []byte(secret)) == 1 {
				return true
			}
		}
	}
	_ = writeJSON(w, http.StatusUnauthorized, ctp.ErrorResponse{
		StatusCode:       http.StatusUnauthorized,
		Message:          "Please provide valid client credentials.",
		OAuthError:       ctp.CodeInvalidClient,
		ErrorDescription: "Please provide valid client credentials.",
	})
	return false
}

func (h *Handler) writeToken(w http.ResponseWriter, sess types.Session, err error) {
	if err != nil {
		if errors.Is(err, types.ErrSessionUnavailable) {
			_ = writeJSON(w, http.StatusBadRequest, ctp.ErrorResponse{
				StatusCode:       http.StatusBadRequest,
				Message:          err.Error(),
				Errors:           []ctp.ErrorObject{{Code: ctp.CodeInvalidCustomerCreds, Message: err.Error()}},
				OAuthError:       "invalid_grant",
				ErrorDescription: err.Error(),
			})
			return
		}
		writeError(w, err)
		return
	}
	_ = writeJSON(w, http.StatusOK, types.TokenResponse{
		AccessToken:  sess.Token,
		RefreshToken: sess.RefreshToken,
		ExpiresIn:    int64(sess.ExpiresAt.Sub(h.Platform.clock()).Seconds()),
		TokenType:    "Bearer",
	})
}

func (h *Handler) handleCreateCart(w http.ResponseWriter, r *http.Request) {
	var draft types.CartDraft
	if !readJSON(w, r, &draft) {
		return
	}
	c, err := h.Platform.CreateCart(r.Context(), bearer(r), draft)
	writeCart(w, http.StatusCreated, c, err)
}

func (h *Handler) handleListCarts(w http.ResponseWriter, r *http.Request) {
	page, err := h.Platform.ListActiveCarts(r.Context(), bearer(r))
	if err != nil {
		writeError(w, err)
		return
	}
	_ = writeJSON(w, http.StatusOK, page)
}

func (h *Handler) handleGetCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.Platform.GetCart(r.Context(), bearer(r), r.PathValue("id"))
	writeCart(w, http.StatusOK, c, err)
}

func (h *Handler) handleUpdateCart(w http.ResponseWriter, r *http.Request) {
	var upd types.CartUpdate
	if !readJSON(w, r, &upd) {
		return
	}
	c, err := h.Platform.UpdateCart(r.Context(), bearer(r), r.PathValue("id"), upd.Version, upd.Actions)
	writeCart(w, http.StatusOK, c, err)
}

func (h *Handler) handleDeleteCart(w http.ResponseWriter, r *http.Request) {
	version, err := strconv.ParseInt(r.URL.Query().Get("version"), 10, 64)
	if err != nil {
		writeError(w, types.Err(types.ErrInvalidMutation, err, "version query parameter is required"))
		return
	}
	c, err := h.Platform.DeleteCart(r.Context(), bearer(r), r.PathValue("id"), version)
	writeCart(w, http.StatusOK, c, err)
}

func (h *Handler) handleSearchProducts(w http.ResponseWriter, r *http.Request) {
	page, err := h.Platform.SearchProducts(r.Context(), bearer(r), r.URL.Query()["filter.query"])
	if err != nil {
		writeError(w, err)
		return
	}
	_ = writeJSON(w, http.StatusOK, page)
}

func (h *Handler) handleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	var draft types.CustomerDraft
	if !readJSON(w, r, &draft) {
		return
	}
	cu, err := h.Platform.CreateCustomer(r.Context(), bearer(r), draft)
	if err != nil {
		writeError(w, err)
		return
	}
	_ = writeJSON(w, http.StatusCreated, types.CustomerSignInResult{Customer: cu})
}

// handleQueryCustomers answers `where=email="..."`, the only predicate the storefront sends.
func (h *Handler) handleQueryCustomers(w http.ResponseWriter, r *http.Request) {
	email, err := emailPredicate(r.URL.Query().Get("where"))
	if err != nil {
		writeError(w, types.Err(types.ErrInvalidInput, err, ""))
		return
	}
	page, err := h.Platform.QueryCustomers(r.Context(), bearer(r), email)
	if err != nil {
		writeError(w, err)
		return
	}
	_ = writeJSON(w, http.StatusOK, page)
}

func emailPredicate(where string) (string, error) {
	field, value, ok := strings.Cut(where, "=")
	if !ok || strings.TrimSpace(field) != "email" {
		return "", fmt.Errorf("unsupported predicate %q", where)
	}
	email, err := strconv.Unquote(strings.TrimSpace(value))
	if err != nil {
		return "", fmt.Errorf("unsupported predicate %q", where)
	}
	return email, nil
}

func bearer(r *http.Request) string {
	token, _ := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	return token
}

func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	defer func() {
		_ = r.Body.Close()
	}()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, types.Err(types.ErrInvalidMutation, err, "read body"))
		return false
	}
	if len(body) == 0 {
		return true
	}
	if err := json.Unmarshal(body, v); err != nil {
		writeError(w, types.Err(types.ErrInvalidMutation, err, "invalid json"))
		return false
	}
	return true
}

func writeCart(w http.ResponseWriter, status int, c types.Cart, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	_ = writeJSON(w, status, c)
}

// writeError answers with the platform's error body for err.
func writeError(w http.ResponseWriter, err error) {
	status, code := http.StatusServiceUnavailable, "ServiceUnavailable"
	obj := ctp.ErrorObject{Message: err.Error()}
	var vc *VersionConflictError
	switch {
	case errors.As(err, &vc):
		status, code = http.StatusConflict, ctp.CodeConcurrentModification
		obj.CurrentVersion = vc.CurrentVersion
	case errors.Is(err, types.ErrVersionConflict):
		status, code = http.StatusConflict, ctp.CodeConcurrentModification
	case errors.Is(err, types.ErrNotFound):
		status, code = http.StatusNotFound, ctp.CodeResourceNotFound
	case errors.Is(err, types.ErrSessionUnavailable):
		status, code = http.StatusUnauthorized, ctp.CodeInvalidToken
	case errors.Is(err, types.ErrInvalidMutation):
		status, code = http.StatusBadRequest, ctp.CodeInvalidOperation
	case errors.Is(err, types.ErrInvalidInput):
		status, code = http.StatusBadRequest, ctp.CodeInvalidInput
	case errors.Is(err, types.ErrCustomerExists):
		status, code = http.StatusBadRequest, ctp.CodeDuplicateField
	}
	obj.Code = code
	if status >= http.StatusInternalServerError {
		log.WithError(err).Warn("emulator: request failed")
	}
	_ = writeJSON(w, status, ctp.ErrorResponse{StatusCode: status, Message: err.Error(), Errors: []ctp.ErrorObject{obj}})
}

func writeOAuthError(w http.ResponseWriter, code, desc string) {
	_ = writeJSON(w, http.StatusBadRequest, ctp.ErrorResponse{
		StatusCode:       http.StatusBadRequest,
		Message:          desc,
		OAuthError:       code,
		ErrorDescription: desc,
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(v)
}

// RunServerInterruptible serves the platform until stop receives or is closed.
func RunServerInterruptible(port int, p *Platform) (stop chan<- struct{}, done <-chan error) {
	return httpserver.RunInterruptible("platform emulator", port, NewHandler(p).Router())
}
