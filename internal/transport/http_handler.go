package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/goodnatureofminers/swapindex/internal/swap/service/query"
	gwruntime "github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

// NewHTTPHandler serves the query API as JSON together with /healthz and
// /metrics.
func NewHTTPHandler(h *SwapHandler) (http.Handler, error) {
	gw := gwruntime.NewServeMux()

	lists := map[string]listFunc{
		"/v1/tokens/{token}/orders/open":         h.querier.OpenOrders,
		"/v1/tokens/{token}/orders/open-by-want": h.querier.OpenOrdersByWant,
		"/v1/tokens/{token}/history":             h.querier.History,
		"/v1/tokens/{token}/history-by-want":     h.querier.HistoryByWant,
		"/v1/tokens/{token}/archive":             h.querier.ArchivedHistory,
	}
	for pattern, fn := range lists {
		if err := gw.HandlePath(http.MethodGet, pattern, h.serveList(fn)); err != nil {
			return nil, fmt.Errorf("register %s: %w", pattern, err)
		}
	}

	counts := map[string]countFunc{
		"/v1/tokens/{token}/counts":         h.querier.Counts,
		"/v1/tokens/{token}/counts-by-want": h.querier.CountsByWant,
	}
	for pattern, fn := range counts {
		if err := gw.HandlePath(http.MethodGet, pattern, h.serveCount(fn)); err != nil {
			return nil, fmt.Errorf("register %s: %w", pattern, err)
		}
	}

	if err := gw.HandlePath(http.MethodGet, "/healthz", h.serveHealth); err != nil {
		return nil, fmt.Errorf("register /healthz: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/", gw)
	mux.Handle("/metrics", promhttp.Handler())
	return cors.Default().Handler(mux), nil
}

func (h *SwapHandler) serveList(fn listFunc) gwruntime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
		token, err := query.ParseToken(pathParams["token"])
		if err != nil {
			h.writeError(w, err)
			return
		}
		page, err := pageParams(r)
		if err != nil {
			h.writeError(w, err)
			return
		}
		entries, err := fn(r.Context(), token, page)
		if err != nil {
			h.writeError(w, err)
			return
		}
		h.writeJSON(w, http.StatusOK, ordersBody{Orders: entries})
	}
}

func (h *SwapHandler) serveCount(fn countFunc) gwruntime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
		token, err := query.ParseToken(pathParams["token"])
		if err != nil {
			h.writeError(w, err)
			return
		}
		counts, err := fn(r.Context(), token)
		if err != nil {
			h.writeError(w, err)
			return
		}
		h.writeJSON(w, http.StatusOK, counts)
	}
}

func (h *SwapHandler) serveHealth(w http.ResponseWriter, _ *http.Request, _ map[string]string) {
	body, err := h.tip()
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, body)
}

func pageParams(r *http.Request) (query.Page, error) {
	var page query.Page
	values := r.URL.Query()
	for name, dst := range map[string]*int{"limit": &page.Limit, "offset": &page.Offset} {
		raw := values.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return query.Page{}, fmt.Errorf("%w: %s must be an integer", query.ErrInvalidArgument, name)
		}
		*dst = n
	}
	return page, nil
}

type errorBody struct {
	Error string `json:"error"`
}

func httpStatus(err error) int {
	switch {
	case errors.Is(err, query.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, query.ErrArchiveDisabled):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

func (h *SwapHandler) writeError(w http.ResponseWriter, err error) {
	code := httpStatus(err)
	if code == http.StatusInternalServerError {
		h.logger.Warn("request failed", zap.Error(err))
	}
	h.writeJSON(w, code, errorBody{Error: err.Error()})
}

func (h *SwapHandler) writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Debug("write response failed", zap.Error(err))
	}
}
