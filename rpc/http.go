package rpc

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"gluon/native/reactor"
)

const requestIDHeader = "X-Request-ID"

// Server exposes the read-only reactor query surface. State-changing
// operations require signed intents and are not reachable over HTTP.
type Server struct {
	factory *reactor.Factory
	store   *reactor.Store
	logger  *slog.Logger
	limit   RateLimit
}

// NewServer wires the query surface over a factory registry. The store may be
// nil when record persistence is disabled.
func NewServer(factory *reactor.Factory, store *reactor.Store, logger *slog.Logger, limit RateLimit) (*Server, error) {
	if factory == nil {
		return nil, fmt.Errorf("rpc: factory required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{factory: factory, store: store, logger: logger, limit: limit}, nil
}

// Handler builds the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(newRateLimiter(s.limit).middleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/v1/reactors", s.handleList)
	r.Get("/v1/reactors/{collateral}", s.handleReactor)
	r.Get("/v1/reactors/{collateral}/records", s.handleRecords)
	return r
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		id := strings.TrimSpace(req.Header.Get(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, req)
	})
}

type listResponse struct {
	Collaterals []string `json:"collaterals"`
}

type pricingView struct {
	PriceWad        string `json:"priceWad"`
	BackingFraction string `json:"backingFractionWad"`
	NeutronPriceWad string `json:"neutronPriceWad"`
	ProtonPriceWad  string `json:"protonPriceWad"`
}

type reactorView struct {
	Collateral        string       `json:"collateral"`
	Reserve           string       `json:"reserve"`
	NeutronSupply     string       `json:"neutronSupply"`
	ProtonSupply      string       `json:"protonSupply"`
	Phi0Wad           string       `json:"phi0Wad"`
	Phi1Wad           string       `json:"phi1Wad"`
	DecayPerSecondWad string       `json:"decayPerSecondWad"`
	DecayedVolume     string       `json:"decayedVolume"`
	LastDecayAdvance  int64        `json:"lastDecayAdvance"`
	Pricing           *pricingView `json:"pricing,omitempty"`
}

type recordView struct {
	ID            string `json:"id"`
	Kind          string `json:"kind"`
	Payer         string `json:"payer,omitempty"`
	Recipient     string `json:"recipient,omitempty"`
	AmountIn      string `json:"amountIn"`
	NeutronDelta  string `json:"neutronDelta"`
	ProtonDelta   string `json:"protonDelta"`
	Fee           string `json:"fee"`
	FeeWad        string `json:"feeWad"`
	GrossValue    string `json:"grossValue"`
	DecayedVolume string `json:"decayedVolume"`
	Timestamp     int64  `json:"timestamp"`
}

type recordsResponse struct {
	Records    []recordView `json:"records"`
	NextCursor uint64       `json:"nextCursor"`
}

func (s *Server) handleList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, listResponse{Collaterals: s.factory.Collaterals()})
}

func (s *Server) handleReactor(w http.ResponseWriter, req *http.Request) {
	engine, ok := s.factory.Reactor(chi.URLParam(req, "collateral"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown collateral")
		return
	}
	state := engine.Snapshot()
	view := reactorView{
		Collateral:        state.Collateral,
		Reserve:           bigString(state.Reserve),
		NeutronSupply:     bigString(state.NeutronSupply),
		ProtonSupply:      bigString(state.ProtonSupply),
		Phi0Wad:           bigString(state.Phi0Wad),
		Phi1Wad:           bigString(state.Phi1Wad),
		DecayPerSecondWad: bigString(state.DecayPerSecondWad),
		DecayedVolume:     bigString(state.DecayedVolume),
		LastDecayAdvance:  state.LastDecayAdvance,
	}
	if pricing, err := engine.Pricing(); err == nil {
		view.Pricing = &pricingView{
			PriceWad:        bigString(pricing.PriceWad),
			BackingFraction: bigString(pricing.BackingFraction),
			NeutronPriceWad: bigString(pricing.NeutronPriceWad),
			ProtonPriceWad:  bigString(pricing.ProtonPriceWad),
		}
	} else {
		s.logger.Warn("pricing unavailable", "collateral", state.Collateral, "error", err)
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleRecords(w http.ResponseWriter, req *http.Request) {
	engine, ok := s.factory.Reactor(chi.URLParam(req, "collateral"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown collateral")
		return
	}
	if s.store == nil {
		writeJSON(w, http.StatusOK, recordsResponse{Records: []recordView{}})
		return
	}

	query := req.URL.Query()
	start, err := parseInt64(query.Get("start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start")
		return
	}
	end, err := parseInt64(query.Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid end")
		return
	}
	cursor, err := parseUint64(query.Get("cursor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid cursor")
		return
	}
	limit, err := parseInt64(query.Get("limit"))
	if err != nil || limit < 0 {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}

	collateral := engine.Params().CollateralSymbol
	records, next, err := s.store.ListRecords(collateral, start, end, cursor, int(limit))
	if err != nil {
		s.logger.Error("list records", "collateral", collateral, "error", err)
		writeError(w, http.StatusInternalServerError, "record listing failed")
		return
	}
	out := recordsResponse{Records: make([]recordView, 0, len(records)), NextCursor: next}
	for _, record := range records {
		view := recordView{
			ID:            record.ID,
			Kind:          record.Kind,
			AmountIn:      bigString(record.AmountIn),
			NeutronDelta:  bigString(record.NeutronDelta),
			ProtonDelta:   bigString(record.ProtonDelta),
			Fee:           bigString(record.Fee),
			FeeWad:        bigString(record.FeeWad),
			GrossValue:    bigString(record.GrossValue),
			DecayedVolume: bigString(record.DecayedVolume),
			Timestamp:     record.Timestamp,
		}
		if !record.Payer.IsZero() {
			view.Payer = record.Payer.String()
		}
		if !record.Recipient.IsZero() {
			view.Recipient = record.Recipient.String()
		}
		out.Records = append(out.Records, view)
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func parseInt64(raw string) (int64, error) {
	if strings.TrimSpace(raw) == "" {
		return 0, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}

func parseUint64(raw string) (uint64, error) {
	if strings.TrimSpace(raw) == "" {
		return 0, nil
	}
	return strconv.ParseUint(raw, 10, 64)
}
