package api

import (
	"encoding/json"
	"log"
	"math/big"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/Roman-Yarinski/trading/pkg/engine"
	"github.com/Roman-Yarinski/trading/pkg/keeper"
)

// Server exposes the platform over REST and streams platform events over
// WebSocket.
type Server struct {
	platform *engine.Platform
	keeper   *keeper.Keeper
	router   *mux.Router
	hub      *Hub
}

// NewServer creates a new API server
func NewServer(platform *engine.Platform, kp *keeper.Keeper) *Server {
	s := &Server{
		platform: platform,
		keeper:   kp,
		router:   mux.NewRouter(),
		hub:      NewHub(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Order endpoints
	api.HandleFunc("/orders", s.handleCreateOrder).Methods("POST")
	api.HandleFunc("/orders/cancel", s.handleCancelOrders).Methods("POST")
	api.HandleFunc("/orders/bind", s.handleBindOrders).Methods("POST")
	api.HandleFunc("/orders/active", s.handleGetActiveOrders).Methods("GET")
	api.HandleFunc("/orders/{id}", s.handleGetOrder).Methods("GET")

	// Account endpoints
	api.HandleFunc("/users/{address}/orders", s.handleGetUserOrders).Methods("GET")
	api.HandleFunc("/users/{address}/balances/{token}", s.handleGetBalance).Methods("GET")
	api.HandleFunc("/deposit", s.handleDeposit).Methods("POST")
	api.HandleFunc("/withdraw", s.handleWithdraw).Methods("POST")

	// Keeper endpoints
	api.HandleFunc("/rebalance", s.handleGetRebalance).Methods("GET")
	api.HandleFunc("/execute", s.handleExecute).Methods("POST")

	// Platform status
	api.HandleFunc("/status", s.handleGetStatus).Methods("GET")

	// WebSocket endpoint
	s.router.HandleFunc("/ws", s.handleWebSocket)

	// Health check
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start starts the API server and the event pump feeding the WebSocket hub.
func (s *Server) Start(addr string) error {
	go s.hub.Run()
	go s.pumpEvents()

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:3001"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})
	handler := c.Handler(s.router)

	log.Printf("[api] server starting on %s", addr)
	return http.ListenAndServe(addr, handler)
}

// pumpEvents forwards platform events to subscribed WebSocket clients.
func (s *Server) pumpEvents() {
	events, cancel := s.platform.Events().Subscribe()
	defer cancel()
	for ev := range events {
		s.hub.BroadcastToChannel("events", EventMessage{Type: ev.Kind(), Data: ev})
	}
}

// ==============================
// REST Handlers
// ==============================

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	caller, ok := parseAddress(w, req.Address)
	if !ok {
		return
	}
	order, err := orderFromRequest(&req)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order", err.Error())
		return
	}

	id, err := s.platform.CreateOrder(caller, order)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, "order rejected", err.Error())
		return
	}

	log.Printf("[api] order created: id=%d owner=%s", id, caller.Hex())
	respondJSON(w, CreateOrderResponse{Status: "created", OrderID: id})
}

func (s *Server) handleCancelOrders(w http.ResponseWriter, r *http.Request) {
	var req CancelOrdersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	caller, ok := parseAddress(w, req.Address)
	if !ok {
		return
	}

	canceled, err := s.platform.CancelOrders(caller, req.IDs)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, "cancel failed", err.Error())
		return
	}
	respondJSON(w, CancelOrdersResponse{Status: "ok", Canceled: canceled})
}

func (s *Server) handleBindOrders(w http.ResponseWriter, r *http.Request) {
	var req BindOrdersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	caller, ok := parseAddress(w, req.Address)
	if !ok {
		return
	}

	if err := s.platform.BindOrders(caller, req.Left, req.Right); err != nil {
		respondError(w, http.StatusUnprocessableEntity, "bind failed", err.Error())
		return
	}
	respondJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order id", err.Error())
		return
	}
	o, ok := s.platform.GetOrder(id)
	if !ok {
		respondError(w, http.StatusNotFound, "order not found", "")
		return
	}
	respondJSON(w, orderToInfo(o))
}

func (s *Server) handleGetActiveOrders(w http.ResponseWriter, r *http.Request) {
	offset := queryInt(r, "offset", 0)
	count := queryInt(r, "count", 100)
	respondJSON(w, ActiveOrdersResponse{
		Total: s.platform.ActiveOrdersLength(),
		IDs:   s.platform.ActiveOrdersIDs(offset, count),
	})
}

func (s *Server) handleGetUserOrders(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddress(w, mux.Vars(r)["address"])
	if !ok {
		return
	}
	orders := s.platform.UserOrdersInfo(addr)
	response := make([]OrderInfo, len(orders))
	for i, o := range orders {
		response[i] = orderToInfo(o)
	}
	respondJSON(w, response)
}

func (s *Server) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	addr, ok := parseAddress(w, vars["address"])
	if !ok {
		return
	}
	tok, ok := parseAddress(w, vars["token"])
	if !ok {
		return
	}
	respondJSON(w, BalanceResponse{
		Address: addr.Hex(),
		Token:   tok.Hex(),
		Balance: s.platform.UserBalance(addr, tok).String(),
	})
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	s.handleFunds(w, r, s.platform.Deposit, "deposit")
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	s.handleFunds(w, r, s.platform.Withdraw, "withdraw")
}

func (s *Server) handleFunds(w http.ResponseWriter, r *http.Request,
	op func(common.Address, common.Address, *big.Int) error, name string) {

	var req FundsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	caller, ok := parseAddress(w, req.Address)
	if !ok {
		return
	}
	tok, ok := parseAddress(w, req.Token)
	if !ok {
		return
	}
	amount, ok := new(big.Int).SetString(req.Amount, 10)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid amount", req.Amount)
		return
	}
	if err := op(caller, tok, amount); err != nil {
		respondError(w, http.StatusUnprocessableEntity, name+" failed", err.Error())
		return
	}
	respondJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleGetRebalance(w http.ResponseWriter, r *http.Request) {
	offset := queryInt(r, "offset", 0)
	count := queryInt(r, "count", 0)
	var ready []uint64
	if count > 0 {
		ready = s.platform.ShouldRebalanceRange(offset, count)
	} else {
		ready = s.platform.ShouldRebalance()
	}
	respondJSON(w, RebalanceResponse{Ready: ready})
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req ExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	executed := s.platform.ExecuteOrders(req.IDs)
	log.Printf("[api] execute: requested=%d executed=%d", len(req.IDs), len(executed))
	respondJSON(w, ExecuteResponse{Status: "ok", Executed: executed})
}

func (s *Server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, StatusResponse{
		OrderCounter: s.platform.OrderCounter(),
		ActiveOrders: s.platform.ActiveOrdersLength(),
		FeeBps:       s.platform.ProtocolFeeBps(),
		FeeRecipient: s.platform.FeeRecipient().Hex(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// ==============================
// Helper Functions
// ==============================

func orderFromRequest(req *CreateOrderRequest) (*engine.Order, error) {
	o := &engine.Order{
		BaseToken:    common.HexToAddress(req.BaseToken),
		TargetToken:  common.HexToAddress(req.TargetToken),
		PairFeeTier:  req.PairFeeTier,
		SlippageBps:  req.SlippageBps,
		Expiration:   req.Expiration,
		BoundOrderID: req.BoundOrderID,
	}

	var err error
	if o.BaseAmount, err = parseAmount(req.BaseAmount); err != nil {
		return nil, err
	}
	if req.AimTargetAmount != "" {
		if o.AimTargetAmount, err = parseAmount(req.AimTargetAmount); err != nil {
			return nil, err
		}
	}
	if req.MinTargetAmount != "" {
		if o.MinTargetAmount, err = parseAmount(req.MinTargetAmount); err != nil {
			return nil, err
		}
	}

	switch req.Kind {
	case "STOP_LOSS":
		o.Kind = engine.StopLoss
	case "TAKE_PROFIT":
		o.Kind = engine.TakeProfit
	case "RECURRING_BUY":
		o.Kind = engine.RecurringBuy
		amount, err := parseAmount(req.AmountPerPeriod)
		if err != nil {
			return nil, err
		}
		o.Recurring = &engine.RecurringParams{
			PeriodSec:       req.PeriodSec,
			AmountPerPeriod: amount,
		}
	case "TRAILING_STOP":
		o.Kind = engine.TrailingStop
		amount, err := parseAmount(req.AmountPerStep)
		if err != nil {
			return nil, err
		}
		o.Trailing = &engine.TrailingParams{
			BaseAmount:    o.BaseAmount,
			AmountPerStep: amount,
			StepBps:       req.StepBps,
		}
	default:
		return nil, errUnknownKind(req.Kind)
	}
	return o, nil
}

func orderToInfo(o *engine.Order) OrderInfo {
	info := OrderInfo{
		ID:           o.ID,
		Owner:        o.Owner.Hex(),
		BaseToken:    o.BaseToken.Hex(),
		TargetToken:  o.TargetToken.Hex(),
		PairFeeTier:  o.PairFeeTier,
		SlippageBps:  o.SlippageBps,
		BaseAmount:   o.BaseAmount.String(),
		Expiration:   o.Expiration,
		BoundOrderID: o.BoundOrderID,
		Kind:         o.Kind.String(),
		Active:       o.Active,
	}
	if o.AimTargetAmount != nil {
		info.AimTargetAmount = o.AimTargetAmount.String()
	}
	if o.MinTargetAmount != nil {
		info.MinTargetAmount = o.MinTargetAmount.String()
	}
	if o.Aux != nil {
		info.Aux = o.Aux.String()
	}
	if o.Recurring != nil {
		info.PeriodSec = o.Recurring.PeriodSec
		info.AmountPerPeriod = o.Recurring.AmountPerPeriod.String()
	}
	if o.Trailing != nil {
		info.AmountPerStep = o.Trailing.AmountPerStep.String()
		info.StepBps = o.Trailing.StepBps
	}
	return info
}

func parseAddress(w http.ResponseWriter, s string) (common.Address, bool) {
	if !common.IsHexAddress(s) {
		respondError(w, http.StatusBadRequest, "invalid address", s)
		return common.Address{}, false
	}
	return common.HexToAddress(s), true
}

func parseAmount(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, errBadAmount(s)
	}
	return v, nil
}

func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

type apiError string

func (e apiError) Error() string { return string(e) }

func errUnknownKind(kind string) error { return apiError("unknown order kind: " + kind) }
func errBadAmount(s string) error      { return apiError("invalid amount: " + s) }

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Message: message,
	})
}
