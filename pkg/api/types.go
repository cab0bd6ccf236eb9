package api

// Request/response types for the REST API. Big integer amounts travel as
// decimal strings so precision survives JSON.

type OrderInfo struct {
	ID              uint64 `json:"id"`
	Owner           string `json:"owner"`
	BaseToken       string `json:"baseToken"`
	TargetToken     string `json:"targetToken"`
	PairFeeTier     uint32 `json:"pairFeeTier"`
	SlippageBps     uint32 `json:"slippageBps"`
	BaseAmount      string `json:"baseAmount"`
	AimTargetAmount string `json:"aimTargetAmount,omitempty"`
	MinTargetAmount string `json:"minTargetAmount,omitempty"`
	Expiration      int64  `json:"expiration"`
	BoundOrderID    uint64 `json:"boundOrderId"`
	Kind            string `json:"kind"`
	Aux             string `json:"aux"`
	Active          bool   `json:"active"`

	PeriodSec       int64  `json:"periodSec,omitempty"`
	AmountPerPeriod string `json:"amountPerPeriod,omitempty"`
	AmountPerStep   string `json:"amountPerStep,omitempty"`
	StepBps         uint32 `json:"stepBps,omitempty"`
}

type CreateOrderRequest struct {
	Address         string `json:"address"`
	BaseToken       string `json:"baseToken"`
	TargetToken     string `json:"targetToken"`
	PairFeeTier     uint32 `json:"pairFeeTier"`
	SlippageBps     uint32 `json:"slippageBps"`
	BaseAmount      string `json:"baseAmount"`
	AimTargetAmount string `json:"aimTargetAmount"`
	MinTargetAmount string `json:"minTargetAmount"`
	Expiration      int64  `json:"expiration"`
	BoundOrderID    uint64 `json:"boundOrderId"`
	Kind            string `json:"kind"`

	PeriodSec       int64  `json:"periodSec"`
	AmountPerPeriod string `json:"amountPerPeriod"`
	AmountPerStep   string `json:"amountPerStep"`
	StepBps         uint32 `json:"stepBps"`
}

type CreateOrderResponse struct {
	Status  string `json:"status"`
	OrderID uint64 `json:"orderId"`
}

type CancelOrdersRequest struct {
	Address string   `json:"address"`
	IDs     []uint64 `json:"ids"`
}

type CancelOrdersResponse struct {
	Status   string `json:"status"`
	Canceled int    `json:"canceled"`
}

type BindOrdersRequest struct {
	Address string   `json:"address"`
	Left    []uint64 `json:"left"`
	Right   []uint64 `json:"right"`
}

type FundsRequest struct {
	Address string `json:"address"`
	Token   string `json:"token"`
	Amount  string `json:"amount"`
}

type BalanceResponse struct {
	Address string `json:"address"`
	Token   string `json:"token"`
	Balance string `json:"balance"`
}

type ActiveOrdersResponse struct {
	Total int      `json:"total"`
	IDs   []uint64 `json:"ids"`
}

type RebalanceResponse struct {
	Ready []uint64 `json:"ready"`
}

type ExecuteRequest struct {
	IDs []uint64 `json:"ids"`
}

type ExecuteResponse struct {
	Status   string   `json:"status"`
	Executed []uint64 `json:"executed"`
}

type StatusResponse struct {
	OrderCounter uint64 `json:"orderCounter"`
	ActiveOrders int    `json:"activeOrders"`
	FeeBps       uint32 `json:"feeBps"`
	FeeRecipient string `json:"feeRecipient"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// EventMessage wraps a platform event for the WebSocket stream.
type EventMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// WSSubscribeRequest is the client -> server subscription message.
type WSSubscribeRequest struct {
	Op       string   `json:"op"` // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"`
}
