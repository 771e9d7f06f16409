// Package transport exposes the swap index over gRPC and HTTP.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/goodnatureofminers/swapindex/internal/swap/service/query"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

type listFunc func(context.Context, chainhash.Hash, query.Page) ([]query.Entry, error)

type countFunc func(context.Context, chainhash.Hash) (query.Counts, error)

// SwapHandler implements SwapIndexServer on top of the query service.
type SwapHandler struct {
	querier Querier
	logger  *zap.Logger
}

func NewSwapHandler(querier Querier, logger *zap.Logger) (*SwapHandler, error) {
	if querier == nil {
		return nil, errors.New("querier is required")
	}
	return &SwapHandler{querier: querier, logger: logger.Named("transport")}, nil
}

func (h *SwapHandler) GetOpenOrders(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return h.list(ctx, req, h.querier.OpenOrders)
}

func (h *SwapHandler) GetOpenOrdersByWant(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return h.list(ctx, req, h.querier.OpenOrdersByWant)
}

func (h *SwapHandler) GetSwapHistory(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return h.list(ctx, req, h.querier.History)
}

func (h *SwapHandler) GetSwapHistoryByWant(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return h.list(ctx, req, h.querier.HistoryByWant)
}

func (h *SwapHandler) GetArchivedHistory(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return h.list(ctx, req, h.querier.ArchivedHistory)
}

func (h *SwapHandler) GetSwapCount(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return h.count(ctx, req, h.querier.Counts)
}

func (h *SwapHandler) GetSwapCountByWant(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return h.count(ctx, req, h.querier.CountsByWant)
}

// GetTip returns the last indexed block.
func (h *SwapHandler) GetTip(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	body, err := h.tip()
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(body)
}

func (h *SwapHandler) list(ctx context.Context, req *structpb.Struct, fn listFunc) (*structpb.Struct, error) {
	token, page, err := listRequest(req)
	if err != nil {
		return nil, grpcError(err)
	}
	entries, err := fn(ctx, token, page)
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(ordersBody{Orders: entries})
}

func (h *SwapHandler) count(ctx context.Context, req *structpb.Struct, fn countFunc) (*structpb.Struct, error) {
	token, err := tokenField(req)
	if err != nil {
		return nil, grpcError(err)
	}
	counts, err := fn(ctx, token)
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(counts)
}

type ordersBody struct {
	Orders []query.Entry `json:"orders"`
}

type tipBody struct {
	Indexed bool   `json:"indexed"`
	Height  int32  `json:"height"`
	Hash    string `json:"hash,omitempty"`
}

func (h *SwapHandler) tip() (tipBody, error) {
	tip, ok, err := h.querier.Tip()
	if err != nil {
		return tipBody{}, err
	}
	if !ok {
		return tipBody{}, nil
	}
	return tipBody{Indexed: true, Height: tip.Height, Hash: tip.Hash.String()}, nil
}

func listRequest(req *structpb.Struct) (chainhash.Hash, query.Page, error) {
	token, err := tokenField(req)
	if err != nil {
		return chainhash.Hash{}, query.Page{}, err
	}
	limit, err := intField(req, "limit")
	if err != nil {
		return chainhash.Hash{}, query.Page{}, err
	}
	offset, err := intField(req, "offset")
	if err != nil {
		return chainhash.Hash{}, query.Page{}, err
	}
	return token, query.Page{Limit: limit, Offset: offset}, nil
}

func tokenField(req *structpb.Struct) (chainhash.Hash, error) {
	v, ok := req.GetFields()["tokenid"]
	if !ok {
		return chainhash.Hash{}, fmt.Errorf("%w: tokenid is required", query.ErrInvalidArgument)
	}
	s, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return chainhash.Hash{}, fmt.Errorf("%w: tokenid must be a string", query.ErrInvalidArgument)
	}
	return query.ParseToken(s.StringValue)
}

// intField reads an optional whole-number field; absent means zero.
func intField(req *structpb.Struct, name string) (int, error) {
	v, ok := req.GetFields()[name]
	if !ok {
		return 0, nil
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, fmt.Errorf("%w: %s must be a number", query.ErrInvalidArgument, name)
	}
	f := n.NumberValue
	if f != math.Trunc(f) || f > math.MaxInt32 || f < math.MinInt32 {
		return 0, fmt.Errorf("%w: %s must be a whole number", query.ErrInvalidArgument, name)
	}
	return int(f), nil
}

func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

func grpcError(err error) error {
	switch {
	case errors.Is(err, query.ErrInvalidArgument):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, query.ErrArchiveDisabled):
		return status.Error(codes.Unimplemented, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
