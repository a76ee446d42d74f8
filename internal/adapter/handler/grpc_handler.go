package handler

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rl1809/pricechek-rider/internal/adapter/handler/dialogrpc"
	"github.com/rl1809/pricechek-rider/internal/core/service"
)

// GRPCHandler exposes the dialog engines to aggregator bridges. HandleSMS
// returns the reply in the response and also queues it for delivery.
type GRPCHandler struct {
	ussd *service.USSDService
	sms  *service.SMSService
	log  *zap.Logger
}

func NewGRPCHandler(ussd *service.USSDService, sms *service.SMSService, log *zap.Logger) *GRPCHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &GRPCHandler{ussd: ussd, sms: sms, log: log}
}

func (h *GRPCHandler) HandleUSSD(ctx context.Context, req *dialogrpc.USSDRequest) (*dialogrpc.USSDResponse, error) {
	screen := h.ussd.Handle(ctx, service.USSDRequest{
		PhoneNumber: req.PhoneNumber,
		SessionID:   req.SessionID,
		ServiceCode: req.ServiceCode,
		Text:        req.Text,
	})
	return &dialogrpc.USSDResponse{Response: screen.String()}, nil
}

func (h *GRPCHandler) HandleSMS(ctx context.Context, req *dialogrpc.SMSRequest) (*dialogrpc.SMSResponse, error) {
	from := strings.TrimSpace(req.From)
	if from == "" {
		return nil, status.Error(codes.InvalidArgument, "missing sender")
	}

	reply, err := h.sms.HandleInbound(ctx, service.InboundSMS{
		From:   from,
		To:     req.To,
		Text:   req.Text,
		Date:   req.Date,
		ID:     req.ID,
		LinkID: req.LinkID,
	})
	if errors.Is(err, service.ErrDuplicateMessage) {
		return nil, status.Error(codes.AlreadyExists, "duplicate message")
	}
	if err != nil {
		h.log.Error("failed to handle sms", zap.String("phone", from), zap.Error(err))
		return nil, status.Error(codes.Internal, "internal error")
	}

	return &dialogrpc.SMSResponse{Reply: reply}, nil
}
