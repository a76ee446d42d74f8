// Package dialogrpc defines the pricechek.v1.Dialog gRPC service. Messages
// are plain structs carried by a JSON codec so aggregator bridges can call
// the dialog engines without generated protobuf code.
package dialogrpc

import (
	"context"

	"google.golang.org/grpc"
)

const (
	ServiceName = "pricechek.v1.Dialog"

	methodHandleUSSD = "/" + ServiceName + "/HandleUSSD"
	methodHandleSMS  = "/" + ServiceName + "/HandleSMS"
)

type USSDRequest struct {
	SessionID   string `json:"session_id"`
	ServiceCode string `json:"service_code"`
	PhoneNumber string `json:"phone_number"`
	Text        string `json:"text"`
}

type USSDResponse struct {
	Response string `json:"response"`
}

type SMSRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Text   string `json:"text"`
	Date   string `json:"date"`
	ID     string `json:"id"`
	LinkID string `json:"link_id"`
}

type SMSResponse struct {
	Reply string `json:"reply"`
}

type DialogServer interface {
	HandleUSSD(context.Context, *USSDRequest) (*USSDResponse, error)
	HandleSMS(context.Context, *SMSRequest) (*SMSResponse, error)
}

func RegisterDialogServer(s grpc.ServiceRegistrar, srv DialogServer) {
	s.RegisterService(&ServiceDesc, srv)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DialogServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "HandleUSSD", Handler: handleUSSD},
		{MethodName: "HandleSMS", Handler: handleSMS},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "pricechek/v1/dialog",
}

func handleUSSD(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(USSDRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DialogServer).HandleUSSD(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodHandleUSSD}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(DialogServer).HandleUSSD(ctx, req.(*USSDRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func handleSMS(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(SMSRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DialogServer).HandleSMS(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodHandleSMS}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(DialogServer).HandleSMS(ctx, req.(*SMSRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// DialogClient calls the Dialog service using the JSON codec.
type DialogClient struct {
	cc grpc.ClientConnInterface
}

func NewDialogClient(cc grpc.ClientConnInterface) *DialogClient {
	return &DialogClient{cc: cc}
}

func (c *DialogClient) HandleUSSD(ctx context.Context, in *USSDRequest, opts ...grpc.CallOption) (*USSDResponse, error) {
	out := new(USSDResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, methodHandleUSSD, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *DialogClient) HandleSMS(ctx context.Context, in *SMSRequest, opts ...grpc.CallOption) (*SMSResponse, error) {
	out := new(SMSResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, methodHandleSMS, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
