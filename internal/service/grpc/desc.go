package grpcsvc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName задаёт полное имя gRPC-сервиса.
const ServiceName = "roombook.v1.ReservationService"

// Имена методов.
const (
	MethodCreateReservation         = "CreateReservation"
	MethodModifyReservation         = "ModifyReservation"
	MethodApproveReservation        = "ApproveReservation"
	MethodRejectReservation         = "RejectReservation"
	MethodDeleteReservation         = "DeleteReservation"
	MethodCancelOwnReservation      = "CancelOwnReservation"
	MethodUndo                      = "Undo"
	MethodRedo                      = "Redo"
	MethodResetHistory              = "ResetHistory"
	MethodGetHistory                = "GetHistory"
	MethodListPendingReservations   = "ListPendingReservations"
	MethodListRequesterReservations = "ListRequesterReservations"
	MethodGetRequesterWeek          = "GetRequesterWeek"
	MethodGetRoomWeek               = "GetRoomWeek"
	MethodListNotifications         = "ListNotifications"
)

// ReservationServer — серверная сторона. Запросы и ответы передаются как google.protobuf.Struct с ключами в snake_case.
type ReservationServer interface {
	CreateReservation(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ModifyReservation(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ApproveReservation(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RejectReservation(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteReservation(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CancelOwnReservation(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Undo(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Redo(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ResetHistory(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetHistory(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListPendingReservations(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListRequesterReservations(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetRequesterWeek(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetRoomWeek(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListNotifications(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(ReservationServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func method(name string, call unaryCall) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(ReservationServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(ReservationServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ServiceDesc описывает сервис для grpc.Server.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ReservationServer)(nil),
	Methods: []grpc.MethodDesc{
		method(MethodCreateReservation, ReservationServer.CreateReservation),
		method(MethodModifyReservation, ReservationServer.ModifyReservation),
		method(MethodApproveReservation, ReservationServer.ApproveReservation),
		method(MethodRejectReservation, ReservationServer.RejectReservation),
		method(MethodDeleteReservation, ReservationServer.DeleteReservation),
		method(MethodCancelOwnReservation, ReservationServer.CancelOwnReservation),
		method(MethodUndo, ReservationServer.Undo),
		method(MethodRedo, ReservationServer.Redo),
		method(MethodResetHistory, ReservationServer.ResetHistory),
		method(MethodGetHistory, ReservationServer.GetHistory),
		method(MethodListPendingReservations, ReservationServer.ListPendingReservations),
		method(MethodListRequesterReservations, ReservationServer.ListRequesterReservations),
		method(MethodGetRequesterWeek, ReservationServer.GetRequesterWeek),
		method(MethodGetRoomWeek, ReservationServer.GetRoomWeek),
		method(MethodListNotifications, ReservationServer.ListNotifications),
	},
	Metadata: "roombook/v1/reservation_service",
}

// RegisterReservationServer регистрирует srv на s.
func RegisterReservationServer(s grpc.ServiceRegistrar, srv ReservationServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// Client вызывает методы сервиса по имени.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient оборачивает соединение.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Call вызывает метод name; req == nil отправляет пустой Struct.
func (c *Client) Call(ctx context.Context, name string, req map[string]any, opts ...grpc.CallOption) (map[string]any, error) {
	in, err := structpb.NewStruct(req)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+name, in, out, opts...); err != nil {
		return nil, err
	}
	return out.AsMap(), nil
}
