package chatv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const ServiceName = "chat.v1.ChatService"

const (
	ChatService_Register_FullMethodName     = "/chat.v1.ChatService/Register"
	ChatService_Login_FullMethodName        = "/chat.v1.ChatService/Login"
	ChatService_Logout_FullMethodName       = "/chat.v1.ChatService/Logout"
	ChatService_Me_FullMethodName           = "/chat.v1.ChatService/Me"
	ChatService_GetUser_FullMethodName      = "/chat.v1.ChatService/GetUser"
	ChatService_FindUser_FullMethodName     = "/chat.v1.ChatService/FindUser"
	ChatService_AddContact_FullMethodName   = "/chat.v1.ChatService/AddContact"
	ChatService_ListContacts_FullMethodName = "/chat.v1.ChatService/ListContacts"
	ChatService_OpenRoom_FullMethodName     = "/chat.v1.ChatService/OpenRoom"
	ChatService_SendMessage_FullMethodName  = "/chat.v1.ChatService/SendMessage"
	ChatService_ListRooms_FullMethodName    = "/chat.v1.ChatService/ListRooms"
	ChatService_Subscribe_FullMethodName    = "/chat.v1.ChatService/Subscribe"
)

// ChatServiceServer is the server API for ChatService.
type ChatServiceServer interface {
	Register(context.Context, *RegisterRequest) (*AuthResponse, error)
	Login(context.Context, *LoginRequest) (*AuthResponse, error)
	Logout(context.Context, *LogoutRequest) (*LogoutResponse, error)
	Me(context.Context, *MeRequest) (*User, error)
	GetUser(context.Context, *GetUserRequest) (*User, error)
	FindUser(context.Context, *FindUserRequest) (*User, error)
	AddContact(context.Context, *AddContactRequest) (*AddContactResponse, error)
	ListContacts(context.Context, *ListContactsRequest) (*ListContactsResponse, error)
	OpenRoom(context.Context, *OpenRoomRequest) (*OpenRoomResponse, error)
	SendMessage(context.Context, *SendMessageRequest) (*SendMessageResponse, error)
	ListRooms(context.Context, *ListRoomsRequest) (*ListRoomsResponse, error)
	Subscribe(*SubscribeRequest, ChatService_SubscribeServer) error
}

// ChatService_SubscribeServer is the server side of a Subscribe stream.
type ChatService_SubscribeServer = grpc.ServerStreamingServer[RoomSnapshot]

// UnimplementedChatServiceServer can be embedded to have forward compatible
// implementations.
type UnimplementedChatServiceServer struct{}

func (UnimplementedChatServiceServer) Register(context.Context, *RegisterRequest) (*AuthResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Register not implemented")
}
func (UnimplementedChatServiceServer) Login(context.Context, *LoginRequest) (*AuthResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Login not implemented")
}
func (UnimplementedChatServiceServer) Logout(context.Context, *LogoutRequest) (*LogoutResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Logout not implemented")
}
func (UnimplementedChatServiceServer) Me(context.Context, *MeRequest) (*User, error) {
	return nil, status.Error(codes.Unimplemented, "method Me not implemented")
}
func (UnimplementedChatServiceServer) GetUser(context.Context, *GetUserRequest) (*User, error) {
	return nil, status.Error(codes.Unimplemented, "method GetUser not implemented")
}
func (UnimplementedChatServiceServer) FindUser(context.Context, *FindUserRequest) (*User, error) {
	return nil, status.Error(codes.Unimplemented, "method FindUser not implemented")
}
func (UnimplementedChatServiceServer) AddContact(context.Context, *AddContactRequest) (*AddContactResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method AddContact not implemented")
}
func (UnimplementedChatServiceServer) ListContacts(context.Context, *ListContactsRequest) (*ListContactsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListContacts not implemented")
}
func (UnimplementedChatServiceServer) OpenRoom(context.Context, *OpenRoomRequest) (*OpenRoomResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method OpenRoom not implemented")
}
func (UnimplementedChatServiceServer) SendMessage(context.Context, *SendMessageRequest) (*SendMessageResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method SendMessage not implemented")
}
func (UnimplementedChatServiceServer) ListRooms(context.Context, *ListRoomsRequest) (*ListRoomsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListRooms not implemented")
}
func (UnimplementedChatServiceServer) Subscribe(*SubscribeRequest, ChatService_SubscribeServer) error {
	return status.Error(codes.Unimplemented, "method Subscribe not implemented")
}

// RegisterChatServiceServer registers srv on s.
func RegisterChatServiceServer(s grpc.ServiceRegistrar, srv ChatServiceServer) {
	s.RegisterService(&ChatService_ServiceDesc, srv)
}

// unary adapts a typed server method to a grpc.MethodHandler.
func unary[Req, Res any](fullMethod string, call func(ChatServiceServer, context.Context, *Req) (*Res, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ChatServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ChatServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func subscribeHandler(srv any, stream grpc.ServerStream) error {
	m := new(SubscribeRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(ChatServiceServer).Subscribe(m, &grpc.GenericServerStream[SubscribeRequest, RoomSnapshot]{ServerStream: stream})
}

// ChatService_ServiceDesc is the grpc.ServiceDesc for ChatService.
var ChatService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ChatServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Register", Handler: unary(ChatService_Register_FullMethodName, ChatServiceServer.Register)},
		{MethodName: "Login", Handler: unary(ChatService_Login_FullMethodName, ChatServiceServer.Login)},
		{MethodName: "Logout", Handler: unary(ChatService_Logout_FullMethodName, ChatServiceServer.Logout)},
		{MethodName: "Me", Handler: unary(ChatService_Me_FullMethodName, ChatServiceServer.Me)},
		{MethodName: "GetUser", Handler: unary(ChatService_GetUser_FullMethodName, ChatServiceServer.GetUser)},
		{MethodName: "FindUser", Handler: unary(ChatService_FindUser_FullMethodName, ChatServiceServer.FindUser)},
		{MethodName: "AddContact", Handler: unary(ChatService_AddContact_FullMethodName, ChatServiceServer.AddContact)},
		{MethodName: "ListContacts", Handler: unary(ChatService_ListContacts_FullMethodName, ChatServiceServer.ListContacts)},
		{MethodName: "OpenRoom", Handler: unary(ChatService_OpenRoom_FullMethodName, ChatServiceServer.OpenRoom)},
		{MethodName: "SendMessage", Handler: unary(ChatService_SendMessage_FullMethodName, ChatServiceServer.SendMessage)},
		{MethodName: "ListRooms", Handler: unary(ChatService_ListRooms_FullMethodName, ChatServiceServer.ListRooms)},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Subscribe",
			Handler:       subscribeHandler,
			ServerStreams: true,
		},
	},
	Metadata: "chat/v1/chat.json",
}
