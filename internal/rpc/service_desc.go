package rpc

import (
	"context"

	"google.golang.org/grpc"
)

// ProcdServer is the daemon's control surface. A hand-written interface
// plays the role a protoc-gen-go-grpc ..._grpc.pb.go would normally
// generate.
type ProcdServer interface {
	StartProcess(req *StartProcessRequest, stream StartProcess_Server) error
	StopProcess(ctx context.Context, req *StopProcessRequest) (*StopProcessResponse, error)
	RestartProcess(req *RestartProcessRequest, stream RestartProcess_Server) error
	GetProcess(ctx context.Context, req *GetProcessRequest) (*GetProcessResponse, error)
	ListProcesses(ctx context.Context, req *ListProcessesRequest) (*ListProcessesResponse, error)
	GetLogs(req *GetLogsRequest, stream GetLogs_Server) error
	GrepLogs(ctx context.Context, req *GrepLogsRequest) (*GrepLogsResponse, error)
	CleanProject(ctx context.Context, req *CleanProjectRequest) (*CleanProjectResponse, error)
	GetDaemonStatus(ctx context.Context, req *GetDaemonStatusRequest) (*GetDaemonStatusResponse, error)
}

// StartProcess_Server is the server-streaming handle start_process and
// restart_process both use.
type StartProcess_Server interface {
	Send(*StartProcessResponse) error
	grpc.ServerStream
}

type startProcessServerStream struct{ grpc.ServerStream }

func (s *startProcessServerStream) Send(m *StartProcessResponse) error {
	return s.ServerStream.SendMsg(m)
}

// RestartProcess_Server mirrors StartProcess_Server.
type RestartProcess_Server = StartProcess_Server

// GetLogs_Server is the server-streaming handle for get_logs.
type GetLogs_Server interface {
	Send(*GetLogsResponse) error
	grpc.ServerStream
}

type getLogsServerStream struct{ grpc.ServerStream }

func (s *getLogsServerStream) Send(m *GetLogsResponse) error {
	return s.ServerStream.SendMsg(m)
}

func _Procd_StartProcess_Handler(srv interface{}, stream grpc.ServerStream) error {
	m := new(StartProcessRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(ProcdServer).StartProcess(m, &startProcessServerStream{stream})
}

func _Procd_RestartProcess_Handler(srv interface{}, stream grpc.ServerStream) error {
	m := new(RestartProcessRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(ProcdServer).RestartProcess(m, &startProcessServerStream{stream})
}

func _Procd_GetLogs_Handler(srv interface{}, stream grpc.ServerStream) error {
	m := new(GetLogsRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(ProcdServer).GetLogs(m, &getLogsServerStream{stream})
}

func _Procd_StopProcess_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(StopProcessRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ProcdServer).StopProcess(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/procd.Procd/StopProcess"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ProcdServer).StopProcess(ctx, req.(*StopProcessRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Procd_GetProcess_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(GetProcessRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ProcdServer).GetProcess(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/procd.Procd/GetProcess"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ProcdServer).GetProcess(ctx, req.(*GetProcessRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Procd_ListProcesses_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ListProcessesRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ProcdServer).ListProcesses(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/procd.Procd/ListProcesses"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ProcdServer).ListProcesses(ctx, req.(*ListProcessesRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Procd_GrepLogs_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(GrepLogsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ProcdServer).GrepLogs(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/procd.Procd/GrepLogs"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ProcdServer).GrepLogs(ctx, req.(*GrepLogsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Procd_CleanProject_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(CleanProjectRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ProcdServer).CleanProject(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/procd.Procd/CleanProject"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ProcdServer).CleanProject(ctx, req.(*CleanProjectRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Procd_GetDaemonStatus_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(GetDaemonStatusRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ProcdServer).GetDaemonStatus(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/procd.Procd/GetDaemonStatus"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ProcdServer).GetDaemonStatus(ctx, req.(*GetDaemonStatusRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// ServiceDesc is registered on the grpc.Server in place of a
// protoc-generated one (see codec.go).
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: "procd.Procd",
	HandlerType: (*ProcdServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "StopProcess", Handler: _Procd_StopProcess_Handler},
		{MethodName: "GetProcess", Handler: _Procd_GetProcess_Handler},
		{MethodName: "ListProcesses", Handler: _Procd_ListProcesses_Handler},
		{MethodName: "GrepLogs", Handler: _Procd_GrepLogs_Handler},
		{MethodName: "CleanProject", Handler: _Procd_CleanProject_Handler},
		{MethodName: "GetDaemonStatus", Handler: _Procd_GetDaemonStatus_Handler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "StartProcess", Handler: _Procd_StartProcess_Handler, ServerStreams: true},
		{StreamName: "RestartProcess", Handler: _Procd_RestartProcess_Handler, ServerStreams: true},
		{StreamName: "GetLogs", Handler: _Procd_GetLogs_Handler, ServerStreams: true},
	},
	Metadata: "procd.rpc",
}
