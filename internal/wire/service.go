package wire

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "wordkeeper.v1.Sync"

// Full method names, as seen by interceptors.
const (
	MethodPullCollections = "/" + ServiceName + "/PullCollections"
	MethodPullItems       = "/" + ServiceName + "/PullItems"
	MethodPushProgress    = "/" + ServiceName + "/PushProgress"
	MethodPushItems       = "/" + ServiceName + "/PushItems"
	MethodPushCollections = "/" + ServiceName + "/PushCollections"
)

// SyncServer is implemented by the remote store.
type SyncServer interface {
	PullCollections(context.Context, *PullCollectionsRequest) (*PullCollectionsResponse, error)
	PullItems(context.Context, *PullItemsRequest) (*PullItemsResponse, error)
	PushProgress(context.Context, *PushProgressRequest) (*PushResponse, error)
	PushItems(context.Context, *PushItemsRequest) (*PushResponse, error)
	PushCollections(context.Context, *PushCollectionsRequest) (*PushResponse, error)
}

// RegisterSyncServer registers srv on s.
func RegisterSyncServer(s grpc.ServiceRegistrar, srv SyncServer) {
	s.RegisterService(&SyncServiceDesc, srv)
}

// SyncServiceDesc describes the Sync service for grpc.Server.
var SyncServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SyncServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "PullCollections", Handler: unary(MethodPullCollections, SyncServer.PullCollections)},
		{MethodName: "PullItems", Handler: unary(MethodPullItems, SyncServer.PullItems)},
		{MethodName: "PushProgress", Handler: unary(MethodPushProgress, SyncServer.PushProgress)},
		{MethodName: "PushItems", Handler: unary(MethodPushItems, SyncServer.PushItems)},
		{MethodName: "PushCollections", Handler: unary(MethodPushCollections, SyncServer.PushCollections)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "wordkeeper/v1/sync",
}

func unary[Req, Resp any](fullMethod string, call func(SyncServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(SyncServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(SyncServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// SyncClient calls the Sync service with the JSON codec.
type SyncClient struct {
	cc grpc.ClientConnInterface
}

// NewSyncClient wraps a connection.
func NewSyncClient(cc grpc.ClientConnInterface) *SyncClient { return &SyncClient{cc: cc} }

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *SyncClient) PullCollections(ctx context.Context, in *PullCollectionsRequest, opts ...grpc.CallOption) (*PullCollectionsResponse, error) {
	return invoke[PullCollectionsResponse](ctx, c.cc, MethodPullCollections, in, opts)
}

func (c *SyncClient) PullItems(ctx context.Context, in *PullItemsRequest, opts ...grpc.CallOption) (*PullItemsResponse, error) {
	return invoke[PullItemsResponse](ctx, c.cc, MethodPullItems, in, opts)
}

func (c *SyncClient) PushProgress(ctx context.Context, in *PushProgressRequest, opts ...grpc.CallOption) (*PushResponse, error) {
	return invoke[PushResponse](ctx, c.cc, MethodPushProgress, in, opts)
}

func (c *SyncClient) PushItems(ctx context.Context, in *PushItemsRequest, opts ...grpc.CallOption) (*PushResponse, error) {
	return invoke[PushResponse](ctx, c.cc, MethodPushItems, in, opts)
}

func (c *SyncClient) PushCollections(ctx context.Context, in *PushCollectionsRequest, opts ...grpc.CallOption) (*PushResponse, error) {
	return invoke[PushResponse](ctx, c.cc, MethodPushCollections, in, opts)
}
