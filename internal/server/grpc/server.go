// Package grpcserver exposes the wordkeeper sync API over gRPC.
package grpcserver

import (
	"context"
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/and161185/wordkeeper/internal/convert"
	"github.com/and161185/wordkeeper/internal/errs"
	"github.com/and161185/wordkeeper/internal/service"
	"github.com/and161185/wordkeeper/internal/wire"
)

// Server wires the sync service into gRPC handlers.
type Server struct {
	sync service.SyncService
}

var _ wire.SyncServer = (*Server)(nil)

// New constructs the handler set.
func New(sync service.SyncService) *Server {
	return &Server{sync: sync}
}

// NewGRPCServer builds a grpc.Server with the sync service, the health service and
// the recover, logging and auth interceptors.
func NewGRPCServer(log *zap.Logger, signKey []byte, srv *Server, opts ...grpc.ServerOption) (*grpc.Server, *health.Server) {
	opts = append(opts, grpc.ChainUnaryInterceptor(
		RecoverUnary(log),
		LoggingUnary(log),
		AuthUnary(signKey, PublicMethods...),
	))
	gs := grpc.NewServer(opts...)
	wire.RegisterSyncServer(gs, srv)

	hs := health.NewServer()
	hs.SetServingStatus(wire.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(gs, hs)
	return gs, hs
}

// ownerFromCtx returns the authenticated owner, rejecting requests made on behalf of someone else.
func ownerFromCtx(ctx context.Context, reqOwner string) (uuid.UUID, error) {
	owner, ok := OwnerIDFromCtx(ctx)
	if !ok {
		return uuid.Nil, status.Error(codes.Unauthenticated, "no auth")
	}
	if reqOwner != "" && reqOwner != owner.String() {
		return uuid.Nil, status.Error(codes.PermissionDenied, "owner mismatch")
	}
	return owner, nil
}

func toStatus(op string, err error) error {
	switch {
	case errors.Is(err, errs.ErrValidation):
		return status.Errorf(codes.InvalidArgument, "%s: %v", op, err)
	case errors.Is(err, errs.ErrConflict):
		return status.Errorf(codes.FailedPrecondition, "%s: %v", op, err)
	case errors.Is(err, errs.ErrNotFound):
		return status.Errorf(codes.NotFound, "%s: not found", op)
	case errors.Is(err, context.DeadlineExceeded):
		return status.Errorf(codes.DeadlineExceeded, "%s: deadline exceeded", op)
	case errors.Is(err, context.Canceled):
		return status.Errorf(codes.Canceled, "%s: canceled", op)
	default:
		return status.Errorf(codes.Internal, "%s: %v", op, err)
	}
}

// PullCollections returns the owner's live collections.
func (s *Server) PullCollections(ctx context.Context, req *wire.PullCollectionsRequest) (*wire.PullCollectionsResponse, error) {
	owner, err := ownerFromCtx(ctx, req.OwnerID)
	if err != nil {
		return nil, err
	}
	cols, err := s.sync.PullCollections(ctx, owner)
	if err != nil {
		return nil, toStatus("pull collections", err)
	}
	return &wire.PullCollectionsResponse{Collections: convert.ToWireCollections(cols)}, nil
}

// PullItems returns items changed after the requested watermark.
func (s *Server) PullItems(ctx context.Context, req *wire.PullItemsRequest) (*wire.PullItemsResponse, error) {
	owner, err := ownerFromCtx(ctx, req.OwnerID)
	if err != nil {
		return nil, err
	}
	var since time.Time
	if req.Since != nil {
		since = *req.Since
	}
	items, err := s.sync.PullItems(ctx, owner, since)
	if err != nil {
		return nil, toStatus("pull items", err)
	}
	return &wire.PullItemsResponse{Items: convert.ToWireItems(items)}, nil
}

// PushProgress stores review events.
func (s *Server) PushProgress(ctx context.Context, req *wire.PushProgressRequest) (*wire.PushResponse, error) {
	owner, err := ownerFromCtx(ctx, req.OwnerID)
	if err != nil {
		return nil, err
	}
	recs, err := convert.FromWireProgressList(req.Progress)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "bad progress: %v", err)
	}
	if err := s.sync.PushProgress(ctx, owner, recs); err != nil {
		return nil, toStatus("push progress", err)
	}
	return &wire.PushResponse{Accepted: len(recs)}, nil
}

// PushItems stores items.
func (s *Server) PushItems(ctx context.Context, req *wire.PushItemsRequest) (*wire.PushResponse, error) {
	owner, err := ownerFromCtx(ctx, req.OwnerID)
	if err != nil {
		return nil, err
	}
	items, err := convert.FromWireItems(req.Items)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "bad items: %v", err)
	}
	if err := s.sync.PushItems(ctx, owner, items); err != nil {
		return nil, toStatus("push items", err)
	}
	return &wire.PushResponse{Accepted: len(items)}, nil
}

// PushCollections stores collections and tombstones.
func (s *Server) PushCollections(ctx context.Context, req *wire.PushCollectionsRequest) (*wire.PushResponse, error) {
	owner, err := ownerFromCtx(ctx, req.OwnerID)
	if err != nil {
		return nil, err
	}
	cols, err := convert.FromWireCollections(req.Collections)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "bad collections: %v", err)
	}
	if err := s.sync.PushCollections(ctx, owner, cols); err != nil {
		return nil, toStatus("push collections", err)
	}
	return &wire.PushResponse{Accepted: len(cols)}, nil
}
