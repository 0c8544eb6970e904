package grpcserver

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/and161185/wordkeeper/internal/auth"
	"github.com/and161185/wordkeeper/internal/errs"
	"github.com/and161185/wordkeeper/internal/model"
	"github.com/and161185/wordkeeper/internal/srs"
	"github.com/and161185/wordkeeper/internal/wire"
)

type fakeSync struct {
	mu        sync.Mutex
	owner     uuid.UUID
	since     time.Time
	items     []model.VocabularyItem
	cols      []model.Collection
	progress  []model.ProgressRecord
	pushErr   error
	pulledFor uuid.UUID
}

func (f *fakeSync) PullCollections(_ context.Context, owner uuid.UUID) ([]model.Collection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pulledFor = owner
	return f.cols, nil
}

func (f *fakeSync) PullItems(_ context.Context, owner uuid.UUID, since time.Time) ([]model.VocabularyItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pulledFor = owner
	f.since = since
	return f.items, nil
}

func (f *fakeSync) PushProgress(_ context.Context, owner uuid.UUID, recs []model.ProgressRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pushErr != nil {
		return f.pushErr
	}
	f.owner = owner
	f.progress = append(f.progress, recs...)
	return nil
}

func (f *fakeSync) PushItems(_ context.Context, owner uuid.UUID, items []model.VocabularyItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pushErr != nil {
		return f.pushErr
	}
	f.owner = owner
	f.items = append(f.items, items...)
	return nil
}

func (f *fakeSync) PushCollections(_ context.Context, owner uuid.UUID, cols []model.Collection) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pushErr != nil {
		return f.pushErr
	}
	f.owner = owner
	f.cols = append(f.cols, cols...)
	return nil
}

const bufSize = 1 << 20

func startBufGRPC(t *testing.T, key []byte, srv *Server) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(bufSize)
	gs, _ := NewGRPCServer(zaptest.NewLogger(t), key, srv)
	go func() { _ = gs.Serve(lis) }()
	dialer := func(context.Context, string) (net.Conn, error) { return lis.Dial() }
	//nolint:staticcheck // DialContext is supported through 1.x
	cc, err := grpc.DialContext(context.Background(), "bufnet",
		grpc.WithContextDialer(dialer), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = cc.Close(); gs.Stop(); _ = lis.Close() })
	return cc
}

func jwtFor(t *testing.T, owner uuid.UUID, key []byte) string {
	t.Helper()
	tok, _, err := auth.Issue(key, owner, time.Hour)
	require.NoError(t, err)
	return tok
}

func outAuth(token string) context.Context {
	return metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer "+token)
}

func TestServer_E2E_PushAndPull(t *testing.T) {
	t.Parallel()

	key := []byte("test-secret")
	owner := uuid.Must(uuid.NewV4())
	fs := &fakeSync{}
	cc := startBufGRPC(t, key, New(fs))
	cl := wire.NewSyncClient(cc)
	ctx := outAuth(jwtFor(t, owner, key))

	itemID := uuid.Must(uuid.NewV4())
	resp, err := cl.PushItems(ctx, &wire.PushItemsRequest{
		OwnerID: owner.String(),
		Items: []wire.Item{{
			ID: itemID.String(), OwnerID: owner.String(), Lemma: "Haus",
			EasinessFactor: 2.5, NextReviewDate: "2026-10-15",
		}},
	})
	require.NoError(t, err)
	require.Equal(t, 1, resp.Accepted)
	require.Equal(t, owner, fs.owner)
	require.Len(t, fs.items, 1)
	require.Equal(t, "Haus", fs.items[0].Lemma)

	since := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	pulled, err := cl.PullItems(ctx, &wire.PullItemsRequest{OwnerID: owner.String(), Since: &since})
	require.NoError(t, err)
	require.Len(t, pulled.Items, 1)
	require.Equal(t, itemID.String(), pulled.Items[0].ID)
	require.True(t, fs.since.Equal(since))

	pr, err := cl.PushProgress(ctx, &wire.PushProgressRequest{
		OwnerID: owner.String(),
		Progress: []wire.Progress{{
			ID: uuid.Must(uuid.NewV4()).String(), OwnerID: owner.String(), ItemID: itemID.String(),
			Assessment: srs.Good.String(), IntervalDays: 1, RepetitionCount: 1,
			EasinessFactor: 2.5, NextReviewDate: "2026-10-16", ReviewedAt: since,
		}},
	})
	require.NoError(t, err)
	require.Equal(t, 1, pr.Accepted)
	require.Equal(t, srs.Good, fs.progress[0].Assessment)

	colID := uuid.Must(uuid.NewV4())
	_, err = cl.PushCollections(ctx, &wire.PushCollectionsRequest{
		OwnerID:     owner.String(),
		Collections: []wire.Collection{{ID: colID.String(), OwnerID: owner.String(), Name: "Basics"}},
	})
	require.NoError(t, err)

	cols, err := cl.PullCollections(ctx, &wire.PullCollectionsRequest{OwnerID: owner.String()})
	require.NoError(t, err)
	require.Len(t, cols.Collections, 1)
	require.Equal(t, "Basics", cols.Collections[0].Name)
	require.Equal(t, owner, fs.pulledFor)
}

func TestServer_E2E_Unauthenticated(t *testing.T) {
	t.Parallel()

	key := []byte("k")
	cl := wire.NewSyncClient(startBufGRPC(t, key, New(&fakeSync{})))

	_, err := cl.PullCollections(context.Background(), &wire.PullCollectionsRequest{})
	require.Equal(t, codes.Unauthenticated, status.Code(err))

	other := jwtFor(t, uuid.Must(uuid.NewV4()), []byte("other-key"))
	_, err = cl.PullCollections(outAuth(other), &wire.PullCollectionsRequest{})
	require.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestServer_E2E_HealthIsPublic(t *testing.T) {
	t.Parallel()

	cc := startBufGRPC(t, []byte("k"), New(&fakeSync{}))
	hc := healthpb.NewHealthClient(cc)

	resp, err := hc.Check(context.Background(), &healthpb.HealthCheckRequest{Service: wire.ServiceName})
	require.NoError(t, err)
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestServer_OwnerMismatch(t *testing.T) {
	t.Parallel()

	key := []byte("k")
	owner := uuid.Must(uuid.NewV4())
	cl := wire.NewSyncClient(startBufGRPC(t, key, New(&fakeSync{})))

	_, err := cl.PullItems(outAuth(jwtFor(t, owner, key)), &wire.PullItemsRequest{
		OwnerID: uuid.Must(uuid.NewV4()).String(),
	})
	require.Equal(t, codes.PermissionDenied, status.Code(err))
}

func TestServer_ErrorMapping(t *testing.T) {
	t.Parallel()

	owner := uuid.Must(uuid.NewV4())
	ctx := WithOwnerID(context.Background(), owner)
	req := &wire.PushCollectionsRequest{
		Collections: []wire.Collection{{
			ID: uuid.Must(uuid.NewV4()).String(), OwnerID: owner.String(), Name: "x",
		}},
	}

	cases := []struct {
		name string
		err  error
		want codes.Code
	}{
		{"validation", errs.Validation("bad"), codes.InvalidArgument},
		{"conflict", errs.ErrConflict, codes.FailedPrecondition},
		{"not found", errs.ErrNotFound, codes.NotFound},
		{"deadline", context.DeadlineExceeded, codes.DeadlineExceeded},
		{"canceled", errs.Storage("x", context.Canceled), codes.Canceled},
		{"other", errs.Storage("x", errors.New("disk full")), codes.Internal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := New(&fakeSync{pushErr: tc.err})
			_, err := s.PushCollections(ctx, req)
			require.Equal(t, tc.want, status.Code(err))
		})
	}
}

func TestServer_BadPayload(t *testing.T) {
	t.Parallel()

	s := New(&fakeSync{})
	owner := uuid.Must(uuid.NewV4())
	ctx := WithOwnerID(context.Background(), owner)

	_, err := s.PushItems(ctx, &wire.PushItemsRequest{Items: []wire.Item{{ID: "not-a-uuid"}}})
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = s.PushProgress(ctx, &wire.PushProgressRequest{Progress: []wire.Progress{{
		ID: uuid.Must(uuid.NewV4()).String(), OwnerID: owner.String(), ItemID: uuid.Must(uuid.NewV4()).String(),
		Assessment: "meh", NextReviewDate: "2026-10-15",
	}}})
	require.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestServer_NoOwnerInCtx(t *testing.T) {
	t.Parallel()

	s := New(&fakeSync{})
	_, err := s.PullCollections(context.Background(), &wire.PullCollectionsRequest{})
	require.Equal(t, codes.Unauthenticated, status.Code(err))
}
