// Package remote talks to the wordkeeper server over gRPC. Client implements the remote
// store and connectivity probe the sync orchestrator needs.
package remote

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/gofrs/uuid/v5"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/and161185/wordkeeper/internal/convert"
	"github.com/and161185/wordkeeper/internal/errs"
	"github.com/and161185/wordkeeper/internal/model"
	"github.com/and161185/wordkeeper/internal/repository"
	"github.com/and161185/wordkeeper/internal/wire"
)

// DefaultProbeTimeout bounds a reachability check.
const DefaultProbeTimeout = 3 * time.Second

// Options configure Dial.
type Options struct {
	Addr string
	// CAFile is a PEM bundle to trust; empty means system roots.
	CAFile string
	// SkipVerify disables server certificate checks (dev only).
	SkipVerify bool
	// Plaintext dials without TLS.
	Plaintext bool
	// Token is sent as "authorization: Bearer <token>" on every call.
	Token        string
	ProbeTimeout time.Duration
}

// Client is a RemoteRepository over gRPC.
type Client struct {
	cc           *grpc.ClientConn
	sync         *wire.SyncClient
	health       healthpb.HealthClient
	probeTimeout time.Duration
}

var _ repository.RemoteRepository = (*Client)(nil)

type bearerCreds struct {
	token  string
	secure bool
}

func (b bearerCreds) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	return map[string]string{"authorization": "Bearer " + b.token}, nil
}

func (b bearerCreds) RequireTransportSecurity() bool { return b.secure }

func loadTLS(o Options) (credentials.TransportCredentials, error) {
	if o.Plaintext {
		return insecure.NewCredentials(), nil
	}
	if o.SkipVerify {
		return credentials.NewTLS(&tls.Config{InsecureSkipVerify: true}), nil //nolint:gosec // explicit dev flag
	}
	if o.CAFile == "" {
		return credentials.NewClientTLSFromCert(nil, ""), nil
	}
	pem, err := os.ReadFile(o.CAFile)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.New("bad CA cert")
	}
	return credentials.NewTLS(&tls.Config{RootCAs: pool}), nil
}

// Dial connects lazily; the first call or probe establishes the connection.
func Dial(ctx context.Context, o Options, extra ...grpc.DialOption) (*Client, error) {
	creds, err := loadTLS(o)
	if err != nil {
		return nil, fmt.Errorf("remote: tls: %w", err)
	}
	opts := []grpc.DialOption{grpc.WithTransportCredentials(creds)}
	if o.Token != "" {
		opts = append(opts, grpc.WithPerRPCCredentials(bearerCreds{token: o.Token, secure: !o.Plaintext}))
	}
	opts = append(opts, extra...)
	//nolint:staticcheck // DialContext is supported through 1.x; migrate when grpc.NewClient is stable
	cc, err := grpc.DialContext(ctx, o.Addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("remote: dial %s: %w", o.Addr, err)
	}
	return New(cc, o.ProbeTimeout), nil
}

// New wraps an existing connection.
func New(cc *grpc.ClientConn, probeTimeout time.Duration) *Client {
	if probeTimeout <= 0 {
		probeTimeout = DefaultProbeTimeout
	}
	return &Client{
		cc:           cc,
		sync:         wire.NewSyncClient(cc),
		health:       healthpb.NewHealthClient(cc),
		probeTimeout: probeTimeout,
	}
}

// Close releases the connection.
func (c *Client) Close() error { return c.cc.Close() }

// IsReachable asks the server health service whether Sync is serving.
func (c *Client) IsReachable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()
	resp, err := c.health.Check(ctx, &healthpb.HealthCheckRequest{Service: wire.ServiceName})
	return err == nil && resp.GetStatus() == healthpb.HealthCheckResponse_SERVING
}

// mapErr turns a gRPC status into the error kinds the sync layer understands.
func mapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		if errors.Is(err, context.DeadlineExceeded) {
			return &errs.RemoteError{Op: op, Network: true, Err: err}
		}
		return &errs.RemoteError{Op: op, Err: err}
	}
	switch st.Code() {
	case codes.Unavailable, codes.DeadlineExceeded:
		return &errs.RemoteError{Op: op, Network: true, Err: fmt.Errorf("%w: %s", errs.ErrNoNetwork, st.Message())}
	case codes.InvalidArgument:
		return &errs.RemoteError{Op: op, Err: fmt.Errorf("%w: %s", errs.ErrValidation, st.Message())}
	case codes.FailedPrecondition, codes.AlreadyExists, codes.Aborted:
		return &errs.RemoteError{Op: op, Err: fmt.Errorf("%w: %s", errs.ErrConflict, st.Message())}
	case codes.Unauthenticated, codes.PermissionDenied:
		return &errs.RemoteError{Op: op, Err: fmt.Errorf("%w: %s", errs.ErrUnauthorized, st.Message())}
	case codes.NotFound:
		return &errs.RemoteError{Op: op, Err: fmt.Errorf("%w: %s", errs.ErrNotFound, st.Message())}
	default:
		return &errs.RemoteError{Op: op, Err: err}
	}
}

func (c *Client) ListCollections(ctx context.Context, ownerID uuid.UUID) ([]model.Collection, error) {
	resp, err := c.sync.PullCollections(ctx, &wire.PullCollectionsRequest{OwnerID: ownerID.String()})
	if err != nil {
		return nil, mapErr("pull collections", err)
	}
	cols, err := convert.FromWireCollections(resp.Collections)
	if err != nil {
		return nil, &errs.RemoteError{Op: "pull collections", Err: err}
	}
	return cols, nil
}

func (c *Client) ListItemsSince(ctx context.Context, ownerID uuid.UUID, since time.Time) ([]model.VocabularyItem, error) {
	req := &wire.PullItemsRequest{OwnerID: ownerID.String()}
	if !since.IsZero() {
		s := since.UTC()
		req.Since = &s
	}
	resp, err := c.sync.PullItems(ctx, req)
	if err != nil {
		return nil, mapErr("pull items", err)
	}
	items, err := convert.FromWireItems(resp.Items)
	if err != nil {
		return nil, &errs.RemoteError{Op: "pull items", Err: err}
	}
	return items, nil
}

func (c *Client) UpsertProgress(ctx context.Context, ownerID uuid.UUID, recs []model.ProgressRecord) error {
	_, err := c.sync.PushProgress(ctx, &wire.PushProgressRequest{
		OwnerID:  ownerID.String(),
		Progress: convert.ToWireProgressList(recs),
	})
	return mapErr("push progress", err)
}

func (c *Client) UpsertItems(ctx context.Context, ownerID uuid.UUID, items []model.VocabularyItem) error {
	_, err := c.sync.PushItems(ctx, &wire.PushItemsRequest{
		OwnerID: ownerID.String(),
		Items:   convert.ToWirePushItems(items),
	})
	return mapErr("push items", err)
}

func (c *Client) UpsertCollections(ctx context.Context, ownerID uuid.UUID, cols []model.Collection) error {
	_, err := c.sync.PushCollections(ctx, &wire.PushCollectionsRequest{
		OwnerID:     ownerID.String(),
		Collections: convert.ToWireCollections(cols),
	})
	return mapErr("push collections", err)
}
