package chain

import (
	"context"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/cosmos/cosmos-sdk/client/grpc/cmtservice"
	codectypes "github.com/cosmos/cosmos-sdk/codec/types"
	clienttypes "github.com/cosmos/ibc-go/v8/modules/core/02-client/types"
	connectiontypes "github.com/cosmos/ibc-go/v8/modules/core/03-connection/types"
	channeltypes "github.com/cosmos/ibc-go/v8/modules/core/04-channel/types"
	ibctm "github.com/cosmos/ibc-go/v8/modules/light-clients/07-tendermint"
	"github.com/pkg/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/manifest-network/ibcsend/internal/client"
	"github.com/manifest-network/ibcsend/internal/config"
)

const (
	tendermintClientStateURL = "/ibc.lightclients.tendermint.v1.ClientState"
	retryDelay               = 500 * time.Millisecond
)

// GRPCHandle queries a Cosmos SDK node over gRPC using the ibc-go query services.
type GRPCHandle struct {
	cfg    config.ChainConfig
	client *client.GRPCClient

	channels    channeltypes.QueryClient
	connections connectiontypes.QueryClient
	clients     clienttypes.QueryClient
	service     cmtservice.ServiceClient
}

var _ Handle = (*GRPCHandle)(nil)

// NewGRPCHandle creates a handle for the chain described by cfg.
func NewGRPCHandle(_ context.Context, cfg config.ChainConfig) (*GRPCHandle, error) {
	c, err := client.NewGRPCClient(cfg.GRPCAddr)
	if err != nil {
		return nil, errors.WithMessagef(err, "chain '%s'", cfg.ID)
	}

	return &GRPCHandle{
		cfg:         cfg,
		client:      c,
		channels:    channeltypes.NewQueryClient(c.Conn),
		connections: connectiontypes.NewQueryClient(c.Conn),
		clients:     clienttypes.NewQueryClient(c.Conn),
		service:     cmtservice.NewServiceClient(c.Conn),
	}, nil
}

func (h *GRPCHandle) ChainID() string {
	return h.cfg.ID
}

func (h *GRPCHandle) Config() config.ChainConfig {
	return h.cfg
}

// Conn exposes the underlying connection for collaborators that need other gRPC services,
// such as the tx broadcaster.
func (h *GRPCHandle) Conn() *grpc.ClientConn {
	return h.client.Conn
}

func (h *GRPCHandle) Close() error {
	return h.client.Close()
}

func (h *GRPCHandle) QueryChannel(ctx context.Context, portID, channelID string) (ChannelEnd, error) {
	resp, err := withRetry(ctx, h.cfg, func(ctx context.Context) (*channeltypes.QueryChannelResponse, error) {
		return h.channels.Channel(ctx, &channeltypes.QueryChannelRequest{
			PortId:    portID,
			ChannelId: channelID,
		})
	})
	if err != nil {
		return ChannelEnd{}, errors.Wrapf(err, "failed to query channel '%s'/'%s' on chain '%s'", portID, channelID, h.cfg.ID)
	}
	if resp.Channel == nil {
		return ChannelEnd{}, errors.Errorf("channel '%s'/'%s' not found on chain '%s'", portID, channelID, h.cfg.ID)
	}

	return channelFromProto(portID, channelID, resp.Channel), nil
}

func (h *GRPCHandle) QueryConnection(ctx context.Context, connectionID string) (ConnectionEnd, error) {
	resp, err := withRetry(ctx, h.cfg, func(ctx context.Context) (*connectiontypes.QueryConnectionResponse, error) {
		return h.connections.Connection(ctx, &connectiontypes.QueryConnectionRequest{
			ConnectionId: connectionID,
		})
	})
	if err != nil {
		return ConnectionEnd{}, errors.Wrapf(err, "failed to query connection '%s' on chain '%s'", connectionID, h.cfg.ID)
	}
	if resp.Connection == nil {
		return ConnectionEnd{}, errors.Errorf("connection '%s' not found on chain '%s'", connectionID, h.cfg.ID)
	}

	return connectionFromProto(connectionID, resp.Connection), nil
}

func (h *GRPCHandle) QueryClientState(ctx context.Context, clientID string) (ClientState, error) {
	resp, err := withRetry(ctx, h.cfg, func(ctx context.Context) (*clienttypes.QueryClientStateResponse, error) {
		return h.clients.ClientState(ctx, &clienttypes.QueryClientStateRequest{
			ClientId: clientID,
		})
	})
	if err != nil {
		return ClientState{}, errors.Wrapf(err, "failed to query client state '%s' on chain '%s'", clientID, h.cfg.ID)
	}

	cs, err := decodeClientState(clientID, resp.ClientState)
	if err != nil {
		return ClientState{}, errors.WithMessagef(err, "chain '%s'", h.cfg.ID)
	}
	return cs, nil
}

func (h *GRPCHandle) LatestBlock(ctx context.Context) (BlockInfo, error) {
	resp, err := withRetry(ctx, h.cfg, func(ctx context.Context) (*cmtservice.GetLatestBlockResponse, error) {
		return h.service.GetLatestBlock(ctx, &cmtservice.GetLatestBlockRequest{})
	})
	if err != nil {
		return BlockInfo{}, errors.Wrapf(err, "failed to get latest block on chain '%s'", h.cfg.ID)
	}
	if resp.SdkBlock == nil {
		return BlockInfo{}, errors.Errorf("latest block response from chain '%s' carries no block", h.cfg.ID)
	}

	header := resp.SdkBlock.Header
	if header.Height < 0 {
		return BlockInfo{}, errors.Errorf("chain '%s' reported negative height %d", h.cfg.ID, header.Height)
	}

	return BlockInfo{
		ChainID: header.ChainID,
		Height:  uint64(header.Height),
		Time:    header.Time,
	}, nil
}

// withRetry runs query once plus up to cfg.MaxRetries retries, each under the chain's
// per-attempt timeout. NotFound and InvalidArgument answers are final and are not retried.
func withRetry[T any](ctx context.Context, cfg config.ChainConfig, query func(context.Context) (T, error)) (T, error) {
	attempts := cfg.MaxRetries + 1
	timeout := cfg.RPCTimeout
	if timeout <= 0 {
		timeout = config.DefaultRPCTimeout
	}

	return retry.DoWithData(
		func() (T, error) {
			attemptCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			res, err := query(attemptCtx)
			if err != nil && !isRetryable(err) {
				return res, retry.Unrecoverable(err)
			}
			return res, err
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			slog.Debug("Retrying chain query", "chain", cfg.ID, "attempt", n+1, "error", err)
		}),
	)
}

func isRetryable(err error) bool {
	switch status.Code(err) {
	case codes.NotFound, codes.InvalidArgument, codes.Unimplemented, codes.PermissionDenied, codes.Unauthenticated:
		return false
	default:
		return true
	}
}

func channelFromProto(portID, channelID string, ch *channeltypes.Channel) ChannelEnd {
	return ChannelEnd{
		PortID:                portID,
		ChannelID:             channelID,
		State:                 channelState(ch.State),
		Ordering:              ch.Ordering.String(),
		Version:               ch.Version,
		ConnectionHops:        append([]string(nil), ch.ConnectionHops...),
		CounterpartyPortID:    ch.Counterparty.PortId,
		CounterpartyChannelID: ch.Counterparty.ChannelId,
	}
}

func channelState(s channeltypes.State) State {
	switch s {
	case channeltypes.INIT:
		return StateInit
	case channeltypes.TRYOPEN:
		return StateTryOpen
	case channeltypes.OPEN:
		return StateOpen
	case channeltypes.CLOSED:
		return StateClosed
	case channeltypes.FLUSHING:
		return StateFlushing
	case channeltypes.FLUSHCOMPLETE:
		return StateFlushComplete
	default:
		return StateUninitialized
	}
}

func connectionFromProto(connectionID string, conn *connectiontypes.ConnectionEnd) ConnectionEnd {
	var state State
	switch conn.State {
	case connectiontypes.INIT:
		state = StateInit
	case connectiontypes.TRYOPEN:
		state = StateTryOpen
	case connectiontypes.OPEN:
		state = StateOpen
	default:
		state = StateUninitialized
	}

	return ConnectionEnd{
		ID:       connectionID,
		ClientID: conn.ClientId,
		State:    state,
	}
}

// decodeClientState unpacks the Any returned by the client query. Only Tendermint light
// clients are understood.
func decodeClientState(clientID string, state *codectypes.Any) (ClientState, error) {
	if state == nil {
		return ClientState{}, errors.Errorf("client state '%s' not found", clientID)
	}
	if state.TypeUrl != tendermintClientStateURL {
		return ClientState{}, errors.Errorf("client '%s' has unsupported client state type '%s'", clientID, state.TypeUrl)
	}

	var cs ibctm.ClientState
	if err := cs.Unmarshal(state.Value); err != nil {
		return ClientState{}, errors.Wrapf(err, "failed to decode client state '%s'", clientID)
	}

	return ClientState{
		ClientID: clientID,
		ChainID:  cs.ChainId,
		LatestHeight: Height{
			RevisionNumber: cs.LatestHeight.RevisionNumber,
			RevisionHeight: cs.LatestHeight.RevisionHeight,
		},
		Frozen: !cs.FrozenHeight.IsZero(),
	}, nil
}
