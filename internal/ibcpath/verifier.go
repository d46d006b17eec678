// Package ibcpath checks that a channel on a source chain really leads to the intended
// destination chain before anything is sent over it.
//
// The check unwinds the trust path channel -> connection -> client and compares the chain the
// client tracks with the requested destination. A channel id that exists but belongs to a
// connection to some other chain is rejected.
package ibcpath

import (
	"context"
	"log/slog"

	"github.com/manifest-network/ibcsend/internal/chain"
)

// Request identifies the channel to verify and the chain it is expected to reach.
type Request struct {
	SrcChainID string
	DstChainID string
	PortID     string
	ChannelID  string
}

// Verifier runs the path checks against the source chain.
type Verifier struct {
	logger *slog.Logger
}

// NewVerifier returns a Verifier that logs each step at debug level. A nil logger falls back
// to slog.Default().
func NewVerifier(logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{logger: logger}
}

// Verify returns nil when the channel is open and its first connection hop is backed by a
// client that tracks req.DstChainID. Queries run in order and the first failure stops the
// pipeline.
func (v *Verifier) Verify(ctx context.Context, src chain.Handle, req Request) error {
	channel, err := v.channel(ctx, src, req)
	if err != nil {
		return err
	}

	hop, err := v.connectionHop(channel, req)
	if err != nil {
		return err
	}

	conn, err := v.connection(ctx, src, hop)
	if err != nil {
		return err
	}

	client, err := v.clientState(ctx, src, conn)
	if err != nil {
		return err
	}

	return v.checkCounterparty(client, req)
}

func (v *Verifier) channel(ctx context.Context, src chain.Handle, req Request) (chain.ChannelEnd, error) {
	channel, err := src.QueryChannel(ctx, req.PortID, req.ChannelID)
	if err != nil {
		return chain.ChannelEnd{}, &QueryError{Step: StepChannel, Err: err}
	}

	if !channel.IsOpen() {
		return chain.ChannelEnd{}, &ChannelNotOpenError{
			PortID:    req.PortID,
			ChannelID: req.ChannelID,
			ChainID:   req.SrcChainID,
			State:     channel.State,
		}
	}

	v.logger.Debug("Channel end is open", "port", req.PortID, "channel", req.ChannelID, "hops", channel.ConnectionHops)
	return channel, nil
}

func (v *Verifier) connectionHop(channel chain.ChannelEnd, req Request) (string, error) {
	if len(channel.ConnectionHops) == 0 {
		return "", &MissingConnectionHopError{
			PortID:    req.PortID,
			ChannelID: req.ChannelID,
			ChainID:   req.SrcChainID,
		}
	}
	return channel.ConnectionHops[0], nil
}

func (v *Verifier) connection(ctx context.Context, src chain.Handle, hop string) (chain.ConnectionEnd, error) {
	conn, err := src.QueryConnection(ctx, hop)
	if err != nil {
		return chain.ConnectionEnd{}, &QueryError{Step: StepConnection, Err: err}
	}

	v.logger.Debug("Connection hop underlying the channel", "connection", conn.ID, "client", conn.ClientID, "state", conn.State)
	return conn, nil
}

func (v *Verifier) clientState(ctx context.Context, src chain.Handle, conn chain.ConnectionEnd) (chain.ClientState, error) {
	client, err := src.QueryClientState(ctx, conn.ClientID)
	if err != nil {
		return chain.ClientState{}, &QueryError{Step: StepClient, Err: err}
	}

	v.logger.Debug("Client state underlying the channel", "client", client.ClientID, "trackedChain", client.ChainID, "latestHeight", client.LatestHeight)
	return client, nil
}

func (v *Verifier) checkCounterparty(client chain.ClientState, req Request) error {
	if client.ChainID != req.DstChainID {
		return &ChainMismatchError{
			PortID:          req.PortID,
			ChannelID:       req.ChannelID,
			SrcChainID:      req.SrcChainID,
			ActualChainID:   client.ChainID,
			ExpectedChainID: req.DstChainID,
		}
	}

	if client.Frozen {
		return &FrozenClientError{ClientID: client.ClientID, ChainID: client.ChainID}
	}

	return nil
}
