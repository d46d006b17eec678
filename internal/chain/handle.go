package chain

import (
	"context"

	"github.com/manifest-network/ibcsend/internal/config"
)

// Handle is a read-only view of a single chain. Every query runs against the latest height;
// retries and timeouts are the handle's business, not the caller's.
type Handle interface {
	// ChainID returns the id the handle was configured for.
	ChainID() string

	// Config returns the chain configuration the handle was created from.
	Config() config.ChainConfig

	QueryChannel(ctx context.Context, portID, channelID string) (ChannelEnd, error)
	QueryConnection(ctx context.Context, connectionID string) (ConnectionEnd, error)
	QueryClientState(ctx context.Context, clientID string) (ClientState, error)

	// LatestBlock returns the height and time of the latest committed block.
	LatestBlock(ctx context.Context) (BlockInfo, error)

	Close() error
}
