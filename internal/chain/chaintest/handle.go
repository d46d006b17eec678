// Package chaintest provides test doubles for chain handles.
package chaintest

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/manifest-network/ibcsend/internal/chain"
	"github.com/manifest-network/ibcsend/internal/config"
)

// Handle is a testify mock of chain.Handle. ChainID and Config are answered from Cfg so
// tests only need expectations for the queries they care about.
type Handle struct {
	mock.Mock
	Cfg config.ChainConfig
}

var _ chain.Handle = (*Handle)(nil)

// NewHandle returns a mock handle for a chain with the given id.
func NewHandle(chainID string) *Handle {
	return &Handle{Cfg: config.ChainConfig{
		ID:            chainID,
		GRPCAddr:      "127.0.0.1:9090",
		AccountPrefix: "cosmos",
		KeyName:       "testkey",
		MaxMsgNum:     config.DefaultMaxMsgNum,
	}}
}

func (h *Handle) ChainID() string {
	return h.Cfg.ID
}

func (h *Handle) Config() config.ChainConfig {
	return h.Cfg
}

func (h *Handle) QueryChannel(ctx context.Context, portID, channelID string) (chain.ChannelEnd, error) {
	args := h.Called(ctx, portID, channelID)
	return args.Get(0).(chain.ChannelEnd), args.Error(1)
}

func (h *Handle) QueryConnection(ctx context.Context, connectionID string) (chain.ConnectionEnd, error) {
	args := h.Called(ctx, connectionID)
	return args.Get(0).(chain.ConnectionEnd), args.Error(1)
}

func (h *Handle) QueryClientState(ctx context.Context, clientID string) (chain.ClientState, error) {
	args := h.Called(ctx, clientID)
	return args.Get(0).(chain.ClientState), args.Error(1)
}

func (h *Handle) LatestBlock(ctx context.Context) (chain.BlockInfo, error) {
	args := h.Called(ctx)
	return args.Get(0).(chain.BlockInfo), args.Error(1)
}

func (h *Handle) Close() error {
	return nil
}
