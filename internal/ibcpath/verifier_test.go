package ibcpath

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/manifest-network/ibcsend/internal/chain"
	"github.com/manifest-network/ibcsend/internal/chain/chaintest"
)

var request = Request{
	SrcChainID: "chain-a",
	DstChainID: "chain-b",
	PortID:     "transfer",
	ChannelID:  "channel-0",
}

func openChannel(hops ...string) chain.ChannelEnd {
	return chain.ChannelEnd{
		PortID:         "transfer",
		ChannelID:      "channel-0",
		State:          chain.StateOpen,
		ConnectionHops: hops,
	}
}

func TestVerifySuccess(t *testing.T) {
	src := chaintest.NewHandle("chain-a")
	src.On("QueryChannel", mock.Anything, "transfer", "channel-0").Return(openChannel("connection-0", "connection-9"), nil).Once()
	src.On("QueryConnection", mock.Anything, "connection-0").Return(chain.ConnectionEnd{ID: "connection-0", ClientID: "07-tendermint-0", State: chain.StateOpen}, nil).Once()
	src.On("QueryClientState", mock.Anything, "07-tendermint-0").Return(chain.ClientState{ClientID: "07-tendermint-0", ChainID: "chain-b"}, nil).Once()

	err := NewVerifier(nil).Verify(context.Background(), src, request)
	require.NoError(t, err)
	assert.Equal(t, "ok", Reason(err))
	src.AssertExpectations(t)
}

func TestVerifyChannelNotOpen(t *testing.T) {
	for _, state := range []chain.State{chain.StateClosed, chain.StateInit, chain.StateTryOpen, chain.StateUninitialized} {
		t.Run(state.String(), func(t *testing.T) {
			src := chaintest.NewHandle("chain-a")
			channel := openChannel("connection-0")
			channel.State = state
			src.On("QueryChannel", mock.Anything, "transfer", "channel-0").Return(channel, nil).Once()

			err := NewVerifier(nil).Verify(context.Background(), src, request)

			var notOpen *ChannelNotOpenError
			require.ErrorAs(t, err, &notOpen)
			assert.Equal(t, state, notOpen.State)
			assert.Contains(t, err.Error(), "'transfer'/'channel-0'")
			assert.Contains(t, err.Error(), "chain id 'chain-a'")
			assert.Contains(t, err.Error(), "in state '"+state.String()+"'")
			assert.Equal(t, "channel_not_open", Reason(err))
			src.AssertNotCalled(t, "QueryConnection", mock.Anything, mock.Anything)
			src.AssertNotCalled(t, "QueryClientState", mock.Anything, mock.Anything)
		})
	}
}

func TestVerifyEmptyHops(t *testing.T) {
	src := chaintest.NewHandle("chain-a")
	src.On("QueryChannel", mock.Anything, "transfer", "channel-0").Return(openChannel(), nil).Once()

	err := NewVerifier(nil).Verify(context.Background(), src, request)

	var noHop *MissingConnectionHopError
	require.ErrorAs(t, err, &noHop)
	assert.Equal(t, "could not retrieve the connection hop underlying port/channel 'transfer'/'channel-0' on chain 'chain-a'", err.Error())
	assert.Equal(t, "no_hop", Reason(err))
	src.AssertNotCalled(t, "QueryConnection", mock.Anything, mock.Anything)
}

func TestVerifyChainMismatch(t *testing.T) {
	src := chaintest.NewHandle("chain-a")
	src.On("QueryChannel", mock.Anything, "transfer", "channel-0").Return(openChannel("connection-0"), nil).Once()
	src.On("QueryConnection", mock.Anything, "connection-0").Return(chain.ConnectionEnd{ID: "connection-0", ClientID: "07-tendermint-3"}, nil).Once()
	src.On("QueryClientState", mock.Anything, "07-tendermint-3").Return(chain.ClientState{ClientID: "07-tendermint-3", ChainID: "chain-c"}, nil).Once()

	err := NewVerifier(nil).Verify(context.Background(), src, request)

	var mismatch *ChainMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "chain-c", mismatch.ActualChainID)
	assert.Equal(t, "chain-b", mismatch.ExpectedChainID)
	assert.Contains(t, err.Error(), "from chain 'chain-a' to chain 'chain-c' (not to the destination chain 'chain-b')")
	assert.Equal(t, "mismatch", Reason(err))
	src.AssertExpectations(t)
}

func TestVerifyFrozenClient(t *testing.T) {
	src := chaintest.NewHandle("chain-a")
	src.On("QueryChannel", mock.Anything, "transfer", "channel-0").Return(openChannel("connection-0"), nil).Once()
	src.On("QueryConnection", mock.Anything, "connection-0").Return(chain.ConnectionEnd{ID: "connection-0", ClientID: "07-tendermint-0"}, nil).Once()
	src.On("QueryClientState", mock.Anything, "07-tendermint-0").Return(chain.ClientState{ClientID: "07-tendermint-0", ChainID: "chain-b", Frozen: true}, nil).Once()

	err := NewVerifier(nil).Verify(context.Background(), src, request)

	var frozen *FrozenClientError
	require.ErrorAs(t, err, &frozen)
	assert.Equal(t, "client '07-tendermint-0' tracking chain 'chain-b' is frozen", err.Error())
	assert.Equal(t, "frozen", Reason(err))
}

func TestVerifyQueryErrors(t *testing.T) {
	boom := errors.New("node unreachable")

	cases := []struct {
		name     string
		setup    func(h *chaintest.Handle)
		wantStep Step
	}{
		{
			name: "channel",
			setup: func(h *chaintest.Handle) {
				h.On("QueryChannel", mock.Anything, "transfer", "channel-0").Return(chain.ChannelEnd{}, boom).Once()
			},
			wantStep: StepChannel,
		},
		{
			name: "connection",
			setup: func(h *chaintest.Handle) {
				h.On("QueryChannel", mock.Anything, "transfer", "channel-0").Return(openChannel("connection-0"), nil).Once()
				h.On("QueryConnection", mock.Anything, "connection-0").Return(chain.ConnectionEnd{}, boom).Once()
			},
			wantStep: StepConnection,
		},
		{
			name: "client state",
			setup: func(h *chaintest.Handle) {
				h.On("QueryChannel", mock.Anything, "transfer", "channel-0").Return(openChannel("connection-0"), nil).Once()
				h.On("QueryConnection", mock.Anything, "connection-0").Return(chain.ConnectionEnd{ID: "connection-0", ClientID: "07-tendermint-0"}, nil).Once()
				h.On("QueryClientState", mock.Anything, "07-tendermint-0").Return(chain.ClientState{}, boom).Once()
			},
			wantStep: StepClient,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			src := chaintest.NewHandle("chain-a")
			tc.setup(src)

			err := NewVerifier(nil).Verify(context.Background(), src, request)

			var qErr *QueryError
			require.ErrorAs(t, err, &qErr)
			assert.Equal(t, tc.wantStep, qErr.Step)
			assert.ErrorIs(t, err, boom)
			assert.Equal(t, "query_error", Reason(err))
			src.AssertExpectations(t)
		})
	}
}

func TestReasonUnknown(t *testing.T) {
	assert.Equal(t, "error", Reason(errors.New("something else")))
}
