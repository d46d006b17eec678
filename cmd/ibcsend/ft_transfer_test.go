package ibcsend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/manifest-network/ibcsend/internal/chain"
	"github.com/manifest-network/ibcsend/internal/chain/chaintest"
	"github.com/manifest-network/ibcsend/internal/config"
	"github.com/manifest-network/ibcsend/internal/metrics"
	"github.com/manifest-network/ibcsend/internal/models"
	"github.com/manifest-network/ibcsend/internal/output"
	"github.com/manifest-network/ibcsend/internal/transfer"
)

const testConfig = `
[global]
log_level = "info"

[[chains]]
id = "ibc-0"
rpc_addr = "http://127.0.0.1:26657"
grpc_addr = "127.0.0.1:9090"
account_prefix = "cosmos"
key_name = "testkey"

[[chains]]
id = "ibc-1"
rpc_addr = "http://127.0.0.1:26667"
grpc_addr = "127.0.0.1:9091"
account_prefix = "cosmos"
key_name = "receiverkey"
`

var sendPacket = models.Event{
	Type:   "send_packet",
	TxHash: "ABCD",
	Height: 12,
	Attributes: []models.Attribute{
		{Key: "packet_sequence", Value: "1"},
	},
}

type mockDispatcher struct {
	mock.Mock
}

func (m *mockDispatcher) Dispatch(ctx context.Context, src, dst chain.Handle, opts transfer.Options) ([]models.Event, error) {
	args := m.Called(ctx, src, dst, opts)
	events, _ := args.Get(0).([]models.Event)
	return events, args.Error(1)
}

type harness struct {
	app        *app
	stdout     *bytes.Buffer
	stderr     *bytes.Buffer
	configPath string
	src        *chaintest.Handle
	dst        *chaintest.Handle
	dispatcher *mockDispatcher
	dials      atomic.Int32
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		stdout:     &bytes.Buffer{},
		stderr:     &bytes.Buffer{},
		configPath: filepath.Join(t.TempDir(), "config.toml"),
		src:        chaintest.NewHandle("ibc-0"),
		dst:        chaintest.NewHandle("ibc-1"),
		dispatcher: &mockDispatcher{},
	}
	require.NoError(t, os.WriteFile(h.configPath, []byte(testConfig), 0o600))

	h.app = newApp(h.stdout, h.stderr)
	h.app.dial = func(_ context.Context, cfg config.ChainConfig) (chain.Handle, error) {
		h.dials.Add(1)
		switch cfg.ID {
		case "ibc-0":
			h.src.Cfg = cfg
			return h.src, nil
		case "ibc-1":
			h.dst.Cfg = cfg
			return h.dst, nil
		default:
			return nil, fmt.Errorf("no test handle for chain '%s'", cfg.ID)
		}
	}
	h.app.newDispatcher = func(*slog.Logger) transfer.Dispatcher {
		return h.dispatcher
	}
	return h
}

// expectPath makes the source chain report channel-0 as an open channel whose client tracks
// trackedChainID.
func (h *harness) expectPath(trackedChainID string) {
	h.src.On("QueryChannel", mock.Anything, "transfer", "channel-0").Return(chain.ChannelEnd{
		PortID:         "transfer",
		ChannelID:      "channel-0",
		State:          chain.StateOpen,
		ConnectionHops: []string{"connection-0"},
	}, nil)
	h.src.On("QueryConnection", mock.Anything, "connection-0").Return(chain.ConnectionEnd{
		ID:       "connection-0",
		ClientID: "07-tendermint-0",
		State:    chain.StateOpen,
	}, nil)
	h.src.On("QueryClientState", mock.Anything, "07-tendermint-0").Return(chain.ClientState{
		ClientID: "07-tendermint-0",
		ChainID:  trackedChainID,
	}, nil)
}

func (h *harness) run(args ...string) int {
	full := append([]string{"--config", h.configPath}, args...)
	return run(context.Background(), h.app, full)
}

func transferArgs(extra ...string) []string {
	args := []string{
		"tx", "ft-transfer",
		"--dst-chain", "ibc-1",
		"--src-chain", "ibc-0",
		"--src-port", "transfer",
		"--src-chan", "channel-0",
		"--amount", "42",
		"--timeout-height-offset", "10",
	}
	return append(args, extra...)
}

func TestFtTransferSuccess(t *testing.T) {
	h := newHarness(t)
	h.expectPath("ibc-1")

	var got transfer.Options
	h.dispatcher.On("Dispatch", mock.Anything, h.src, h.dst, mock.Anything).
		Run(func(args mock.Arguments) { got = args.Get(3).(transfer.Options) }).
		Return([]models.Event{sendPacket}, nil).Once()

	code := h.run(transferArgs()...)

	assert.Equal(t, output.ExitSuccess, code)
	assert.Equal(t, "SUCCESS 1 event(s)\n  send_packet height=12 tx=ABCD packet_sequence=1\n", h.stdout.String())
	h.dispatcher.AssertExpectations(t)
	h.dispatcher.AssertNumberOfCalls(t, "Dispatch", 1)

	assert.True(t, got.Amount.Equal(sdkmath.NewInt(42)))
	assert.Equal(t, "samoleans", got.Denom)
	assert.Equal(t, 1, got.NumberMsgs)
	assert.Equal(t, "testkey", got.KeyName)
	assert.Equal(t, "channel-0", got.SrcChannelID)
	assert.Equal(t, uint64(10), got.TimeoutHeightOffset)
	assert.Nil(t, got.Receiver)

	assert.Equal(t, 1.0, testutil.ToFloat64(h.app.recorder.PathVerifications.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.app.recorder.Transfers.WithLabelValues(metrics.ResultSuccess)))
}

func TestFtTransferJSON(t *testing.T) {
	h := newHarness(t)
	h.expectPath("ibc-1")
	h.dispatcher.On("Dispatch", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]models.Event{sendPacket}, nil).Once()

	code := h.run(append([]string{"--json"}, transferArgs("--src-channel", "channel-0")...)...)
	require.Equal(t, output.ExitSuccess, code)

	var got struct {
		Status string         `json:"status"`
		Result []models.Event `json:"result"`
	}
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &got))
	assert.Equal(t, "success", got.Status)
	assert.Equal(t, []models.Event{sendPacket}, got.Result)
}

func TestFtTransferOptionalFlags(t *testing.T) {
	h := newHarness(t)
	h.expectPath("ibc-1")

	var got transfer.Options
	h.dispatcher.On("Dispatch", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { got = args.Get(3).(transfer.Options) }).
		Return([]models.Event{}, nil).Once()

	code := h.run(transferArgs(
		"--key-name", "otherkey",
		"--receiver", "cosmos1receiver",
		"--denom", "uatom",
		"--number-msgs", "3",
		"--timeout-seconds", "60",
	)...)
	require.Equal(t, output.ExitSuccess, code, h.stdout.String())

	assert.Equal(t, "otherkey", got.KeyName)
	require.NotNil(t, got.Receiver)
	assert.Equal(t, "cosmos1receiver", *got.Receiver)
	assert.Equal(t, "uatom", got.Denom)
	assert.Equal(t, 3, got.NumberMsgs)
	assert.Equal(t, "1m0s", got.TimeoutDuration.String())
	assert.Equal(t, "otherkey", h.src.Cfg.KeyName)
}

func TestFtTransferFailures(t *testing.T) {
	cases := []struct {
		name      string
		args      []string
		tracked   string
		dispatch  error
		wantOut   string
		wantDials int32
		dispatch1 bool
	}{
		{
			name:    "zero messages",
			args:    transferArgs("--number-msgs", "0"),
			wantOut: "ERROR number of messages should be greater than zero\n",
		},
		{
			name:    "unknown source chain",
			args:    append(transferArgs(), "--src-chain", "ibc-5"),
			wantOut: "ERROR missing configuration for source chain 'ibc-5'\n",
		},
		{
			name:    "unknown destination chain",
			args:    append(transferArgs(), "--dst-chain", "ibc-5"),
			wantOut: "ERROR missing configuration for destination chain 'ibc-5'\n",
		},
		{
			name:    "key name override on unknown chain",
			args:    append(transferArgs("--key-name", "otherkey"), "--src-chain", "ibc-5"),
			wantOut: "ERROR missing configuration for source chain 'ibc-5'\n",
		},
		{
			name:      "destination mismatch",
			args:      transferArgs(),
			tracked:   "ibc-9",
			wantOut:   "ERROR the requested port/channel ('transfer'/'channel-0') provides a path from chain 'ibc-0' to chain 'ibc-9' (not to the destination chain 'ibc-1'). Bailing due to mismatching arguments.\n",
			wantDials: 2,
		},
		{
			name:      "dispatch error passed through",
			args:      transferArgs(),
			tracked:   "ibc-1",
			dispatch:  errors.New("insufficient funds"),
			wantOut:   "ERROR insufficient funds\n",
			wantDials: 2,
			dispatch1: true,
		},
		{
			name:    "missing required flag",
			args:    []string{"tx", "ft-transfer", "--dst-chain", "ibc-1", "--src-chain", "ibc-0", "--src-port", "transfer", "--src-chan", "channel-0"},
			wantOut: "ERROR required flag(s) \"amount\" not set\n",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			if tc.tracked != "" {
				h.expectPath(tc.tracked)
			}
			if tc.dispatch1 {
				h.dispatcher.On("Dispatch", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
					Return(nil, tc.dispatch).Once()
			}

			code := h.run(tc.args...)

			assert.Equal(t, output.ExitFailure, code)
			assert.Equal(t, tc.wantOut, h.stdout.String())
			assert.Equal(t, tc.wantDials, h.dials.Load())
			if tc.dispatch1 {
				h.dispatcher.AssertNumberOfCalls(t, "Dispatch", 1)
			} else {
				h.dispatcher.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			}
		})
	}
}

func TestFtTransferMismatchMetrics(t *testing.T) {
	h := newHarness(t)
	h.expectPath("ibc-9")

	require.Equal(t, output.ExitFailure, h.run(transferArgs()...))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.app.recorder.PathVerifications.WithLabelValues("mismatch")))
	assert.Equal(t, 0, testutil.CollectAndCount(h.app.recorder.Transfers))
}

func TestInvalidLogLevel(t *testing.T) {
	h := newHarness(t)

	code := h.run(append([]string{"--logLevel", "loud"}, transferArgs()...)...)
	assert.Equal(t, output.ExitFailure, code)
	assert.Contains(t, h.stdout.String(), "ERROR invalid log level 'loud'")
	assert.Equal(t, int32(0), h.dials.Load())
}
