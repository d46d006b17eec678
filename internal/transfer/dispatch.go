package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	sdk "github.com/cosmos/cosmos-sdk/types"
	ibctransfertypes "github.com/cosmos/ibc-go/v8/modules/apps/transfer/types"
	clienttypes "github.com/cosmos/ibc-go/v8/modules/core/02-client/types"

	"github.com/manifest-network/ibcsend/internal/chain"
	"github.com/manifest-network/ibcsend/internal/config"
	"github.com/manifest-network/ibcsend/internal/models"
)

// ErrZeroTimeout is returned when neither a height nor a time timeout was requested.
var ErrZeroTimeout = errors.New("packet timeout height and packet timeout timestamp cannot both be 0")

// ChainIDMismatchError is returned when the node configured for the destination chain reports
// a different chain id in its latest block.
type ChainIDMismatchError struct {
	Expected string
	Actual   string
}

func (e *ChainIDMismatchError) Error() string {
	return fmt.Sprintf("node configured for destination chain '%s' reports chain id '%s'", e.Expected, e.Actual)
}

// maxTimeoutTimestamp is the latest instant whose UnixNano fits in an int64.
var maxTimeoutTimestamp = time.Unix(0, math.MaxInt64)

// Event types kept from the transfer transactions.
const (
	EventTypeSendPacket  = "send_packet"
	EventTypeIBCTransfer = "ibc_transfer"
)

// Dispatcher submits the transfer described by opts from src to dst. It is only called after
// the path has been verified.
type Dispatcher interface {
	Dispatch(ctx context.Context, src, dst chain.Handle, opts Options) ([]models.Event, error)
}

// Broadcaster signs and submits messages on the source chain with a single key.
type Broadcaster interface {
	// Address returns the bech32 address of the signing key.
	Address() string

	// Broadcast submits msgs in one transaction and waits for it to be committed.
	Broadcast(ctx context.Context, msgs ...sdk.Msg) (models.TxResult, error)
}

// BroadcasterFunc creates a broadcaster for the source chain signing with keyName.
type BroadcasterFunc func(ctx context.Context, src chain.Handle, keyName string) (Broadcaster, error)

// AddressFunc resolves the address of the configured key of a chain.
type AddressFunc func(cfg config.ChainConfig) (string, error)

// MsgDispatcher builds ICS-20 MsgTransfer messages and broadcasts them in batches.
type MsgDispatcher struct {
	NewBroadcaster BroadcasterFunc
	// ResolveAddress is used for the receiver when none was given.
	ResolveAddress AddressFunc
	Logger         *slog.Logger
}

var _ Dispatcher = (*MsgDispatcher)(nil)

func (d *MsgDispatcher) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

func (d *MsgDispatcher) Dispatch(ctx context.Context, src, dst chain.Handle, opts Options) ([]models.Event, error) {
	if opts.TimeoutHeightOffset == 0 && opts.TimeoutDuration == 0 {
		return nil, ErrZeroTimeout
	}

	receiver, err := d.receiver(dst, opts)
	if err != nil {
		return nil, err
	}

	bcast, err := d.NewBroadcaster(ctx, src, opts.KeyName)
	if err != nil {
		return nil, fmt.Errorf("failed to set up broadcaster for chain '%s': %w", src.ChainID(), err)
	}

	latest, err := dst.LatestBlock(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest block of destination chain '%s': %w", dst.ChainID(), err)
	}
	if latest.ChainID != dst.ChainID() {
		return nil, &ChainIDMismatchError{Expected: dst.ChainID(), Actual: latest.ChainID}
	}
	timeoutHeight, timeoutTimestamp, err := timeouts(dst.ChainID(), latest, opts)
	if err != nil {
		return nil, err
	}

	coin := sdk.Coin{Denom: opts.Denom, Amount: opts.Amount}
	if err := coin.Validate(); err != nil {
		return nil, fmt.Errorf("invalid token %s: %w", coin, err)
	}

	msgs := make([]sdk.Msg, 0, opts.NumberMsgs)
	for i := 0; i < opts.NumberMsgs; i++ {
		msgs = append(msgs, ibctransfertypes.NewMsgTransfer(
			opts.SrcPortID,
			opts.SrcChannelID,
			coin,
			bcast.Address(),
			receiver,
			timeoutHeight,
			timeoutTimestamp,
			"",
		))
	}

	d.logger().Debug("Dispatching transfer",
		"sender", bcast.Address(),
		"receiver", receiver,
		"token", coin.String(),
		"messages", len(msgs),
		"timeout_height", timeoutHeight.String(),
		"timeout_timestamp", timeoutTimestamp)

	var events []models.Event
	for i, batch := range batches(msgs, src.Config().MaxMsgNum) {
		res, err := bcast.Broadcast(ctx, batch...)
		if err != nil {
			return nil, fmt.Errorf("failed to broadcast batch %d on chain '%s': %w", i, src.ChainID(), err)
		}
		if res.Code != 0 {
			return nil, fmt.Errorf("transaction %s failed with code %d: %s", res.TxHash, res.Code, res.RawLog)
		}
		d.logger().Info("Transfer transaction committed", "tx", res.TxHash, "height", res.Height, "messages", len(batch))
		events = append(events, transferEvents(res)...)
	}

	return events, nil
}

func (d *MsgDispatcher) receiver(dst chain.Handle, opts Options) (string, error) {
	if opts.Receiver != nil {
		return *opts.Receiver, nil
	}
	addr, err := d.ResolveAddress(dst.Config())
	if err != nil {
		return "", fmt.Errorf("failed to resolve receiver on chain '%s': %w", dst.ChainID(), err)
	}
	return addr, nil
}

// timeouts computes the packet timeouts relative to the destination chain's latest block. A
// zero offset or duration disables the corresponding timeout. Timeouts that do not fit the
// packet fields are rejected.
func timeouts(dstChainID string, latest chain.BlockInfo, opts Options) (clienttypes.Height, uint64, error) {
	height := clienttypes.ZeroHeight()
	if opts.TimeoutHeightOffset > 0 {
		if opts.TimeoutHeightOffset > math.MaxUint64-latest.Height {
			return clienttypes.Height{}, 0, fmt.Errorf("timeout height offset %d overflows latest height %d of chain '%s'",
				opts.TimeoutHeightOffset, latest.Height, dstChainID)
		}
		height = clienttypes.NewHeight(clienttypes.ParseChainID(dstChainID), latest.Height+opts.TimeoutHeightOffset)
	}

	var timestamp uint64
	if opts.TimeoutDuration > 0 {
		deadline := latest.Time.Add(opts.TimeoutDuration)
		if deadline.After(maxTimeoutTimestamp) {
			return clienttypes.Height{}, 0, fmt.Errorf("timeout of %s after %s is out of range",
				opts.TimeoutDuration, latest.Time.Format(time.RFC3339))
		}
		timestamp = uint64(deadline.UnixNano())
	}
	return height, timestamp, nil
}

func batches(msgs []sdk.Msg, size int) [][]sdk.Msg {
	if size <= 0 {
		size = config.DefaultMaxMsgNum
	}
	out := make([][]sdk.Msg, 0, (len(msgs)+size-1)/size)
	for start := 0; start < len(msgs); start += size {
		end := min(start+size, len(msgs))
		out = append(out, msgs[start:end])
	}
	return out
}

func transferEvents(res models.TxResult) []models.Event {
	var out []models.Event
	for _, ev := range res.Events {
		if ev.Type != EventTypeSendPacket && ev.Type != EventTypeIBCTransfer {
			continue
		}
		if ev.TxHash == "" {
			ev.TxHash = res.TxHash
		}
		if ev.Height == 0 {
			ev.Height = res.Height
		}
		out = append(out, ev)
	}
	return out
}

