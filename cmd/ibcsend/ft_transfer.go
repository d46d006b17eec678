package ibcsend

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/manifest-network/ibcsend/internal/chain"
	"github.com/manifest-network/ibcsend/internal/config"
	"github.com/manifest-network/ibcsend/internal/ibcpath"
	"github.com/manifest-network/ibcsend/internal/models"
	"github.com/manifest-network/ibcsend/internal/output"
	"github.com/manifest-network/ibcsend/internal/transfer"
)

func newFtTransferCmd(a *app) *cobra.Command {
	var (
		raw        transfer.RawOptions
		receiver   string
		keyName    string
		numberMsgs int
	)

	cmd := &cobra.Command{
		Use:   "ft-transfer",
		Short: "Send fungible tokens over a channel after verifying it reaches the destination chain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if flags.Changed("receiver") {
				raw.Receiver = &receiver
			}
			if flags.Changed("number-msgs") {
				raw.NumberMsgs = &numberMsgs
			}
			if flags.Changed("key-name") {
				raw.KeyName = &keyName
			}

			reporter := output.NewReporter(a.stdout, a.jsonMode())
			cfg, events, err := a.runTransfer(cmd, raw)
			a.pushMetrics(cmd.Context(), cfg)
			if err != nil {
				return exitWith(reporter.Error(err))
			}
			return exitWith(reporter.Success(events))
		},
	}

	f := cmd.Flags()
	f.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		if name == "src-chan" {
			name = "src-channel"
		}
		return pflag.NormalizedName(name)
	})
	f.StringVar(&raw.DstChainID, "dst-chain", "", "identifier of the destination chain")
	f.StringVar(&raw.SrcChainID, "src-chain", "", "identifier of the source chain")
	f.StringVar(&raw.SrcPortID, "src-port", "", "identifier of the source port")
	f.StringVar(&raw.SrcChannelID, "src-channel", "", "identifier of the source channel (alias --src-chan)")
	f.StringVar(&raw.Amount, "amount", "", "amount of tokens to send in each transfer message")
	f.Uint64Var(&raw.TimeoutHeightOffset, "timeout-height-offset", 0, "timeout in number of blocks since the current destination height")
	f.Uint64Var(&raw.TimeoutSeconds, "timeout-seconds", 0, "timeout in seconds since the current destination block time")
	f.StringVar(&receiver, "receiver", "", "receiving account address on the destination chain (default: destination chain key)")
	f.StringVar(&raw.Denom, "denom", transfer.DefaultDenom, "denomination of the coins to send")
	f.IntVar(&numberMsgs, "number-msgs", 1, "number of transfer messages to send")
	f.StringVar(&keyName, "key-name", "", "use the given signing key instead of the source chain's configured key")

	for _, name := range []string{"dst-chain", "src-chain", "src-port", "src-channel", "amount"} {
		_ = cmd.MarkFlagRequired(name)
	}

	return cmd
}

// runTransfer validates the request, verifies the path and dispatches the transfer. The
// returned config is nil when no effective configuration could be built.
func (a *app) runTransfer(cmd *cobra.Command, raw transfer.RawOptions) (*config.Config, []models.Event, error) {
	ctx := cmd.Context()

	cfg, err := a.loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}

	if raw.KeyName != nil {
		cfg, err = cfg.WithKeyName(raw.SrcChainID, *raw.KeyName)
		if err != nil {
			return nil, nil, err
		}
	}

	opts, err := transfer.ValidateOptions(raw, cfg)
	if err != nil {
		return cfg, nil, err
	}
	slog.Debug("Validated transfer options",
		"src_chain", opts.SrcChainID,
		"dst_chain", opts.DstChainID,
		"src_port", opts.SrcPortID,
		"src_channel", opts.SrcChannelID,
		"amount", opts.Amount.String(),
		"denom", opts.Denom,
		"number_msgs", opts.NumberMsgs,
		"timeout_height_offset", opts.TimeoutHeightOffset,
		"timeout", opts.TimeoutDuration,
		"key_name", opts.KeyName)

	events, err := a.verifyAndDispatch(ctx, cfg, opts)
	return cfg, events, err
}

func (a *app) verifyAndDispatch(ctx context.Context, cfg *config.Config, opts transfer.Options) ([]models.Event, error) {
	pair, err := chain.SpawnPair(ctx, cfg, opts.SrcChainID, opts.DstChainID, a.dial)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := pair.Close(); err != nil {
			slog.Warn("Failed to close chain handles", "error", err)
		}
	}()

	logger := slog.Default()
	err = ibcpath.NewVerifier(logger).Verify(ctx, pair.Src, opts.PathRequest())
	a.recorder.ObserveVerification(ibcpath.Reason(err))
	if err != nil {
		return nil, err
	}

	start := time.Now()
	events, err := a.newDispatcher(logger).Dispatch(ctx, pair.Src, pair.Dst, opts)
	a.recorder.ObserveDispatch(time.Since(start), err)
	if err != nil {
		return nil, err
	}

	slog.Info("Transfer dispatched", "events", len(events), "duration", time.Since(start).Round(time.Millisecond))
	return events, nil
}
