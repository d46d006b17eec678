// Package broadcast signs transactions with a local keyring and submits them to a Cosmos SDK
// chain, waiting until they are committed.
package broadcast

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/cosmos/cosmos-sdk/client"
	"github.com/cosmos/cosmos-sdk/client/flags"
	"github.com/cosmos/cosmos-sdk/client/tx"
	"github.com/cosmos/cosmos-sdk/crypto/keyring"
	sdk "github.com/cosmos/cosmos-sdk/types"
	moduletestutil "github.com/cosmos/cosmos-sdk/types/module/testutil"
	"github.com/cosmos/cosmos-sdk/types/tx/signing"
	"github.com/cosmos/cosmos-sdk/x/auth"
	authtx "github.com/cosmos/cosmos-sdk/x/auth/tx"
	authtypes "github.com/cosmos/cosmos-sdk/x/auth/types"
	"github.com/cosmos/ibc-go/v8/modules/apps/transfer"
	"google.golang.org/grpc"

	"github.com/manifest-network/ibcsend/internal/chain"
	"github.com/manifest-network/ibcsend/internal/config"
	"github.com/manifest-network/ibcsend/internal/models"
	ibctransfer "github.com/manifest-network/ibcsend/internal/transfer"
)

const (
	inclusionTimeout = 60 * time.Second
	pollInterval     = time.Second
)

func makeEncodingConfig() moduletestutil.TestEncodingConfig {
	return moduletestutil.MakeTestEncodingConfig(auth.AppModuleBasic{}, transfer.AppModuleBasic{})
}

// TxBroadcaster signs with one key of the local keyring and broadcasts over the chain's
// CometBFT RPC endpoint. Account data and gas simulation go through gRPC.
type TxBroadcaster struct {
	cfg     config.ChainConfig
	keyName string
	address string

	encCfg    moduletestutil.TestEncodingConfig
	keyring   keyring.Keyring
	conn      *grpc.ClientConn
	accounts  authtypes.QueryClient
	clientCtx client.Context

	// Progress receives the inclusion spinner; defaults to stderr.
	Progress io.Writer
}

var _ ibctransfer.Broadcaster = (*TxBroadcaster)(nil)

// New creates a broadcaster for the chain described by cfg, signing with keyName.
func New(cfg config.ChainConfig, keyName string, conn *grpc.ClientConn) (*TxBroadcaster, error) {
	if cfg.RPCAddr == "" {
		return nil, fmt.Errorf("chain '%s' has no rpc_addr configured", cfg.ID)
	}

	encCfg := makeEncodingConfig()
	kr, err := OpenKeyring(cfg, encCfg.Codec)
	if err != nil {
		return nil, err
	}
	address, err := keyAddress(kr, keyName, cfg.AccountPrefix)
	if err != nil {
		return nil, err
	}

	rpc, err := client.NewClientFromNode(cfg.RPCAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to create RPC client for %s: %w", cfg.RPCAddr, err)
	}

	clientCtx := client.Context{}.
		WithClient(rpc).
		WithChainID(cfg.ID).
		WithCodec(encCfg.Codec).
		WithInterfaceRegistry(encCfg.InterfaceRegistry).
		WithTxConfig(encCfg.TxConfig).
		WithKeyring(kr).
		WithFromName(keyName).
		WithBroadcastMode(flags.BroadcastSync)

	return &TxBroadcaster{
		cfg:       cfg,
		keyName:   keyName,
		address:   address,
		encCfg:    encCfg,
		keyring:   kr,
		conn:      conn,
		accounts:  authtypes.NewQueryClient(conn),
		clientCtx: clientCtx,
		Progress:  os.Stderr,
	}, nil
}

// ForHandle creates a broadcaster sharing the gRPC connection of a chain handle.
func ForHandle(_ context.Context, h chain.Handle, keyName string) (ibctransfer.Broadcaster, error) {
	withConn, ok := h.(interface{ Conn() *grpc.ClientConn })
	if !ok {
		return nil, fmt.Errorf("chain handle for '%s' does not expose a gRPC connection", h.ChainID())
	}
	b, err := New(h.Config(), keyName, withConn.Conn())
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (b *TxBroadcaster) Address() string {
	return b.address
}

// Broadcast signs msgs into a single transaction, submits it in sync mode and waits for it to
// be committed. A transaction rejected by CheckTx is returned with its non-zero code.
func (b *TxBroadcaster) Broadcast(ctx context.Context, msgs ...sdk.Msg) (models.TxResult, error) {
	acc, err := b.account(ctx)
	if err != nil {
		return models.TxResult{}, err
	}

	txf := b.factory(acc)
	if b.cfg.DefaultGas == 0 {
		_, gas, err := tx.CalculateGas(b.conn, txf, msgs...)
		if err != nil {
			return models.TxResult{}, fmt.Errorf("failed to simulate transaction: %w", err)
		}
		txf = txf.WithGas(gas)
	}

	txb, err := txf.BuildUnsignedTx(msgs...)
	if err != nil {
		return models.TxResult{}, fmt.Errorf("failed to build transaction: %w", err)
	}
	if err := tx.Sign(ctx, txf, b.keyName, txb, true); err != nil {
		return models.TxResult{}, fmt.Errorf("failed to sign transaction with key '%s': %w", b.keyName, err)
	}
	txBytes, err := b.encCfg.TxConfig.TxEncoder()(txb.GetTx())
	if err != nil {
		return models.TxResult{}, fmt.Errorf("failed to encode transaction: %w", err)
	}

	res, err := b.clientCtx.BroadcastTxSync(txBytes)
	if err != nil {
		return models.TxResult{}, fmt.Errorf("failed to broadcast transaction: %w", err)
	}
	if res.Code != 0 {
		return txResult(res), nil
	}
	slog.Debug("Transaction accepted", "chain", b.cfg.ID, "tx", res.TxHash, "gas", txf.Gas())

	var committed *sdk.TxResponse
	err = waitFor(ctx, b.Progress, "Waiting for tx "+res.TxHash, inclusionTimeout, pollInterval, func(context.Context) (bool, error) {
		resp, err := authtx.QueryTx(b.clientCtx, res.TxHash)
		if err != nil {
			return false, nil
		}
		committed = resp
		return true, nil
	})
	if err != nil {
		return models.TxResult{}, fmt.Errorf("transaction %s was not committed: %w", res.TxHash, err)
	}

	return txResult(committed), nil
}

func (b *TxBroadcaster) account(ctx context.Context) (sdk.AccountI, error) {
	resp, err := b.accounts.Account(ctx, &authtypes.QueryAccountRequest{Address: b.address})
	if err != nil {
		return nil, fmt.Errorf("failed to query account %s on chain '%s': %w", b.address, b.cfg.ID, err)
	}

	var acc sdk.AccountI
	if err := b.encCfg.InterfaceRegistry.UnpackAny(resp.Account, &acc); err != nil {
		return nil, fmt.Errorf("failed to decode account %s: %w", b.address, err)
	}
	return acc, nil
}

func (b *TxBroadcaster) factory(acc sdk.AccountI) tx.Factory {
	adjustment := b.cfg.GasMultiplier
	if adjustment == 0 {
		adjustment = 1
	}

	return tx.Factory{}.
		WithTxConfig(b.encCfg.TxConfig).
		WithKeybase(b.keyring).
		WithChainID(b.cfg.ID).
		WithAccountNumber(acc.GetAccountNumber()).
		WithSequence(acc.GetSequence()).
		WithSignMode(signing.SignMode_SIGN_MODE_DIRECT).
		WithGas(b.cfg.DefaultGas).
		WithGasAdjustment(adjustment).
		WithGasPrices(b.cfg.GasPrice.String()).
		WithFromName(b.keyName).
		WithSimulateAndExecute(b.cfg.DefaultGas == 0)
}
