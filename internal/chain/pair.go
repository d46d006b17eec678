package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/manifest-network/ibcsend/internal/config"
)

// DialFunc creates a handle for one configured chain.
type DialFunc func(ctx context.Context, cfg config.ChainConfig) (Handle, error)

// DialGRPC is the default DialFunc.
func DialGRPC(ctx context.Context, cfg config.ChainConfig) (Handle, error) {
	h, err := NewGRPCHandle(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return h, nil
}

// Pair holds the handles of the two ends of a transfer.
type Pair struct {
	Src Handle
	Dst Handle
}

// SpawnPair creates handles for the source and destination chains concurrently. If either
// fails, the one that succeeded is closed before returning.
func SpawnPair(ctx context.Context, cfg *config.Config, srcID, dstID string, dial DialFunc) (*Pair, error) {
	srcCfg, ok := cfg.FindChain(srcID)
	if !ok {
		return nil, &config.MissingChainError{Side: config.SideSource, ChainID: srcID}
	}
	dstCfg, ok := cfg.FindChain(dstID)
	if !ok {
		return nil, &config.MissingChainError{Side: config.SideDestination, ChainID: dstID}
	}

	var pair Pair
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		h, err := dial(egCtx, *srcCfg)
		if err != nil {
			return fmt.Errorf("failed to spawn handle for source chain '%s': %w", srcID, err)
		}
		pair.Src = h
		return nil
	})
	eg.Go(func() error {
		h, err := dial(egCtx, *dstCfg)
		if err != nil {
			return fmt.Errorf("failed to spawn handle for destination chain '%s': %w", dstID, err)
		}
		pair.Dst = h
		return nil
	})

	if err := eg.Wait(); err != nil {
		if closeErr := pair.Close(); closeErr != nil {
			slog.Warn("Failed to close chain handle", "error", closeErr)
		}
		return nil, err
	}

	return &pair, nil
}

// Close closes whichever handles are set.
func (p *Pair) Close() error {
	var errs []error
	if p.Src != nil {
		errs = append(errs, p.Src.Close())
	}
	if p.Dst != nil {
		errs = append(errs, p.Dst.Close())
	}
	return errors.Join(errs...)
}
