package transfer

import (
	"errors"
	"fmt"
	"math"
	"time"

	sdkmath "cosmossdk.io/math"
	host "github.com/cosmos/ibc-go/v8/modules/core/24-host"
	"github.com/go-playground/validator/v10"

	"github.com/manifest-network/ibcsend/internal/config"
	"github.com/manifest-network/ibcsend/internal/ibcpath"
)

// DefaultDenom is the token sent when no denomination is given.
const DefaultDenom = "samoleans"

// MaxTimeoutSeconds is the largest timeout in seconds representable as a time.Duration.
const MaxTimeoutSeconds = uint64(math.MaxInt64 / int64(time.Second))

var validate = validator.New()

// ErrZeroMessages is returned when an explicit message count of zero is requested.
var ErrZeroMessages = errors.New("number of messages should be greater than zero")

// RawOptions are the transfer arguments as given by the user. Pointer fields are nil when
// the argument was omitted.
type RawOptions struct {
	SrcChainID          string `validate:"required"`
	DstChainID          string `validate:"required"`
	SrcPortID           string `validate:"required"`
	SrcChannelID        string `validate:"required"`
	Amount              string `validate:"required"`
	TimeoutHeightOffset uint64
	TimeoutSeconds      uint64
	Receiver            *string
	Denom               string
	NumberMsgs          *int
	KeyName             *string
}

// Options is a validated transfer request. It is built once by ValidateOptions and not
// modified afterwards.
type Options struct {
	SrcChainID          string
	DstChainID          string
	SrcPortID           string
	SrcChannelID        string
	Amount              sdkmath.Int
	Denom               string
	Receiver            *string
	TimeoutHeightOffset uint64
	TimeoutDuration     time.Duration
	NumberMsgs          int
	KeyName             string
}

// PathRequest returns the channel the options travel over, for path verification.
func (o Options) PathRequest() ibcpath.Request {
	return ibcpath.Request{
		SrcChainID: o.SrcChainID,
		DstChainID: o.DstChainID,
		PortID:     o.SrcPortID,
		ChannelID:  o.SrcChannelID,
	}
}

// ValidateOptions checks raw against cfg and fills in defaults. It performs no I/O and does
// not modify cfg; any key-name override must already be merged into cfg.
func ValidateOptions(raw RawOptions, cfg *config.Config) (Options, error) {
	if err := validate.Struct(raw); err != nil {
		return Options{}, fmt.Errorf("invalid transfer arguments: %w", err)
	}

	srcCfg, ok := cfg.FindChain(raw.SrcChainID)
	if !ok {
		return Options{}, &config.MissingChainError{Side: config.SideSource, ChainID: raw.SrcChainID}
	}
	if _, ok := cfg.FindChain(raw.DstChainID); !ok {
		return Options{}, &config.MissingChainError{Side: config.SideDestination, ChainID: raw.DstChainID}
	}

	numberMsgs := 1
	if raw.NumberMsgs != nil {
		numberMsgs = *raw.NumberMsgs
	}
	if numberMsgs <= 0 {
		return Options{}, ErrZeroMessages
	}

	amount, err := parseAmount(raw.Amount)
	if err != nil {
		return Options{}, err
	}

	if err := host.PortIdentifierValidator(raw.SrcPortID); err != nil {
		return Options{}, fmt.Errorf("invalid source port '%s': %w", raw.SrcPortID, err)
	}
	if err := host.ChannelIdentifierValidator(raw.SrcChannelID); err != nil {
		return Options{}, fmt.Errorf("invalid source channel '%s': %w", raw.SrcChannelID, err)
	}

	if raw.TimeoutSeconds > MaxTimeoutSeconds {
		return Options{}, fmt.Errorf("invalid timeout of %d seconds: must not exceed %d", raw.TimeoutSeconds, MaxTimeoutSeconds)
	}

	denom := raw.Denom
	if denom == "" {
		denom = DefaultDenom
	}

	var receiver *string
	if raw.Receiver != nil {
		r := *raw.Receiver
		receiver = &r
	}

	return Options{
		SrcChainID:          raw.SrcChainID,
		DstChainID:          raw.DstChainID,
		SrcPortID:           raw.SrcPortID,
		SrcChannelID:        raw.SrcChannelID,
		Amount:              amount,
		Denom:               denom,
		Receiver:            receiver,
		TimeoutHeightOffset: raw.TimeoutHeightOffset,
		TimeoutDuration:     time.Duration(raw.TimeoutSeconds) * time.Second,
		NumberMsgs:          numberMsgs,
		KeyName:             srcCfg.KeyName,
	}, nil
}

func parseAmount(s string) (sdkmath.Int, error) {
	amount, ok := sdkmath.NewIntFromString(s)
	if !ok || amount.IsNegative() {
		return sdkmath.Int{}, fmt.Errorf("invalid amount '%s': expected a non-negative integer", s)
	}
	return amount, nil
}
