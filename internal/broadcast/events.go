package broadcast

import (
	abci "github.com/cometbft/cometbft/abci/types"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/manifest-network/ibcsend/internal/models"
)

func txResult(resp *sdk.TxResponse) models.TxResult {
	return models.TxResult{
		TxHash: resp.TxHash,
		Height: resp.Height,
		Code:   resp.Code,
		RawLog: resp.RawLog,
		Events: convertEvents(resp.Events, resp.TxHash, resp.Height),
	}
}

func convertEvents(events []abci.Event, txHash string, height int64) []models.Event {
	out := make([]models.Event, 0, len(events))
	for _, ev := range events {
		attrs := make([]models.Attribute, 0, len(ev.Attributes))
		for _, a := range ev.Attributes {
			attrs = append(attrs, models.Attribute{Key: a.Key, Value: a.Value})
		}
		out = append(out, models.Event{
			Type:       ev.Type,
			Attributes: attrs,
			TxHash:     txHash,
			Height:     height,
		})
	}
	return out
}
