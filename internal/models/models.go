package models

// Attribute is a single key/value pair of a ledger event.
type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Event represents a ledger event emitted by a transaction, e.g. send_packet.
// Attributes keep the order in which the chain emitted them.
type Event struct {
	Type       string      `json:"type"`
	Attributes []Attribute `json:"attributes"`
	TxHash     string      `json:"tx_hash"`
	Height     int64       `json:"height"`
}

// Attribute returns the value of the first attribute named key.
func (e Event) Attribute(key string) (string, bool) {
	for _, a := range e.Attributes {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}

// TxResult is the committed outcome of one broadcast transaction.
type TxResult struct {
	TxHash string
	Height int64
	Code   uint32
	RawLog string
	Events []Event
}
