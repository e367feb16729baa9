package persistenceTypes

import (
	"strconv"
	"strings"

	"github.com/mailru/easyjson"
)

//easyjson:json
type ExchangeRecord struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Durable    bool   `json:"durable"`
	AutoDelete bool   `json:"auto_delete"`
	Args       string `json:"args"`
}

//easyjson:json
type QueueRecord struct {
	Name       string `json:"name"`
	Durable    bool   `json:"durable"`
	Exclusive  bool   `json:"exclusive"`
	AutoDelete bool   `json:"auto_delete"`
	Args       string `json:"args"`
}

//easyjson:json
type BindingRecord struct {
	Exchange   string `json:"exchange"`
	Queue      string `json:"queue"`
	BindingKey string `json:"binding_key"`
}

//easyjson:json
type MessageRecord struct {
	ID           string `json:"id"`
	DeliveryMode uint8  `json:"delivery_mode"`
	RoutingKey   string `json:"routing_key"`
	Queue        string `json:"queue"`
	Seq          uint64 `json:"seq"`
	Body         []byte `json:"body"`
}

// keySep never appears in exchange and queue names
const keySep = "\x00"

// Key of exchange record
func (r *ExchangeRecord) Key() []byte {
	return []byte(r.Name)
}

// Key of queue record
func (r *QueueRecord) Key() []byte {
	return []byte(r.Name)
}

// Key of binding record
func (r *BindingRecord) Key() []byte {
	return []byte(r.Exchange + keySep + r.Queue + keySep + r.BindingKey)
}

// ParseBindingKey splits key produced by BindingRecord.Key
func ParseBindingKey(key []byte) (BindingRecord, error) {
	parts := strings.SplitN(string(key), keySep, 3)
	if len(parts) != 3 {
		return BindingRecord{}, ErrBrokenEntry
	}

	return BindingRecord{Exchange: parts[0], Queue: parts[1], BindingKey: parts[2]}, nil
}

// MessageKey builds key of message record
// Sequence is zero padded so keys of one queue iterate in publish order
func MessageKey(queue string, seq uint64, id string) []byte {
	return []byte(queue + keySep + pad(seq) + keySep + id)
}

// MessagePrefix all messages of queue share this prefix
// and no message of another queue does
func MessagePrefix(queue string) []byte {
	return []byte(queue + keySep)
}

// Key of message record
func (r *MessageRecord) Key() []byte {
	return MessageKey(r.Queue, r.Seq, r.ID)
}

func pad(v uint64) string {
	s := strconv.FormatUint(v, 10)
	if len(s) < 20 {
		s = strings.Repeat("0", 20-len(s)) + s
	}

	return s
}

// Encode record into stored value
func Encode(v easyjson.Marshaler) ([]byte, error) {
	return easyjson.Marshal(v)
}

// Decode stored value into record
func Decode(data []byte, v easyjson.Unmarshaler) error {
	if err := easyjson.Unmarshal(data, v); err != nil {
		return ErrBrokenEntry
	}

	return nil
}
