package frame

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/pkg/errors"

	"github.com/VolantMQ/rabbitlite/types"
)

// MaxNameLength of exchange, queue and consumer tag
const MaxNameLength = 255

var nameLength = validation.Length(0, MaxNameLength)

// Validate checks fields required by client method.
// Exchange type and key syntax are checked by the broker itself.
func (f *Frame) Validate() error {
	var err error

	switch f.Method {
	case ExchangeDeclare:
		err = validation.ValidateStruct(f,
			validation.Field(&f.Exchange, validation.Required, nameLength),
			validation.Field(&f.ExchangeType, validation.Required),
		)
	case ExchangeDelete:
		err = validation.ValidateStruct(f,
			validation.Field(&f.Exchange, validation.Required, nameLength),
		)
	case QueueDeclare:
		// empty name asks for generated one
		err = validation.ValidateStruct(f,
			validation.Field(&f.Queue, nameLength),
		)
	case QueueDelete:
		err = validation.ValidateStruct(f,
			validation.Field(&f.Queue, validation.Required, nameLength),
		)
	case QueueBind, QueueUnbind:
		err = validation.ValidateStruct(f,
			validation.Field(&f.Exchange, validation.Required, nameLength),
			validation.Field(&f.Queue, validation.Required, nameLength),
		)
	case BasicConsume:
		err = validation.ValidateStruct(f,
			validation.Field(&f.Queue, validation.Required, nameLength),
			validation.Field(&f.ConsumerTag, nameLength),
			validation.Field(&f.Prefetch, validation.Min(0)),
		)
	case BasicCancel:
		err = validation.ValidateStruct(f,
			validation.Field(&f.ConsumerTag, validation.Required),
		)
	case BasicAck:
		err = validation.ValidateStruct(f,
			validation.Field(&f.Queue, validation.Required),
			validation.Field(&f.MessageID, validation.Required),
		)
	}

	if err != nil {
		return errors.Wrapf(types.CodeSyntaxError, "%s: %s", f.Method, err.Error())
	}

	return nil
}
