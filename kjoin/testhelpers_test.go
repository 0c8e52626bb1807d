package kjoin

import (
	"time"

	"github.com/birdayz/kcogroup/kprocessor"
	"github.com/birdayz/kcogroup/kserde"
)

type order struct {
	ID     string
	Amount int
}

type payment struct {
	OrderID string
	Amount  int
}

var (
	orderKey   = KeyBy(kserde.StringType, func(o order) string { return o.ID })
	paymentKey = KeyBy(kserde.StringType, func(p payment) string { return p.OrderID })
)

func at[T any](v T, ms int64) kprocessor.Record[T] {
	return kprocessor.NewRecord(v, time.UnixMilli(ms))
}
