package features

import (
	"time"

	"github.com/PraWek/BusinessTelemetry/internal/events"
	"github.com/PraWek/BusinessTelemetry/internal/session"
)

const (
	ActionProduct  = "product"
	ActionCart     = "cart"
	ActionCheckout = "checkout"
)

// Row is an event enriched with session-aware features
type Row struct {
	events.Event

	SessionStepNumber int
	PrevAction        string
	NextAction        string
	PrevTimestamp     time.Time
	NextTimestamp     time.Time
	// ProductToCart marks a cart event immediately preceded by a product event
	ProductToCart bool
	// BasketSize is the number of product->cart events in the session
	BasketSize int
	// AvgCartToCheckout is the mean number of seconds from the previous cart or
	// checkout event to each checkout in the session, 0 when there is none
	AvgCartToCheckout float64
	SessionDuration   float64
}

// Build derives the feature rows for every event, grouped by session and
// ordered by timestamp within each session.
func Build(table *events.Table, fields events.Fields) ([]Row, error) {
	parts, err := session.Partition(table, fields)
	if err != nil {
		return nil, err
	}
	summaries, err := session.Aggregate(table, fields)
	if err != nil {
		return nil, err
	}
	durations := session.DurationIndex(summaries)

	rows := make([]Row, 0, table.Len())
	for _, part := range parts {
		sessionRows := make([]Row, len(part))
		basket := 0
		for i, e := range part {
			r := Row{
				Event:             e,
				SessionStepNumber: i + 1,
				SessionDuration:   durations[e.SessionID],
			}
			if i > 0 {
				r.PrevAction = part[i-1].Action
				r.PrevTimestamp = part[i-1].Timestamp
			}
			if i+1 < len(part) {
				r.NextAction = part[i+1].Action
				r.NextTimestamp = part[i+1].Timestamp
			}
			r.ProductToCart = e.Action == ActionCart && r.PrevAction == ActionProduct
			if r.ProductToCart {
				basket++
			}
			sessionRows[i] = r
		}

		avg := avgCartToCheckout(part)
		for i := range sessionRows {
			sessionRows[i].BasketSize = basket
			sessionRows[i].AvgCartToCheckout = avg
		}
		rows = append(rows, sessionRows...)
	}
	return rows, nil
}

func avgCartToCheckout(part []events.Event) float64 {
	var (
		prev  *events.Event
		total float64
		n     int
	)
	for i := range part {
		e := part[i]
		if e.Action != ActionCart && e.Action != ActionCheckout {
			continue
		}
		if e.Action == ActionCheckout && prev != nil && prev.HasTimestamp() && e.HasTimestamp() {
			total += e.Timestamp.Sub(prev.Timestamp).Seconds()
			n++
		}
		prev = &part[i]
	}
	if n == 0 {
		return 0
	}
	return total / float64(n)
}

// ProductToCartTransitions returns the cart events whose previous event in
// the same session was a product view.
func ProductToCartTransitions(rows []Row) []Row {
	var out []Row
	for _, r := range rows {
		if r.ProductToCart {
			out = append(out, r)
		}
	}
	return out
}
