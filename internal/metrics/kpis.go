package metrics

import (
	"sort"

	"github.com/PraWek/BusinessTelemetry/internal/events"
)

// DefaultOrdersAction is the action that counts as an order
const DefaultOrdersAction = "checkout"

// KPIRow holds the business KPIs of one calendar date
type KPIRow struct {
	Date          string
	OrdersCount   int
	GMV           float64
	SessionsCount int
	BuyersCount   int
	DAU           int
	// AOV is GMV / OrdersCount, NaN when there are no orders
	AOV float64
}

// KPIColumns is the KPI table header
var KPIColumns = []string{"date", "orders_count", "gmv", "sessions_count", "buyers_count", "dau", "aov"}

type kpiAccumulator struct {
	orders   int
	gmv      float64
	sessions map[string]struct{}
	buyers   map[string]struct{}
	users    map[string]struct{}
}

// ComputeKPIsByDate aggregates orders, GMV, sessions, buyers and active users
// per event date. Events without a timestamp have no date and are skipped.
// Blank session and user ids still count as orders but never as sessions,
// buyers or active users.
func ComputeKPIsByDate(table *events.Table, fields events.Fields, ordersAction string) ([]KPIRow, error) {
	if err := requireColumns(table, fields); err != nil {
		return nil, err
	}
	if ordersAction == "" {
		ordersAction = DefaultOrdersAction
	}

	byDate := make(map[string]*kpiAccumulator)
	for _, e := range table.Events {
		if !e.HasTimestamp() {
			continue
		}
		date := e.Date()
		acc, ok := byDate[date]
		if !ok {
			acc = &kpiAccumulator{
				sessions: make(map[string]struct{}),
				buyers:   make(map[string]struct{}),
				users:    make(map[string]struct{}),
			}
			byDate[date] = acc
		}
		if e.HasSession() {
			acc.sessions[e.SessionID] = struct{}{}
		}
		if e.HasUser() {
			acc.users[e.UserID] = struct{}{}
		}
		if e.Action == ordersAction {
			acc.orders++
			acc.gmv += e.ValueOr(0)
			if e.HasUser() {
				acc.buyers[e.UserID] = struct{}{}
			}
		}
	}

	dates := make([]string, 0, len(byDate))
	for date := range byDate {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	rows := make([]KPIRow, 0, len(dates))
	for _, date := range dates {
		acc := byDate[date]
		rows = append(rows, KPIRow{
			Date:          date,
			OrdersCount:   acc.orders,
			GMV:           acc.gmv,
			SessionsCount: len(acc.sessions),
			BuyersCount:   len(acc.buyers),
			DAU:           len(acc.users),
			AOV:           SafeDivide(acc.gmv, float64(acc.orders)),
		})
	}
	return rows, nil
}
