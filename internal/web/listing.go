package web

import (
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/stockwallet/backend/internal/domain"
)

// listOptions carries the query parameters understood by collection
// endpoints: _start/_end select a slice of the result and _sort/_order
// pick the ordering. The full count always travels in X-Total-Count so
// clients can page.
type listOptions struct {
	start int
	end   int
	sort  string
	order string
}

func parseListOptions(r *http.Request) listOptions {
	q := r.URL.Query()
	opts := listOptions{start: 0, end: -1, sort: q.Get("_sort")}
	if v, err := strconv.Atoi(q.Get("_start")); err == nil && v >= 0 {
		opts.start = v
	}
	if v, err := strconv.Atoi(q.Get("_end")); err == nil && v >= 0 {
		opts.end = v
	}
	opts.order = strings.ToUpper(q.Get("_order"))
	if opts.order != "DESC" {
		opts.order = "ASC"
	}
	return opts
}

// page sets X-Total-Count from the unsliced length and returns the
// requested window.
func page[T any](w http.ResponseWriter, opts listOptions, items []T) []T {
	w.Header().Set("X-Total-Count", strconv.Itoa(len(items)))
	w.Header().Set("Access-Control-Expose-Headers", "X-Total-Count")
	start := opts.start
	if start > len(items) {
		start = len(items)
	}
	end := len(items)
	if opts.end >= 0 && opts.end < end {
		end = opts.end
	}
	if end < start {
		end = start
	}
	return items[start:end]
}

func sortEvents(events []*domain.Event, opts listOptions) {
	less := func(a, b *domain.Event) bool {
		switch opts.sort {
		case "symbol":
			if a.Symbol != b.Symbol {
				return a.Symbol < b.Symbol
			}
			return a.Time.Before(b.Time)
		case "id":
			return a.ID < b.ID
		default:
			if !a.Time.Equal(b.Time) {
				return a.Time.Before(b.Time)
			}
			return a.Sequence < b.Sequence
		}
	}
	sort.SliceStable(events, func(i, j int) bool {
		if opts.order == "DESC" {
			return less(events[j], events[i])
		}
		return less(events[i], events[j])
	})
}

func sortPortfolios(items []*domain.Portfolio, opts listOptions) {
	less := func(a, b *domain.Portfolio) bool {
		if opts.sort == "id" {
			return a.ID < b.ID
		}
		return a.Name < b.Name
	}
	sort.SliceStable(items, func(i, j int) bool {
		if opts.order == "DESC" {
			return less(items[j], items[i])
		}
		return less(items[i], items[j])
	})
}

func sortBrokers(items []*domain.Broker, opts listOptions) {
	less := func(a, b *domain.Broker) bool {
		if opts.sort == "id" {
			return a.ID < b.ID
		}
		return a.Name < b.Name
	}
	sort.SliceStable(items, func(i, j int) bool {
		if opts.order == "DESC" {
			return less(items[j], items[i])
		}
		return less(items[i], items[j])
	})
}
