package query

import (
	"fmt"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// TicketSort enumerates sortable ticket keys.
type TicketSort string

const (
	SortCreatedAt   TicketSort = "created_at"
	SortUpdatedAt   TicketSort = "updated_at"
	SortMostReplied TicketSort = "most_replied"
)

// ParseTicketSort validates sort_by. Empty input selects created_at.
func ParseTicketSort(value string) (TicketSort, error) {
	switch TicketSort(value) {
	case "":
		return SortCreatedAt, nil
	case SortCreatedAt, SortUpdatedAt, SortMostReplied:
		return TicketSort(value), nil
	}
	return "", fmt.Errorf("%w: sort_by %q", domain.ErrInvalidEnum, value)
}

// SortOrder is ascending or descending.
type SortOrder string

const (
	OrderAsc  SortOrder = "asc"
	OrderDesc SortOrder = "desc"
)

// ParseSortOrder validates sort_order. Empty input selects desc.
func ParseSortOrder(value string) (SortOrder, error) {
	switch SortOrder(value) {
	case "":
		return OrderDesc, nil
	case OrderAsc, OrderDesc:
		return SortOrder(value), nil
	}
	return "", fmt.Errorf("%w: sort_order %q", domain.ErrInvalidEnum, value)
}

// SQL returns the keyword for an ORDER BY clause.
func (o SortOrder) SQL() string {
	if o == OrderAsc {
		return "ASC"
	}
	return "DESC"
}

// Queue narrows the staff ticket view.
type Queue string

const (
	QueueAll        Queue = "all"
	QueueMyTickets  Queue = "my_tickets"
	QueueUnassigned Queue = "unassigned"
)

// ParseQueue validates queue. Empty input selects all.
func ParseQueue(value string) (Queue, error) {
	switch Queue(value) {
	case "":
		return QueueAll, nil
	case QueueAll, QueueMyTickets, QueueUnassigned:
		return Queue(value), nil
	}
	return "", fmt.Errorf("%w: queue %q", domain.ErrInvalidEnum, value)
}
