package domain

import "time"

type TableStatus string

const (
	TableAvailable TableStatus = "available"
	TableOccupied  TableStatus = "occupied"
	TableReserved  TableStatus = "reserved"
)

type Table struct {
	ID             string      `json:"id"`
	Number         int         `json:"number"`
	Capacity       int         `json:"capacity"`
	Status         TableStatus `json:"status"`
	CurrentOrderID *string     `json:"current_order_id,omitempty"`
}

// Reservation is a booking for a table at a point in time today or later.
type Reservation struct {
	ID           string    `json:"id"`
	TableID      string    `json:"table_id"`
	CustomerName string    `json:"customer_name"`
	BookedAt     time.Time `json:"booked_at"`
	Cancelled    bool      `json:"cancelled"`
}
