package domain

import "time"

// Product is a shop listing. Quantity is available stock; it is deducted when
// a purchase ticket settles and never goes below zero. Delisted products stay
// in storage with Active=false.
type Product struct {
	ID          string
	Title       string
	Description string
	Category    string
	Thumbnail   *string
	Price       float64
	Quantity    int
	Featured    bool
	Active      bool
	AuthorID    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
