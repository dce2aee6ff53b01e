package dto

// ProductRequest payload for creating or updating a listing.
type ProductRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Thumbnail   *string `json:"thumbnail,omitempty"`
	Price       float64 `json:"price"`
	Quantity    int     `json:"quantity"`
	Featured    bool    `json:"featured"`
}
