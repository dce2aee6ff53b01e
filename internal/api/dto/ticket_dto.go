package dto

// OrderCreateRequest payload for opening a purchase ticket.
type OrderCreateRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// SupportCreateRequest payload for opening a support ticket.
type SupportCreateRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// MessageRequest payload for appending to a transcript.
type MessageRequest struct {
	Content  string  `json:"content"`
	ImageURL *string `json:"image_url,omitempty"`
}

// CloseRequest payload for closing a ticket.
type CloseRequest struct {
	Reason string `json:"reason"`
}
