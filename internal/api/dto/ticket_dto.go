package dto

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Address     *string `json:"address"`
}

// UpdateStatusRequest payload for PATCH /tickets/:id.
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// CreateMessageRequest payload. Sender defaults from the caller's role.
type CreateMessageRequest struct {
	Message string `json:"message"`
	Sender  string `json:"sender"`
}
