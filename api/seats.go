package api

import (
	"context"
	"fmt"
	"net/http"

	"ticket-storefront/shared"
)

// Seats fetches the seat list for an event. An event with no seat map yet
// yields an empty list, not an error.
func (c *Client) Seats(ctx context.Context, eventID string) ([]shared.Seat, error) {
	var seats []shared.Seat
	path := fmt.Sprintf(shared.APIEndpointSeats, eventID)
	if err := c.get(ctx, path, &seats, true); err != nil {
		return nil, err
	}
	return seats, nil
}

// SelectSeat places a hold on a seat for the caller.
func (c *Client) SelectSeat(ctx context.Context, eventID string, seatID int64) error {
	path := fmt.Sprintf(shared.APIEndpointSelectSeat, eventID, seatID)
	return c.do(ctx, http.MethodPost, path, nil, nil)
}

// DeselectSeat releases a hold the caller placed on a seat.
func (c *Client) DeselectSeat(ctx context.Context, eventID string, seatID int64) error {
	path := fmt.Sprintf(shared.APIEndpointDeselectSeat, eventID, seatID)
	return c.do(ctx, http.MethodPost, path, nil, nil)
}
