package api

import (
	"context"
	"fmt"
	"net/http"

	"ticket-storefront/shared"
)

// QueueStatus fetches the caller's queue snapshot for an event.
func (c *Client) QueueStatus(ctx context.Context, eventID string) (*shared.QueueStatus, error) {
	var status shared.QueueStatus
	path := fmt.Sprintf(shared.APIEndpointQueueStatus, eventID)
	if err := c.get(ctx, path, &status, false); err != nil {
		return nil, err
	}
	return &status, nil
}

// MoveToBack releases the caller's queue slot and re-enters at the end of
// the line, reporting the rank change.
func (c *Client) MoveToBack(ctx context.Context, eventID string) (*shared.RequeueResult, error) {
	var result shared.RequeueResult
	path := fmt.Sprintf(shared.APIEndpointMoveToBack, eventID)
	if err := c.do(ctx, http.MethodPost, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ProcessUntilMe asks the backend to admit everyone up to and including
// the caller. Admin/dev convenience.
func (c *Client) ProcessUntilMe(ctx context.Context, eventID string) error {
	path := fmt.Sprintf(shared.APIEndpointProcessUntilMe, eventID)
	return c.do(ctx, http.MethodPost, path, nil, nil)
}
