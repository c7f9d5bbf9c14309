package client

import (
	"encoding/json"
	"fmt"
	"net/url"

	"courtside/pkg/model"
)

// PrincipalHeader carries the pre-authenticated acting principal. The
// service never authenticates; it trusts whatever gateway set this header.
const PrincipalHeader = "X-Principal-ID"

// ReservationClient is a thin Go SDK over the reservation HTTP surface.
type ReservationClient struct {
	httpClient *HttpClient
}

func NewReservationClient(baseURL string) *ReservationClient {
	return &ReservationClient{
		httpClient: NewHttpClient(baseURL),
	}
}

func principalHeaders(actingPrincipalID string) map[string]string {
	return map[string]string{PrincipalHeader: actingPrincipalID}
}

func (c *ReservationClient) Create(booking *model.Booking, actingPrincipalID string) (*Response, error) {
	return c.httpClient.POST("/api/v1/bookings", booking, principalHeaders(actingPrincipalID))
}

func (c *ReservationClient) Cancel(bookingID string, actingPrincipalID string) (*Response, error) {
	path := "/api/v1/bookings/id/" + url.PathEscape(bookingID)
	return c.httpClient.DELETE(path, principalHeaders(actingPrincipalID))
}

func (c *ReservationClient) ListForCourt(courtID string, from, to string, actingPrincipalID string) (*Response, error) {
	q := url.Values{}
	q.Set("from", from)
	q.Set("to", to)

	path := "/api/v1/courts/" + url.PathEscape(courtID) + "/bookings?" + q.Encode()
	return c.httpClient.GET(path, principalHeaders(actingPrincipalID))
}

func (c *ReservationClient) ListForPrincipal(principalID string, actingPrincipalID string) (*Response, error) {
	path := "/api/v1/principals/" + url.PathEscape(principalID) + "/bookings"
	return c.httpClient.GET(path, principalHeaders(actingPrincipalID))
}

func (c *ReservationClient) DecodeBooking(resp *Response) (*model.Booking, error) {
	var wrapper struct {
		Data json.RawMessage `json:"data"`
	}

	if err := json.Unmarshal(resp.Body, &wrapper); err != nil {
		return nil, fmt.Errorf("could not decode booking wrapper: %w", err)
	}

	var booking model.Booking
	if err := json.Unmarshal(wrapper.Data, &booking); err != nil {
		return nil, fmt.Errorf("could not decode booking json: %w", err)
	}

	return &booking, nil
}

func (c *ReservationClient) DecodeBookings(resp *Response) ([]*model.Booking, error) {
	var wrapper struct {
		Data json.RawMessage `json:"data"`
	}

	if err := json.Unmarshal(resp.Body, &wrapper); err != nil {
		return nil, fmt.Errorf("could not decode booking list wrapper: %w", err)
	}

	var bookings []*model.Booking
	if err := json.Unmarshal(wrapper.Data, &bookings); err != nil {
		return nil, fmt.Errorf("could not decode booking list json: %w", err)
	}

	return bookings, nil
}
