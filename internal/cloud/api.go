package cloud

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"

	"github.com/nerrad567/printlink-core/internal/printer"
)

// Profile is the account profile.
type Profile struct {
	UID     FlexString `json:"uid"`
	Name    string     `json:"name"`
	Account string     `json:"account"`
}

// BoundDevice is a printer bound to the account.
type BoundDevice struct {
	DevID       string `json:"dev_id"`
	Name        string `json:"name"`
	Online      bool   `json:"online"`
	PrintStatus string `json:"print_status"`
	ModelName   string `json:"dev_model_name"`
	ProductName string `json:"dev_product_name"`
}

// Task is one entry of the account's print task history.
type Task struct {
	ID          FlexString `json:"id"`
	Title       string     `json:"title"`
	DesignTitle string     `json:"designTitle"`
	Cover       string     `json:"cover"`
	DeviceID    string     `json:"deviceId"`
	Status      int        `json:"status"`
	StartTime   string     `json:"startTime"`
}

// FlexString decodes a JSON string or number into its string form.
// Job identifiers arrive as either.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}

// GetProfile returns the account profile.
func (c *Client) GetProfile(ctx context.Context) (Profile, error) {
	var p Profile
	if err := c.getJSON(ctx, pathProfile, nil, &p); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// GetDevices returns the printers bound to the account.
func (c *Client) GetDevices(ctx context.Context) ([]BoundDevice, error) {
	var resp struct {
		Devices []BoundDevice `json:"devices"`
	}
	if err := c.getJSON(ctx, pathDevices, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Devices, nil
}

// ListTasks returns recent tasks for deviceID, newest first.
func (c *Client) ListTasks(ctx context.Context, deviceID string, limit int) ([]Task, error) {
	query := url.Values{}
	query.Set("deviceId", deviceID)
	query.Set("limit", strconv.Itoa(limit))

	var resp struct {
		Hits []Task `json:"hits"`
	}
	if err := c.getJSON(ctx, pathTasks, query, &resp); err != nil {
		return nil, err
	}
	return resp.Hits, nil
}

// GetTasks implements printer.TaskSource on top of ListTasks.
func (c *Client) GetTasks(ctx context.Context, deviceID string, limit int) ([]printer.Task, error) {
	hits, err := c.ListTasks(ctx, deviceID, limit)
	if err != nil {
		return nil, err
	}

	tasks := make([]printer.Task, 0, len(hits))
	for _, h := range hits {
		name := h.Title
		if name == "" {
			name = h.DesignTitle
		}
		tasks = append(tasks, printer.Task{
			ID:    string(h.ID),
			Name:  name,
			Cover: h.Cover,
		})
	}
	return tasks, nil
}

var _ printer.TaskSource = (*Client)(nil)
