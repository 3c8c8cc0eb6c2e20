package displayforce

import (
	"bytes"
	"context"
	"strconv"
)

// FlexID is an identifier that the provider serves sometimes as a JSON number
// and sometimes as a string. Comparisons go through the string form so a
// numeric device parent can still match a string folder ID.
type FlexID string

// UnmarshalJSON accepts both string and numeric encodings.
func (id *FlexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) >= 2 && data[0] == '"' && data[len(data)-1] == '"' {
		*id = FlexID(data[1 : len(data)-1])
		return nil
	}
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	*id = FlexID(data)
	return nil
}

// Int64 parses the numeric form, returning 0 for non-numeric IDs.
func (id FlexID) Int64() int64 {
	n, err := strconv.ParseInt(string(id), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// Folder is the provider's grouping unit; this system treats folders as stores.
type Folder struct {
	ID   FlexID `json:"id"`
	Name string `json:"name"`
}

// Device is a camera/sensor registered with the provider.
type Device struct {
	ID              FlexID   `json:"id"`
	Name            string   `json:"name"`
	ParentID        FlexID   `json:"parent_id"`
	ParentIDs       []FlexID `json:"parent_ids"`
	ConnectionState string   `json:"connection_state"`
}

// BelongsToFolder reports whether the device hangs under the folder, either
// directly or anywhere in its ancestor chain.
func (d Device) BelongsToFolder(folderID FlexID) bool {
	if folderID == "" {
		return false
	}
	if d.ParentID == folderID {
		return true
	}
	for _, parent := range d.ParentIDs {
		if parent == folderID {
			return true
		}
	}
	return false
}

type folderListRequest struct {
	Recursive bool `json:"recursive"`
	Limit     int  `json:"limit"`
	Offset    int  `json:"offset"`
}

type folderListResponse struct {
	Data []Folder `json:"data"`
}

// ListFolders retrieves the full device-folder tree, flattened.
func (c *Client) ListFolders(ctx context.Context) ([]Folder, error) {
	var all []Folder
	offset := 0

	for {
		var page folderListResponse
		body := folderListRequest{Recursive: true, Limit: DefaultPageLimit, Offset: offset}
		if err := c.postJSON(ctx, FolderListPath, body, &page); err != nil {
			return nil, err
		}

		all = append(all, page.Data...)
		if len(page.Data) < DefaultPageLimit {
			return all, nil
		}
		offset += DefaultPageLimit
	}
}

type deviceListRequest struct {
	Recursive bool     `json:"recursive"`
	Params    []string `json:"params"`
	Limit     int      `json:"limit"`
	Offset    int      `json:"offset"`
}

type deviceListResponse struct {
	Data []Device `json:"data"`
}

// deviceListParams are the device fields requested from the provider.
var deviceListParams = []string{"name", "parent_id", "parent_ids", "connection_state"}

// ListDevices retrieves every registered device.
func (c *Client) ListDevices(ctx context.Context) ([]Device, error) {
	var all []Device
	offset := 0

	for {
		var page deviceListResponse
		body := deviceListRequest{Recursive: true, Params: deviceListParams, Limit: DefaultPageLimit, Offset: offset}
		if err := c.postJSON(ctx, DeviceListPath, body, &page); err != nil {
			return nil, err
		}

		all = append(all, page.Data...)
		if len(page.Data) < DefaultPageLimit {
			return all, nil
		}
		offset += DefaultPageLimit
	}
}
