// Package ipc carries service lifecycle requests from a desktop front end to
// `backupone serve` over newline-delimited JSON: a named pipe on Windows and a
// Unix domain socket elsewhere.
package ipc

import (
	"encoding/json"
	"fmt"

	"github.com/JBibu/backupone/internal/script"
	"github.com/JBibu/backupone/internal/service"
)

// MessageType identifies the type of IPC message.
type MessageType string

const (
	// Request types (client -> server)
	MsgGetServiceStatus MessageType = "GetServiceStatus"
	MsgIsServiceRunning MessageType = "IsServiceRunning"
	MsgInstallService   MessageType = "InstallService"
	MsgUninstallService MessageType = "UninstallService"
	MsgStartService     MessageType = "StartService"
	MsgStopService      MessageType = "StopService"
	MsgGetBackendURL    MessageType = "GetBackendURL"

	// Response types (server -> client)
	MsgServiceStatus MessageType = "ServiceStatus"
	MsgBool          MessageType = "Bool"
	MsgURL           MessageType = "URL"
	MsgOK            MessageType = "OK"
	MsgError         MessageType = "Error"
)

// Mutating reports whether the request changes service state. Mutating
// requests get the long operation deadline and are serialized by the handler.
func (t MessageType) Mutating() bool {
	switch t {
	case MsgInstallService, MsgUninstallService, MsgStartService, MsgStopService:
		return true
	}
	return false
}

// Operation maps a mutating request to its lifecycle operation.
func (t MessageType) Operation() (script.Operation, bool) {
	switch t {
	case MsgInstallService:
		return script.Install, true
	case MsgUninstallService:
		return script.Uninstall, true
	case MsgStartService:
		return script.Start, true
	case MsgStopService:
		return script.Stop, true
	}
	return 0, false
}

// Request represents an IPC request from client to server.
type Request struct {
	Type MessageType `json:"type"`

	// ResourceDir is the bundled resource directory (InstallService only).
	ResourceDir string `json:"resource_dir,omitempty"`

	// UsingService and SidecarPort parameterize GetBackendURL.
	UsingService bool `json:"using_service,omitempty"`
	SidecarPort  int  `json:"sidecar_port,omitempty"`
}

// Response represents an IPC response from server to client.
type Response struct {
	Type    MessageType `json:"type"`
	Success bool        `json:"success"`
	Error   string      `json:"error,omitempty"`

	// Kind is the service.Kind name of a failed lifecycle operation.
	Kind string `json:"kind,omitempty"`

	Data interface{} `json:"data,omitempty"`
}

// BoolData carries a yes/no answer.
type BoolData struct {
	Value bool `json:"value"`
}

// URLData carries a backend base URL.
type URLData struct {
	URL string `json:"url"`
}

// NewRequest creates a new IPC request.
func NewRequest(msgType MessageType) *Request {
	return &Request{Type: msgType}
}

// NewInstallRequest creates an InstallService request.
func NewInstallRequest(resourceDir string) *Request {
	return &Request{Type: MsgInstallService, ResourceDir: resourceDir}
}

// NewBackendURLRequest creates a GetBackendURL request.
func NewBackendURLRequest(usingService bool, sidecarPort int) *Request {
	return &Request{Type: MsgGetBackendURL, UsingService: usingService, SidecarPort: sidecarPort}
}

// NewOKResponse creates a success response.
func NewOKResponse() *Response {
	return &Response{Type: MsgOK, Success: true}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(err string) *Response {
	return &Response{Type: MsgError, Success: false, Error: err}
}

// NewFailureResponse creates an error response from a handler error,
// preserving the lifecycle failure kind when there is one.
func NewFailureResponse(err error) *Response {
	resp := NewErrorResponse(err.Error())
	if kind := service.KindOf(err); kind != 0 {
		resp.Kind = kind.String()
	}
	return resp
}

// NewStatusResponse creates a service status response.
func NewStatusResponse(status service.ServiceStatus) *Response {
	return &Response{Type: MsgServiceStatus, Success: true, Data: status}
}

// NewBoolResponse creates a boolean response.
func NewBoolResponse(v bool) *Response {
	return &Response{Type: MsgBool, Success: true, Data: &BoolData{Value: v}}
}

// NewURLResponse creates a backend URL response.
func NewURLResponse(url string) *Response {
	return &Response{Type: MsgURL, Success: true, Data: &URLData{URL: url}}
}

// Encode serializes a request to JSON.
func (r *Request) Encode() ([]byte, error) {
	return json.Marshal(r)
}

// Encode serializes a response to JSON.
func (r *Response) Encode() ([]byte, error) {
	return json.Marshal(r)
}

// DecodeRequest deserializes a request from JSON.
func DecodeRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

// DecodeResponse deserializes a response from JSON.
func DecodeResponse(data []byte) (*Response, error) {
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// decodeData converts r.Data into out. Data is a typed value on the server
// side and a generic map after a JSON round trip.
func (r *Response) decodeData(out interface{}) error {
	if r.Data == nil {
		return fmt.Errorf("%s response carries no data", r.Type)
	}
	data, err := json.Marshal(r.Data)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

// GetServiceStatus extracts the service status from a ServiceStatus response.
func (r *Response) GetServiceStatus() (service.ServiceStatus, error) {
	var st service.ServiceStatus
	if r.Type != MsgServiceStatus {
		return st, fmt.Errorf("unexpected response type %s", r.Type)
	}
	if err := r.decodeData(&st); err != nil {
		return service.NotInstalled(), err
	}
	return st.Normalize(), nil
}

// GetBool extracts the value of a Bool response.
func (r *Response) GetBool() (bool, error) {
	if r.Type != MsgBool {
		return false, fmt.Errorf("unexpected response type %s", r.Type)
	}
	var b BoolData
	if err := r.decodeData(&b); err != nil {
		return false, err
	}
	return b.Value, nil
}

// GetURL extracts the value of a URL response.
func (r *Response) GetURL() (string, error) {
	if r.Type != MsgURL {
		return "", fmt.Errorf("unexpected response type %s", r.Type)
	}
	var u URLData
	if err := r.decodeData(&u); err != nil {
		return "", err
	}
	return u.URL, nil
}

// Err converts a failed response into an error. Lifecycle failures come back
// as *service.OperationError so errors.Is works across the pipe.
func (r *Response) Err(req MessageType) error {
	if r.Success {
		return nil
	}
	if kind := service.ParseKind(r.Kind); kind != 0 {
		op, _ := req.Operation()
		return &service.OperationError{Op: op, Kind: kind, Message: r.Error}
	}
	return fmt.Errorf("server error: %s", r.Error)
}
