package schemas

// -- Browser Schemas --

// NetworkResponse is a response observed on a page, reduced to what the automation layer inspects.
type NetworkResponse struct {
	RequestID    string `json:"request_id"`
	Method       string `json:"method"`
	URL          string `json:"url"`
	Status       int    `json:"status"`
	ResourceType string `json:"resource_type"`
}

// Resource types reported by the browser for scripted data requests.
const (
	ResourceXHR   = "XHR"
	ResourceFetch = "Fetch"
)

// IsDataRequest reports whether the response belongs to an XHR or fetch call.
func (r NetworkResponse) IsDataRequest() bool {
	return r.ResourceType == ResourceXHR || r.ResourceType == ResourceFetch
}

// Failed reports a 4xx or 5xx status.
func (r NetworkResponse) Failed() bool {
	return r.Status >= 400
}
