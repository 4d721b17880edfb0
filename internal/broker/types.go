package broker

import "net/http"

// Tool names accepted by the execute surface. A draft echoes the tool
// name it was produced by so the caller can resubmit it unchanged.
const (
	ToolSingle = "single"
	ToolBatch  = "batch"
)

// Batch size bounds, inclusive.
const (
	MinBatchSize = 1
	MaxBatchSize = 50
)

// Request is one resolved call against the host application.
type Request struct {
	Method string                 `json:"method"`
	Path   string                 `json:"path"`
	Query  map[string]string      `json:"query,omitempty"`
	Body   map[string]interface{} `json:"body,omitempty"`
}

// Input is the single-call payload: a request plus the caller's approval
// decision.
type Input struct {
	Request
	Approved bool `json:"approved,omitempty"`
}

// BatchInput is the batch payload. One approval decision gates every
// entry; there is no partial approval.
type BatchInput struct {
	Requests []Request `json:"requests"`
	Approved bool      `json:"approved,omitempty"`
}

// Draft is a proposed action awaiting explicit approval. It exists only
// in the response to the caller; nothing is stored server-side and no
// expiry applies. Resubmitting the input with approved set executes it.
type Draft struct {
	ToolName string      `json:"toolName"`
	Input    interface{} `json:"input"`
}

// Result is the outcome of one executed call. Error is set when the
// host application could not be reached or the response could not be
// read; upstream HTTP error statuses are reported via Status with the
// payload in Response.
type Result struct {
	Status   int         `json:"status"`
	URL      string      `json:"url"`
	Method   string      `json:"method"`
	Response interface{} `json:"response,omitempty"`
	Error    string      `json:"error,omitempty"`
}

// OK reports whether the call reached the host application and came back
// with a non-error status.
func (r Result) OK() bool {
	return r.Error == "" && r.Status < 400
}

// BatchResult aggregates the sequential execution of a batch. Results
// holds one entry per request, in request order. Status is 200 when
// every entry succeeded and 207 otherwise.
type BatchResult struct {
	Status  int      `json:"status"`
	OK      int      `json:"ok"`
	Failed  int      `json:"failed"`
	Results []Result `json:"results"`
}

// Credentials carries the caller's inbound credential headers for
// byte-for-byte forwarding. The broker never re-signs or re-derives
// them.
type Credentials struct {
	Authorization string
	Cookie        string
}

// CredentialsFromRequest captures the forwardable headers of an inbound
// request.
func CredentialsFromRequest(r *http.Request) Credentials {
	return Credentials{
		Authorization: r.Header.Get("Authorization"),
		Cookie:        r.Header.Get("Cookie"),
	}
}
