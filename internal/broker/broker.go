// Package broker gates and executes calls against the host application.
// Read-only calls execute immediately; mutating calls execute only when
// the caller has approved them or the active policy auto-approves them.
// Everything else comes back as a draft for the caller to confirm.
package broker

import (
	"context"
	"net/http"
	"strings"

	"actionbroker/internal/common"
)

// allowedVerbs is the set of methods the broker will execute. Discovery
// may surface more (HEAD, OPTIONS), but execution is restricted to the
// verbs with application semantics.
var allowedVerbs = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

// Broker validates, gates, and executes calls. It deliberately does not
// consult the capability catalog: paths inside the public prefix are
// forwarded as given and the host application remains the authority on
// whether they exist.
type Broker struct {
	forwarder     *Forwarder
	policy        *Policy
	publicPrefix  string
	controlPrefix string
	logger        *common.Logger
}

// NewBroker creates a broker. publicPrefix bounds the paths the broker
// will touch and controlPrefix carves the broker's own namespace out of
// that boundary.
func NewBroker(forwarder *Forwarder, policy *Policy, publicPrefix, controlPrefix string, logger *common.Logger) *Broker {
	if publicPrefix == "" {
		publicPrefix = "/"
	}
	if !strings.HasSuffix(publicPrefix, "/") {
		publicPrefix += "/"
	}
	return &Broker{
		forwarder:     forwarder,
		policy:        policy,
		publicPrefix:  publicPrefix,
		controlPrefix: strings.TrimRight(controlPrefix, "/"),
		logger:        logger,
	}
}

// Single validates one call and either executes it or returns a draft
// awaiting approval. Exactly one of draft and result is non-nil on
// success; a non-nil error means the request was rejected before any
// network activity.
func (b *Broker) Single(ctx context.Context, creds Credentials, input Input) (*Draft, *Result, error) {
	verb, verr := b.normalize(&input.Request)
	if verr != nil {
		return nil, nil, verr
	}

	if b.policy.RequiresApproval(verb != http.MethodGet, verb == http.MethodDelete, input.Approved) {
		b.logger.Info().
			Str("method", verb).
			Str("path", input.Path).
			Msg("Mutating call held for approval")
		return &Draft{ToolName: ToolSingle, Input: Input{Request: input.Request}}, nil, nil
	}

	result := b.forwarder.Do(ctx, creds, input.Request)
	return nil, &result, nil
}

// Batch validates a batch and either executes it or returns a draft for
// the whole batch. One approval decision covers every entry: approval is
// required when any entry needs it, and nothing executes until the batch
// as a whole is cleared. Entries that fail validation do not block the
// rest; they surface as failed results in place.
func (b *Broker) Batch(ctx context.Context, creds Credentials, input BatchInput) (*Draft, *BatchResult, error) {
	n := len(input.Requests)
	if n < MinBatchSize || n > MaxBatchSize {
		return nil, nil, validationErrorf("batch size must be between %d and %d, got %d", MinBatchSize, MaxBatchSize, n)
	}

	var anyMutating, anyDelete bool
	verrs := make([]*ValidationError, n)
	for i := range input.Requests {
		verb, verr := b.normalize(&input.Requests[i])
		if verr != nil {
			verrs[i] = verr
			continue
		}
		if verb != http.MethodGet {
			anyMutating = true
		}
		if verb == http.MethodDelete {
			anyDelete = true
		}
	}

	if b.policy.RequiresApproval(anyMutating, anyDelete, input.Approved) {
		b.logger.Info().
			Int("requests", n).
			Msg("Batch held for approval")
		return &Draft{ToolName: ToolBatch, Input: BatchInput{Requests: input.Requests}}, nil, nil
	}

	batch := &BatchResult{Results: make([]Result, 0, n)}
	for i, call := range input.Requests {
		var result Result
		if verr := verrs[i]; verr != nil {
			result = Result{
				Status: http.StatusBadRequest,
				Method: call.Method,
				Error:  verr.Reason,
			}
		} else {
			result = b.forwarder.Do(ctx, creds, call)
		}
		if result.OK() {
			batch.OK++
		} else {
			batch.Failed++
		}
		batch.Results = append(batch.Results, result)
	}

	batch.Status = http.StatusOK
	if batch.Failed > 0 {
		batch.Status = http.StatusMultiStatus
	}
	b.logger.Info().
		Int("requests", n).
		Int("ok", batch.OK).
		Int("failed", batch.Failed).
		Msg("Batch execution completed")
	return nil, batch, nil
}

// normalize canonicalizes the verb in place and rejects calls outside
// the execution boundary before any network activity.
func (b *Broker) normalize(call *Request) (string, *ValidationError) {
	verb := strings.ToUpper(strings.TrimSpace(call.Method))
	if !allowedVerbs[verb] {
		return "", validationErrorf("unsupported method %q", call.Method)
	}
	call.Method = verb

	if call.Path == "" || !strings.HasPrefix(call.Path, "/") {
		return "", validationErrorf("path must be absolute, got %q", call.Path)
	}
	if !strings.HasPrefix(call.Path, b.publicPrefix) {
		return "", validationErrorf("path %q is outside the public API prefix %q", call.Path, b.publicPrefix)
	}
	if b.underControlPlane(call.Path) {
		return "", validationErrorf("path %q targets the broker's own control plane", call.Path)
	}
	return verb, nil
}

// underControlPlane reports whether path falls inside the broker's own
// namespace. The match respects segment boundaries so sibling paths
// sharing the prefix text are not caught.
func (b *Broker) underControlPlane(path string) bool {
	if b.controlPrefix == "" {
		return false
	}
	return path == b.controlPrefix || strings.HasPrefix(path, b.controlPrefix+"/")
}
