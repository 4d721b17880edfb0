package broker

import (
	"os"
	"strconv"

	"actionbroker/internal/config"
)

// Environment switches for the approval policy. Both are consulted on
// every decision rather than cached at startup, so an operator can flip
// them on a running process without a restart.
const (
	EnvAutoApproveWrites = "BROKER_AUTO_APPROVE_WRITES"
	EnvAutoApproveDelete = "BROKER_AUTO_APPROVE_DELETE"
)

// Policy decides whether a mutating call may execute without an explicit
// approval round-trip. Construction fixes the posture defaults; the
// environment variables override them per call.
type Policy struct {
	writesDefault bool
	deleteDefault bool
}

// NewPolicy builds a policy with the given posture defaults.
func NewPolicy(autoApproveWrites, autoApproveDelete bool) *Policy {
	return &Policy{
		writesDefault: autoApproveWrites,
		deleteDefault: autoApproveDelete,
	}
}

// PolicyFromConfig resolves posture defaults from configuration. Explicit
// settings win; otherwise dev mode auto-approves non-DELETE writes and
// production auto-approves nothing. DELETE is never cleared by posture
// alone.
func PolicyFromConfig(cfg *config.Config) *Policy {
	writes := cfg.IsDevMode()
	if cfg.Broker.AutoApproveWrites != nil {
		writes = *cfg.Broker.AutoApproveWrites
	}
	del := false
	if cfg.Broker.AutoApproveDelete != nil {
		del = *cfg.Broker.AutoApproveDelete
	}
	return NewPolicy(writes, del)
}

// AutoApproveWrites reports whether mutating calls other than DELETE may
// execute without caller approval.
func (p *Policy) AutoApproveWrites() bool {
	return envBool(EnvAutoApproveWrites, p.writesDefault)
}

// AutoApproveDelete reports whether DELETE calls may execute without
// caller approval. It only takes effect when writes are auto-approved
// as well.
func (p *Policy) AutoApproveDelete() bool {
	return envBool(EnvAutoApproveDelete, p.deleteDefault)
}

// RequiresApproval applies the approval rule to one decision. mutating
// covers any non-GET verb and hasDelete marks a DELETE among the calls
// under decision. A batch computes both across all entries and the
// single decision gates the whole batch. Explicit caller approval always
// clears the call regardless of policy state.
func (p *Policy) RequiresApproval(mutating, hasDelete, approved bool) bool {
	if !mutating || approved {
		return false
	}
	if !p.AutoApproveWrites() {
		return true
	}
	return hasDelete && !p.AutoApproveDelete()
}

func envBool(key string, fallback bool) bool {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return parsed
}
