package bridge

import "strings"

// Action names an authorization-gated coordinator operation.
type Action string

const (
	// ActionIssue covers minting representation assets.
	ActionIssue Action = "issue_representation"

	// ActionRelease covers releasing locked originals.
	ActionRelease Action = "release"
)

// Policy decides whether a caller may perform a gated action. It is a
// strategy object so the single-operator trust root can later be swapped for
// a threshold-signature or proof-based verifier without touching the
// coordinator's state transitions.
type Policy interface {
	Authorize(caller string, action Action) error
}

// OperatorPolicy authorizes exactly one trusted operator identity for every
// gated action. The operator is fixed at construction; rotation is not
// supported.
type OperatorPolicy struct {
	operator string
}

var _ Policy = (*OperatorPolicy)(nil)

// NewOperatorPolicy creates a policy trusting the given operator address.
func NewOperatorPolicy(operator string) *OperatorPolicy {
	return &OperatorPolicy{operator: strings.TrimSpace(operator)}
}

// Operator returns the trusted operator address.
func (p *OperatorPolicy) Operator() string { return p.operator }

// Authorize allows any gated action for the operator and nothing for anyone
// else. Addresses compare case-insensitively.
func (p *OperatorPolicy) Authorize(caller string, _ Action) error {
	if p.operator != "" && strings.EqualFold(strings.TrimSpace(caller), p.operator) {
		return nil
	}
	return ErrUnauthorized
}
