package domain

// Action is a mutation requested against a scheduled activity.
type Action string

const (
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
)

// GuardDecision is the outcome of a mutation guard evaluation.
type GuardDecision struct {
	Allowed bool
	Status  Status
	Reason  string
}

// Err converts a denial into a MUTATION_DENIED domain error.
func (d GuardDecision) Err() error {
	if d.Allowed {
		return nil
	}
	return NewMutationDenied(d.Status, d.Reason)
}

// CheckMutation decides whether action may be applied to a record in status.
// Only upcoming records may be edited or deleted. The rule has no principal
// parameter, so no role can override it.
func CheckMutation(status Status, action Action) GuardDecision {
	switch action {
	case ActionEdit, ActionDelete:
	default:
		return GuardDecision{Status: status, Reason: "unsupported action"}
	}

	switch status {
	case StatusUpcoming:
		return GuardDecision{Allowed: true, Status: status}
	case StatusInProgress:
		return GuardDecision{Status: status, Reason: ReasonAlreadyStarted}
	default:
		// completed, and anything unrecognised, is treated as audit-protected
		return GuardDecision{Status: status, Reason: ReasonAuditSafety}
	}
}
