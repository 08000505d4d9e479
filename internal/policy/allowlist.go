package policy

// Decision is the outcome of an authorization check.
type Decision struct {
	Allowed bool
	Reason  string
}

// AllowList is an immutable set of authorized identities.
// The zero value denies everyone.
type AllowList struct {
	members map[string]struct{}
}

// NewAllowList copies identities into a new AllowList. Empty entries are
// ignored.
func NewAllowList(identities []string) *AllowList {
	a := &AllowList{members: make(map[string]struct{}, len(identities))}
	for _, id := range identities {
		if id != "" {
			a.members[id] = struct{}{}
		}
	}
	return a
}

// IsAuthorized reports whether identity is on the list.
func (a *AllowList) IsAuthorized(identity string) bool {
	if a == nil {
		return false
	}
	_, ok := a.members[identity]
	return ok
}

// Evaluate wraps IsAuthorized in a Decision whose Reason is fit for a log
// message.
func (a *AllowList) Evaluate(identity string) Decision {
	if a.IsAuthorized(identity) {
		return Decision{Allowed: true, Reason: "identity on allow list"}
	}
	return Decision{Allowed: false, Reason: "identity not on allow list"}
}

// Len returns the number of distinct identities.
func (a *AllowList) Len() int {
	if a == nil {
		return 0
	}
	return len(a.members)
}
