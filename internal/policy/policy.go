// Package policy implements the limit policy: a pure decision function over
// user tier, usage counters, and pack capacity. It holds no state and issues
// no I/O; callers evaluate it at flow entry and again at commit time.
package policy

import (
	"github.com/m3rciful/packbot/internal/models"
)

// Action identifies the operation being authorized.
type Action string

const (
	ActionCreatePack Action = "create_pack"
	ActionAddItem    Action = "add_item"
	ActionDuplicate  Action = "duplicate"
	ActionAdaptive   Action = "adaptive"
)

// Reason explains a denial.
type Reason string

const (
	ReasonQuotaExceeded     Reason = "quota_exceeded"
	ReasonCapacityExceeded  Reason = "capacity_exceeded"
	ReasonNameLengthInvalid Reason = "name_length_invalid"
	ReasonNotEntitled       Reason = "not_entitled"
	ReasonOwnerOnly         Reason = "owner_only"
)

// Decision is the outcome of an evaluation.
type Decision struct {
	Allowed bool
	Reason  Reason
}

func allow() Decision        { return Decision{Allowed: true} }
func deny(r Reason) Decision { return Decision{Reason: r} }

// Limits carries the configured capacity and naming bounds.
type Limits struct {
	FreeMaxEmojis   int
	FreeMaxStickers int
	PaidMaxItems    int

	FreeNameMin int
	FreeNameMax int
	PaidNameMin int
	PaidNameMax int
}

// Request is one evaluation input. Pack is nil for actions without a target.
// IsOwner is resolved by the caller's authorizer; policy stays identity-free.
type Request struct {
	User    models.User
	Action  Action
	Pack    *models.Pack
	Paid    bool // the flow runs against the paid naming/capacity scope
	IsOwner bool
}

// Capacity returns the item limit for a pack scope.
func (l Limits) Capacity(paid bool, kind models.PackKind) int {
	if paid {
		return l.PaidMaxItems
	}
	switch kind {
	case models.PackKindSticker:
		return l.FreeMaxStickers
	default:
		// Adaptive packs share the emoji capacity.
		return l.FreeMaxEmojis
	}
}

// ValidateName checks pack name length for the given scope.
func (l Limits) ValidateName(name string, paid bool) Decision {
	n := len([]rune(name))
	min, max := l.FreeNameMin, l.FreeNameMax
	if paid {
		min, max = l.PaidNameMin, l.PaidNameMax
	}
	if n < min || n > max {
		return deny(ReasonNameLengthInvalid)
	}
	return allow()
}

// Evaluate decides whether the requested action is allowed.
func (l Limits) Evaluate(req Request) Decision {
	switch req.Action {
	case ActionCreatePack:
		if req.Paid {
			if !req.User.Tier.Paid() {
				return deny(ReasonNotEntitled)
			}
			// Admin exemption is not metered; a paid tier spends the slots
			// it purchased.
			if req.User.Tier == models.TierPaid && req.User.PaidPackUses <= 0 {
				return deny(ReasonQuotaExceeded)
			}
			return allow()
		}
		if req.User.FreePackUses <= 0 {
			return deny(ReasonQuotaExceeded)
		}
		return allow()

	case ActionAddItem:
		if req.Pack == nil {
			return deny(ReasonCapacityExceeded)
		}
		cap := l.Capacity(req.Pack.IsPaidPack, req.Pack.Kind)
		if req.Pack.ItemCount >= cap {
			return deny(ReasonCapacityExceeded)
		}
		return allow()

	case ActionDuplicate, ActionAdaptive:
		// Restricted to the designated owner account during this phase.
		if !req.IsOwner {
			return deny(ReasonOwnerOnly)
		}
		return allow()
	}
	return deny(ReasonNotEntitled)
}
