package mapping

import "time"

// Lifecycle hooks are optional capability interfaces a domain type may
// implement. Absence of an implementation is the no-op case, resolved at
// compile time by interface satisfaction.

// PrePersistHook is invoked on an entity immediately before it is written.
type PrePersistHook interface {
	PrePersist()
}

// PostLoadHook is invoked on an entity after it has been fully populated
// from a record, as the last step before it is handed to the caller.
type PostLoadHook interface {
	PostLoad()
}

// PreRemoveHook is invoked on an entity immediately before it is deleted.
type PreRemoveHook interface {
	PreRemove()
}

// Auditable lets an entity track its last modification time. The facade
// calls MarkModified with the current time before every persist.
type Auditable interface {
	MarkModified(at time.Time)
}

// InvokePrePersist runs the pre-persist hook and auditing callback when the
// entity declares them. Nil-safe.
func InvokePrePersist(entity any, now time.Time) {
	if entity == nil {
		return
	}
	if a, ok := entity.(Auditable); ok {
		a.MarkModified(now)
	}
	if h, ok := entity.(PrePersistHook); ok {
		h.PrePersist()
	}
}

// InvokePostLoad runs the post-load hook when the entity declares one.
func InvokePostLoad(entity any) {
	if h, ok := entity.(PostLoadHook); ok {
		h.PostLoad()
	}
}

// InvokePreRemove runs the pre-remove hook when the entity declares one.
func InvokePreRemove(entity any) {
	if h, ok := entity.(PreRemoveHook); ok {
		h.PreRemove()
	}
}
