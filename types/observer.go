package types

// ChangeObserver receives notifications around every write to a tracked field of a
// planning entity.
//
// The optimization engine relies on the exact bracketing: every field write must be
// preceded by BeforeVariableChanged and followed by AfterVariableChanged for the same
// entity and field, otherwise the engine's incremental bookkeeping desynchronizes.
//
// Implementations are called on the engine's move-evaluation hot path and must not block.
type ChangeObserver interface {
	// BeforeVariableChanged is called right before the field is written.
	BeforeVariableChanged(entity TaskID, field string)

	// AfterVariableChanged is called right after the field is written.
	AfterVariableChanged(entity TaskID, field string)
}
