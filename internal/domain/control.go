package domain

import "fmt"

// EngineState is the process-independent run state of the whole engine.
// It is persisted so every worker process observes the same state before
// claiming work; the dashboard's start/pause/kill endpoints mutate it.
type EngineState string

const (
	EngineStopped EngineState = "STOPPED"
	EngineRunning EngineState = "RUNNING"
	EnginePaused  EngineState = "PAUSED"
)

// ValidateEngineTransition checks a requested engine state change.
// Legal moves: STOPPED→RUNNING, RUNNING→PAUSED, RUNNING→STOPPED,
// PAUSED→RUNNING, PAUSED→STOPPED. Self-transitions are no-ops.
func ValidateEngineTransition(from, to EngineState) error {
	if from == to {
		return nil
	}
	switch from {
	case EngineStopped:
		if to == EngineRunning {
			return nil
		}
	case EngineRunning:
		if to == EnginePaused || to == EngineStopped {
			return nil
		}
	case EnginePaused:
		if to == EngineRunning || to == EngineStopped {
			return nil
		}
	}
	return fmt.Errorf("illegal engine transition %s -> %s", from, to)
}

// ThrottleState is the Governor's per-module capacity output. Capacity 1.0
// means full speed; workers multiply their batch sizes by it before
// claiming work. Small, frequently read, rarely written.
type ThrottleState struct {
	Module    string // "" or "all" applies to every module
	Capacity  float64
	Reason    string
	UpdatedAt int64 // ms
}

// BudgetAccount tracks spendable capital for one category. Reserved is
// incremented atomically by Buyer before each purchase so concurrent runs
// cannot overspend. Corresponds to budget_accounts table in PostgreSQL.
type BudgetAccount struct {
	Category  InventoryKind
	Allocated float64
	Reserved  float64
	UpdatedAt int64 // ms
}

// Available returns the unreserved allocation.
func (b *BudgetAccount) Available() float64 {
	return b.Allocated - b.Reserved
}
