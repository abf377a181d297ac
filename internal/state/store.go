package state

import "github.com/sturdyfi/sturdy-yearn-strategy/internal/types"

// Store adapts the package-level persistence functions to the cycle store
// interface the lifecycle controller consumes.
type Store struct{}

// NewStore returns a Store backed by the global database connection.
func NewStore() Store { return Store{} }

// NextCycleNumber advances and returns the persistent cycle counter.
func (Store) NextCycleNumber() (int, error) {
	return IncrementCycleNumber()
}

// SaveCycleReport persists a cycle report and returns its report ID.
func (Store) SaveCycleReport(report types.CycleReport) (int64, error) {
	return SaveCycleReport(report)
}
