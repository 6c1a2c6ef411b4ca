package model

// ChangeSet is the batch of locally mutated records handed to the remote
// side in one sync pass.
type ChangeSet struct {
	Schedules  []Schedule `json:"schedules"`
	Activities []Activity `json:"activities"`
}

// Len returns the number of records in the batch.
func (c ChangeSet) Len() int {
	return len(c.Schedules) + len(c.Activities)
}

// Empty reports whether there is nothing to reconcile.
func (c ChangeSet) Empty() bool {
	return c.Len() == 0
}
