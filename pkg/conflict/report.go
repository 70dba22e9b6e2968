package conflict

import "fmt"

// Report counts what a Resolve call did.
type Report struct {
	Rows            int `json:"rows" yaml:"rows"`
	Combinations    int `json:"combinations" yaml:"combinations"`
	ConflictingRows int `json:"conflicting_rows" yaml:"conflicting_rows"`
	AutoResolved    int `json:"auto_resolved" yaml:"auto_resolved"`
	Deferred        int `json:"deferred" yaml:"deferred"`
	TotalIDs        int `json:"total_ids" yaml:"total_ids"`
}

// String renders the report as the block printed after a resolution.
func (r Report) String() string {
	return fmt.Sprintf(
		"%d rows, %d distinct combinations\n"+
			"%d combinations share identity columns\n"+
			"%d groups resolved automatically, %d deferred to policy\n"+
			"%d ids assigned",
		r.Rows, r.Combinations, r.ConflictingRows, r.AutoResolved, r.Deferred, r.TotalIDs)
}
