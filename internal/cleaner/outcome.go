package cleaner

// Skip records an item left alone because its owning application was running
type Skip struct {
	Path       string `json:"path" yaml:"path"`
	Identifier string `json:"identifier" yaml:"identifier"`
}

// DeletionOutcome is the aggregated result of one clean operation
type DeletionOutcome struct {
	DeletedCount   int              `json:"deleted_count" yaml:"deleted_count"`
	DeletedBytes   int64            `json:"deleted_bytes" yaml:"deleted_bytes"`
	Errors         []*DeletionError `json:"errors" yaml:"errors"`
	SkippedRunning []Skip           `json:"skipped_running" yaml:"skipped_running"`
	DryRun         bool             `json:"dry_run" yaml:"dry_run"`
}

func newOutcome(dryRun bool) *DeletionOutcome {
	return &DeletionOutcome{
		Errors:         []*DeletionError{},
		SkippedRunning: []Skip{},
		DryRun:         dryRun,
	}
}

func (o *DeletionOutcome) deleted(size int64) {
	o.DeletedCount++
	o.DeletedBytes += size
}

func (o *DeletionOutcome) fail(err *DeletionError) {
	o.Errors = append(o.Errors, err)
}

// Merge adds other into o. Errors and skips keep their order, o's first.
func (o *DeletionOutcome) Merge(other *DeletionOutcome) {
	if other == nil {
		return
	}
	o.DeletedCount += other.DeletedCount
	o.DeletedBytes += other.DeletedBytes
	o.Errors = append(o.Errors, other.Errors...)
	o.SkippedRunning = append(o.SkippedRunning, other.SkippedRunning...)
	o.DryRun = o.DryRun || other.DryRun
}

// ErrorsByReason returns the errors with the given reason
func (o *DeletionOutcome) ErrorsByReason(reason ErrorReason) []*DeletionError {
	var out []*DeletionError
	for _, err := range o.Errors {
		if err.Reason == reason {
			out = append(out, err)
		}
	}
	return out
}
