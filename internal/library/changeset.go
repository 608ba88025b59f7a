package library

// AddItem is one document queued for addition.
type AddItem struct {
	Path string `json:"path"`
	Name string `json:"name"`
}

// ChangeSet is the single batched result of an editing session.
type ChangeSet struct {
	DocumentsToAdd    []AddItem `json:"documents_to_add"`
	DocumentsToRemove []string  `json:"documents_to_remove"`
}

// IsEmpty reports whether the change-set has nothing to apply.
func (c ChangeSet) IsEmpty() bool {
	return len(c.DocumentsToAdd) == 0 && len(c.DocumentsToRemove) == 0
}

// Request converts the change-set into the wire shape accepted by the apply service.
func (c ChangeSet) Request() ChangeRequest {
	req := ChangeRequest{
		Add:    make([]string, 0, len(c.DocumentsToAdd)),
		Remove: append([]string{}, c.DocumentsToRemove...),
	}
	for _, item := range c.DocumentsToAdd {
		req.Add = append(req.Add, item.Path)
	}
	return req
}

// ChangeRequest is the body of a change-set submission.
type ChangeRequest struct {
	Add    []string `json:"add"`
	Remove []string `json:"remove"`
}

// JobState is the lifecycle state of an apply job.
type JobState string

const (
	JobPending   JobState = "pending"
	JobRunning   JobState = "running"
	JobCompleted JobState = "completed"
	JobFailed    JobState = "failed"
)

// IsTerminal reports whether polling can stop.
func (s JobState) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed
}

// JobStatus is a snapshot of an apply job.
type JobStatus struct {
	JobID     string   `json:"job_id"`
	Status    JobState `json:"status"`
	Processed int      `json:"processed"`
	Total     int      `json:"total"`
	Error     string   `json:"error,omitempty"`
}

// Fraction returns progress in [0, 1].
func (j JobStatus) Fraction() float64 {
	if j.Total <= 0 {
		if j.Status == JobCompleted {
			return 1
		}
		return 0
	}
	f := float64(j.Processed) / float64(j.Total)
	if f > 1 {
		return 1
	}
	return f
}
