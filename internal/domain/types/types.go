// Package types holds the shapes shared by the service and the HTTP API.
package types

import (
	"github.com/okian/moncell/internal/domain/entry"
	"github.com/okian/moncell/internal/domain/model"
)

// Catalog lists the choices offered by the entry form.
type Catalog struct {
	TeamMembers []string
	MetricNames []string
}

// Submission is one entry form post. ID makes replays idempotent; an empty ID
// is replaced by a generated one.
type Submission struct {
	ID string
	entry.Candidate
}

// Receipt describes the outcome of a submission.
type Receipt struct {
	SubmissionID string
	Duplicate    bool
	Record       model.MetricRecord
	Pending      int
}
