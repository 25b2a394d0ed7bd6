package credential

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/LACC-DEVLINK/checkin-exercito-api/internal/models"
	"github.com/LACC-DEVLINK/checkin-exercito-api/pkg/logger"
	"github.com/LACC-DEVLINK/checkin-exercito-api/pkg/metrics"
)

const defaultBatchConcurrency = 8

// Issuing is the single-subject issuance used by the batch orchestrator.
type Issuing interface {
	Issue(ctx context.Context, subjectID, eventID string) (*models.Credential, error)
}

// BatchOutcome is the result for one subject of a batch, in input position.
type BatchOutcome struct {
	SubjectID  string             `json:"subject_id"`
	Credential *models.Credential `json:"credential,omitempty"`
	Err        error              `json:"-"`
}

// OK reports whether the subject received a credential.
func (o BatchOutcome) OK() bool {
	return o.Err == nil && o.Credential != nil
}

// FailedSubjects lists the subjects whose issuance failed, in input order, so
// callers can retry just that subset.
func FailedSubjects(outcomes []BatchOutcome) []string {
	var failed []string
	for _, o := range outcomes {
		if !o.OK() {
			failed = append(failed, o.SubjectID)
		}
	}
	return failed
}

// BatchOption customises the Batcher.
type BatchOption func(*Batcher)

// WithConcurrency bounds how many issuances run at once.
func WithConcurrency(n int) BatchOption {
	return func(b *Batcher) {
		if n > 0 {
			b.limit = n
		}
	}
}

// Batcher fans issuance out across many subjects.
type Batcher struct {
	issuer Issuing
	limit  int
	log    *zap.Logger
}

// NewBatcher constructs a Batcher around an issuer.
func NewBatcher(issuer Issuing, opts ...BatchOption) (*Batcher, error) {
	if issuer == nil {
		return nil, errors.New("batch: issuer is required")
	}

	b := &Batcher{
		issuer: issuer,
		limit:  defaultBatchConcurrency,
		log:    logger.WithModule("credential.batch"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// IssueBatch issues one credential per subject. Subjects are independent: a
// failure is captured in its slot and never stops the others. The result is
// aligned with subjectIDs.
func (b *Batcher) IssueBatch(ctx context.Context, subjectIDs []string, eventID string) []BatchOutcome {
	outcomes := make([]BatchOutcome, len(subjectIDs))
	if len(subjectIDs) == 0 {
		return outcomes
	}
	metrics.BatchSize.Observe(float64(len(subjectIDs)))

	// A plain Group: goroutines never return errors, so nothing is cancelled.
	var g errgroup.Group
	g.SetLimit(b.limit)

	for idx, subjectID := range subjectIDs {
		idx, subjectID := idx, subjectID
		g.Go(func() error {
			cred, err := b.issuer.Issue(ctx, subjectID, eventID)
			outcomes[idx] = BatchOutcome{SubjectID: subjectID, Credential: cred, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	failed := FailedSubjects(outcomes)
	b.log.Info("batch issuance finished",
		zap.Int("subjects", len(subjectIDs)),
		zap.Int("failed", len(failed)),
	)

	return outcomes
}
