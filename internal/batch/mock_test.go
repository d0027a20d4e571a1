package batch

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/R3v3ill3/rating-engine/internal/model"
)

// fakeStore is an in-memory Store shared by concurrent batch workers.
type fakeStore struct {
	mu sync.Mutex

	employers  map[string]model.Employer
	compliance map[string][]model.ComplianceAssessment
	ratings    []model.FinalRating
	audits     []model.AuditEntry

	// complianceHook, when set, runs at the start of every assessment read.
	// Tests use it to block a worker mid-computation or inject failures.
	complianceHook func(ctx context.Context, employerID string) error

	// complianceFailures fails that many assessment reads before recovering,
	// simulating transient store contention.
	complianceFailures int

	// auditErr, when set, fails every audit append.
	auditErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		employers:  make(map[string]model.Employer),
		compliance: make(map[string][]model.ComplianceAssessment),
	}
}

// seedEmployer registers an employer with one full set of compliance
// assessments at the given normalized score.
func (f *fakeStore) seedEmployer(id string, normScore float64, at time.Time) {
	f.employers[id] = model.Employer{ID: id, Name: id}
	raw := normScore*2 - 100
	for i, cat := range []string{"wages_compliance", "safety_compliance", "eba_adherence", "delegate_access"} {
		f.compliance[id] = append(f.compliance[id], model.ComplianceAssessment{
			ID:             id + "-c" + string(rune('a'+i)),
			EmployerID:     id,
			ProjectID:      "proj-1",
			AssessmentType: cat,
			Score:          raw,
			AssessmentDate: at,
		})
	}
}

func (f *fakeStore) ratingCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ratings)
}

func (f *fakeStore) GetEmployer(ctx context.Context, id string) (*model.Employer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.employers[id]
	if !ok {
		return nil, eris.Wrapf(model.ErrEmployerNotFound, "fake: employer %s", id)
	}
	return &e, nil
}

func (f *fakeStore) ListEmployerIDs(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.employers))
	for id := range f.employers {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeStore) ComplianceAssessments(ctx context.Context, employerID string, asOf time.Time) ([]model.ComplianceAssessment, error) {
	if f.complianceHook != nil {
		if err := f.complianceHook(ctx, employerID); err != nil {
			return nil, err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.complianceFailures > 0 {
		f.complianceFailures--
		return nil, eris.New("fake: database is locked")
	}
	return f.compliance[employerID], nil
}

func (f *fakeStore) ExpertiseAssessments(ctx context.Context, employerID string, asOf time.Time) ([]model.ExpertiseAssessment, error) {
	return nil, nil
}

func (f *fakeStore) GetProfile(ctx context.Context, name string, version int) (*model.WeightingProfile, error) {
	return nil, eris.Errorf("fake: profile %s not found", name)
}

func (f *fakeStore) SaveProfile(ctx context.Context, p model.WeightingProfile) (*model.WeightingProfile, error) {
	return &p, nil
}

func (f *fakeStore) ArchiveProfile(ctx context.Context, name string) error { return nil }

func (f *fakeStore) CurrentProfileVersion(ctx context.Context, name string) (int, error) {
	return 0, eris.Errorf("fake: profile %s not found", name)
}

func (f *fakeStore) InsertRating(ctx context.Context, r *model.FinalRating) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ratings = append(f.ratings, *r)
	return nil
}

func (f *fakeStore) LatestRating(ctx context.Context, employerID string) (*model.FinalRating, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *model.FinalRating
	for i := range f.ratings {
		r := f.ratings[i]
		if r.EmployerID != employerID {
			continue
		}
		if latest == nil || r.CalculationDate.After(latest.CalculationDate) {
			latest = &r
		}
	}
	return latest, nil
}

func (f *fakeStore) AppendAudit(ctx context.Context, e model.AuditEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.auditErr != nil {
		return f.auditErr
	}
	f.audits = append(f.audits, e)
	return nil
}

func (f *fakeStore) Migrate(ctx context.Context) error { return nil }
func (f *fakeStore) Close() error                      { return nil }
