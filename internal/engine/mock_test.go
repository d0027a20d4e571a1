package engine

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/R3v3ill3/rating-engine/internal/model"
)

// fakeStore is an in-memory Store for engine and service tests.
type fakeStore struct {
	mu sync.Mutex

	employers  map[string]model.Employer
	compliance map[string][]model.ComplianceAssessment
	expertise  map[string][]model.ExpertiseAssessment
	profiles   map[string][]model.WeightingProfile
	ratings    []model.FinalRating
	audits     []model.AuditEntry

	complianceErr error
	insertErr     error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		employers:  make(map[string]model.Employer),
		compliance: make(map[string][]model.ComplianceAssessment),
		expertise:  make(map[string][]model.ExpertiseAssessment),
		profiles:   make(map[string][]model.WeightingProfile),
	}
}

func (f *fakeStore) addEmployer(id string) {
	f.employers[id] = model.Employer{ID: id, Name: id}
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
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.complianceErr != nil {
		return nil, f.complianceErr
	}
	return f.compliance[employerID], nil
}

func (f *fakeStore) ExpertiseAssessments(ctx context.Context, employerID string, asOf time.Time) ([]model.ExpertiseAssessment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.expertise[employerID], nil
}

func (f *fakeStore) GetProfile(ctx context.Context, name string, version int) (*model.WeightingProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	versions := f.profiles[name]
	if len(versions) == 0 {
		return nil, eris.Errorf("fake: profile %s not found", name)
	}
	if version == 0 {
		p := versions[len(versions)-1]
		return &p, nil
	}
	for _, p := range versions {
		if p.Version == version {
			return &p, nil
		}
	}
	return nil, eris.Errorf("fake: profile %s v%d not found", name, version)
}

func (f *fakeStore) SaveProfile(ctx context.Context, p model.WeightingProfile) (*model.WeightingProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p.Version = len(f.profiles[p.Name]) + 1
	f.profiles[p.Name] = append(f.profiles[p.Name], p)
	return &p, nil
}

func (f *fakeStore) ArchiveProfile(ctx context.Context, name string) error {
	return nil
}

func (f *fakeStore) CurrentProfileVersion(ctx context.Context, name string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	versions := f.profiles[name]
	if len(versions) == 0 {
		return 0, eris.Errorf("fake: profile %s not found", name)
	}
	return versions[len(versions)-1].Version, nil
}

func (f *fakeStore) InsertRating(ctx context.Context, r *model.FinalRating) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
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
	f.audits = append(f.audits, e)
	return nil
}

func (f *fakeStore) Migrate(ctx context.Context) error { return nil }
func (f *fakeStore) Close() error                      { return nil }
