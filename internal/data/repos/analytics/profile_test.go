package analytics

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/lumenlabs/lumen-analytics/internal/data/repos/testutil"
	types "github.com/lumenlabs/lumen-analytics/internal/domain"
	"github.com/lumenlabs/lumen-analytics/internal/pkg/dbctx"
)

func TestProfileUpsertConverges(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	repo := NewProfileRepo(db, testutil.Logger(t))

	ctx := context.Background()
	dbc := dbctx.WithTx(ctx, tx)
	tenantID, studentID, courseID := uuid.New(), uuid.New(), uuid.New()

	first, err := repo.Upsert(dbc, &types.StudentPerformanceProfile{
		TenantID:       tenantID,
		StudentID:      studentID,
		CourseID:       courseID,
		OverallMastery: 0.4,
	})
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	second, err := repo.Upsert(dbc, &types.StudentPerformanceProfile{
		TenantID:       tenantID,
		StudentID:      studentID,
		CourseID:       courseID,
		OverallMastery: 0.7,
	})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	if second.ID != first.ID {
		t.Fatal("upserts for the same (tenant, student, course) must converge on one row")
	}
	if second.OverallMastery != 0.7 {
		t.Fatalf("mastery = %v, want the newer calculation 0.7", second.OverallMastery)
	}

	rows, err := repo.ListByCourse(dbc, tenantID, courseID)
	if err != nil {
		t.Fatalf("list by course: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
}

func TestConceptMasteryUpsertBatch(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	profiles := NewProfileRepo(db, testutil.Logger(t))
	masteries := NewConceptMasteryRepo(db, testutil.Logger(t))

	ctx := context.Background()
	dbc := dbctx.WithTx(ctx, tx)
	profile, err := profiles.Upsert(dbc, &types.StudentPerformanceProfile{
		TenantID:  uuid.New(),
		StudentID: uuid.New(),
		CourseID:  uuid.New(),
	})
	if err != nil {
		t.Fatalf("upsert profile: %v", err)
	}

	if err := masteries.UpsertBatch(dbc, []*types.ConceptMastery{
		{ProfileID: profile.ID, Concept: "algebra", MasteryLevel: 0.4, ImprovementTrend: types.TrendStable},
		{ProfileID: profile.ID, Concept: "geometry", MasteryLevel: 0.8, ImprovementTrend: types.TrendImproving},
	}); err != nil {
		t.Fatalf("first batch: %v", err)
	}
	if err := masteries.UpsertBatch(dbc, []*types.ConceptMastery{
		{ProfileID: profile.ID, Concept: "algebra", MasteryLevel: 0.6, ImprovementTrend: types.TrendImproving},
	}); err != nil {
		t.Fatalf("second batch: %v", err)
	}

	rows, err := masteries.ListByProfile(dbc, profile.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	// Sorted ascending by mastery level.
	if rows[0].Concept != "algebra" || rows[0].MasteryLevel != 0.6 {
		t.Fatalf("algebra row not updated in place: %+v", rows[0])
	}
}
