package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/lumenlabs/lumen-analytics/internal/data/repos/testutil"
	types "github.com/lumenlabs/lumen-analytics/internal/domain"
	"github.com/lumenlabs/lumen-analytics/internal/pkg/dbctx"
)

func TestConsentGetEffectivePrefersCourseScope(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	repo := NewConsentRepo(db, testutil.Logger(t))

	ctx := context.Background()
	tenantID, studentID, courseID := uuid.New(), uuid.New(), uuid.New()

	testutil.SeedConsent(t, ctx, tx, tenantID, studentID, nil, func(c *types.PrivacyConsent) {
		c.PerformanceAnalyticsConsent = false
	})
	testutil.SeedConsent(t, ctx, tx, tenantID, studentID, &courseID, nil)

	got, err := repo.GetEffective(dbctx.WithTx(ctx, tx), tenantID, studentID, &courseID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil {
		t.Fatal("expected a consent record")
	}
	if got.CourseID == nil || *got.CourseID != courseID {
		t.Fatal("course-scoped record must win over the course-agnostic one")
	}
	if !got.PerformanceAnalyticsConsent {
		t.Fatal("got the wrong record")
	}
}

func TestConsentGetEffectiveFallsBackToCourseAgnostic(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	repo := NewConsentRepo(db, testutil.Logger(t))

	ctx := context.Background()
	tenantID, studentID, courseID := uuid.New(), uuid.New(), uuid.New()

	seeded := testutil.SeedConsent(t, ctx, tx, tenantID, studentID, nil, nil)

	got, err := repo.GetEffective(dbctx.WithTx(ctx, tx), tenantID, studentID, &courseID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.ID != seeded.ID {
		t.Fatal("expected fallback to the course-agnostic record")
	}
}

func TestConsentGetEffectiveMostRecentWins(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	repo := NewConsentRepo(db, testutil.Logger(t))

	ctx := context.Background()
	tenantID, studentID := uuid.New(), uuid.New()

	first := testutil.SeedConsent(t, ctx, tx, tenantID, studentID, nil, func(c *types.PrivacyConsent) {
		c.ConsentVersion = "v1"
	})
	testutil.SeedConsent(t, ctx, tx, tenantID, studentID, nil, func(c *types.PrivacyConsent) {
		c.ConsentVersion = "v2"
	})
	// Backdate the first record past GORM's automatic timestamping.
	old := time.Now().UTC().Add(-48 * time.Hour)
	if err := tx.Model(&types.PrivacyConsent{}).Where("id = ?", first.ID).UpdateColumn("updated_at", old).Error; err != nil {
		t.Fatalf("backdate consent: %v", err)
	}

	got, err := repo.GetEffective(dbctx.WithTx(ctx, tx), tenantID, studentID, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.ConsentVersion != "v2" {
		t.Fatalf("expected the most recently updated record, got %+v", got)
	}
}

func TestConsentGetEffectiveNoRecord(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	repo := NewConsentRepo(db, testutil.Logger(t))

	got, err := repo.GetEffective(dbctx.WithTx(context.Background(), tx), uuid.New(), uuid.New(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for an unknown student, got %+v", got)
	}
}
