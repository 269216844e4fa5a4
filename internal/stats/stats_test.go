package stats

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/zulandar/labyard/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{},
		&models.AnalysisType{},
		&models.Requirement{},
		&models.Sample{},
		&models.Analysis{},
		&models.Storage{},
		&models.QREvent{},
	); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

// seed inserts n requirements, each with one sample and one analysis. The
// first of each is left at its initial status; the rest are moved on.
func seed(t *testing.T, db *gorm.DB, n int) {
	t.Helper()
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	u := &models.User{Email: "ana@lab.test", Name: "Ana Rojas", Role: models.RoleResearcher, Active: true}
	idle := &models.User{Email: "old@lab.test", Name: "Old", Role: models.RoleResearcher}
	at := &models.AnalysisType{Name: "pH", Active: true}
	for _, row := range []interface{}{u, idle, at} {
		if err := db.Create(row).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	if err := db.Model(idle).Update("active", false).Error; err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	for i := 0; i < n; i++ {
		created := base.Add(time.Duration(i) * time.Hour)
		reqStatus, smpStatus, anStatus := models.RequirementInProgress, models.SampleInAnalysis, models.AnalysisInProgress
		if i == 0 {
			reqStatus, smpStatus, anStatus = models.RequirementDraft, models.SampleExpected, models.AnalysisPending
		}
		req := &models.Requirement{Code: fmt.Sprintf("REQ-2026-%06d", i+1), RequesterID: u.ID, SampleType: "soil", Status: reqStatus, CreatedAt: created}
		if err := db.Omit("Requester", "Plant", "Samples").Create(req).Error; err != nil {
			t.Fatalf("seed requirement: %v", err)
		}
		smp := &models.Sample{QRCode: fmt.Sprintf("QR-2026-%06d", i+1), RequirementID: req.ID, Type: "soil", Status: smpStatus, CreatedAt: created}
		if err := db.Omit("Requirement", "Parent", "Children", "Analyses", "Storage", "QREvents").Create(smp).Error; err != nil {
			t.Fatalf("seed sample: %v", err)
		}
		an := &models.Analysis{SampleID: smp.ID, AnalysisTypeID: at.ID, Status: anStatus, CreatedAt: created}
		if err := db.Omit("Sample", "AnalysisType", "Analyst").Create(an).Error; err != nil {
			t.Fatalf("seed analysis: %v", err)
		}
		ev := &models.QREvent{SampleID: smp.ID, Type: models.EventScanned, UserID: u.ID, CreatedAt: created}
		if err := db.Omit("Sample", "User").Create(ev).Error; err != nil {
			t.Fatalf("seed event: %v", err)
		}
	}
}

func TestGetOverview(t *testing.T) {
	db := testDB(t)
	seed(t, db, 3)

	o, err := GetOverview(context.Background(), db)
	if err != nil {
		t.Fatalf("GetOverview: %v", err)
	}
	want := Totals{Requirements: 3, Samples: 3, Analyses: 3, Storage: 0, ActiveUsers: 1}
	if o.Totals != want {
		t.Errorf("Totals = %+v, want %+v", o.Totals, want)
	}
	if o.Pending != (PendingCounts{Requirements: 1, Samples: 1, Analyses: 1}) {
		t.Errorf("Pending = %+v", o.Pending)
	}
}

func TestGetPending(t *testing.T) {
	db := testDB(t)
	seed(t, db, 2)

	p, err := GetPending(context.Background(), db)
	if err != nil {
		t.Fatalf("GetPending: %v", err)
	}
	if len(p.Requirements) != 1 || p.Requirements[0].Code != "REQ-2026-000001" {
		t.Errorf("Requirements = %+v", p.Requirements)
	}
	if p.Requirements[0].Requester.Email != "ana@lab.test" {
		t.Error("requester not preloaded")
	}
	if len(p.Samples) != 1 || len(p.Analyses) != 1 {
		t.Errorf("Samples = %d Analyses = %d, want 1 and 1", len(p.Samples), len(p.Analyses))
	}
	if p.Analyses[0].AnalysisType.Name != "pH" {
		t.Error("analysis type not preloaded")
	}
}

func TestGetRecent(t *testing.T) {
	db := testDB(t)
	seed(t, db, RecentLimit+2)

	a, err := GetRecent(context.Background(), db)
	if err != nil {
		t.Fatalf("GetRecent: %v", err)
	}
	if len(a.Requirements) != RecentLimit || len(a.Samples) != RecentLimit ||
		len(a.Analyses) != RecentLimit || len(a.QREvents) != RecentLimit {
		t.Errorf("lengths = %d/%d/%d/%d, want %d each",
			len(a.Requirements), len(a.Samples), len(a.Analyses), len(a.QREvents), RecentLimit)
	}
	if a.Requirements[0].Code != fmt.Sprintf("REQ-2026-%06d", RecentLimit+2) {
		t.Errorf("newest requirement = %q", a.Requirements[0].Code)
	}
}
