package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/zulandar/labyard/internal/models"
	"github.com/zulandar/labyard/internal/workflow"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Plant{}, &models.AnalysisType{}, &models.Analysis{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	svc, err := New(db)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return svc, db
}

func TestCreateUser(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	u, err := svc.CreateUser(ctx, UserOpts{Email: " Ana@Lab.test ", Name: "Ana Rojas"})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if u.Email != "ana@lab.test" || u.Role != models.RoleResearcher || !u.Active {
		t.Errorf("user = %+v", u)
	}

	tests := []struct {
		name string
		opts UserOpts
	}{
		{"bad email", UserOpts{Email: "ana", Name: "Ana"}},
		{"no name", UserOpts{Email: "b@lab.test"}},
		{"bad role", UserOpts{Email: "c@lab.test", Name: "C", Role: "JANITOR"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateUser(ctx, tt.opts)
			var ve *workflow.ValidationError
			if !errors.As(err, &ve) {
				t.Errorf("got %v, want ValidationError", err)
			}
		})
	}

	_, err = svc.CreateUser(ctx, UserOpts{Email: "ana@lab.test", Name: "Other"})
	var ce *workflow.ConflictError
	if !errors.As(err, &ce) {
		t.Errorf("duplicate email: got %v, want ConflictError", err)
	}
}

func TestUsers_ListAndActivate(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()
	tech, _ := svc.CreateUser(ctx, UserOpts{Email: "t@lab.test", Name: "Tech", Role: models.RoleLabTech})
	if _, err := svc.CreateUser(ctx, UserOpts{Email: "r@lab.test", Name: "Res"}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	techs, err := svc.ListUsers(ctx, models.RoleLabTech)
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(techs) != 1 || techs[0].ID != tech.ID {
		t.Errorf("ListUsers(LAB_TECH) = %+v", techs)
	}

	if err := svc.SetUserActive(ctx, tech.ID, false); err != nil {
		t.Fatalf("SetUserActive: %v", err)
	}
	got, _ := svc.GetUser(ctx, tech.ID)
	if got.Active {
		t.Error("user should be inactive")
	}

	var nf *workflow.NotFoundError
	if err := svc.SetUserActive(ctx, "missing", true); !errors.As(err, &nf) {
		t.Errorf("got %v, want NotFoundError", err)
	}
}

func TestPlants(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	p, err := svc.CreatePlant(ctx, PlantOpts{Code: "pl-01", Name: "North plant"})
	if err != nil {
		t.Fatalf("CreatePlant: %v", err)
	}
	if p.Code != "PL-01" {
		t.Errorf("Code = %q, want PL-01", p.Code)
	}
	if _, err := svc.CreatePlant(ctx, PlantOpts{Code: "PL-01", Name: "Dup"}); err == nil {
		t.Error("duplicate plant code should fail")
	}
	plants, _ := svc.ListPlants(ctx)
	if len(plants) != 1 {
		t.Errorf("plants = %d, want 1", len(plants))
	}
}

func TestAnalysisTypes(t *testing.T) {
	svc, db := testService(t)
	ctx := context.Background()

	used, err := svc.CreateAnalysisType(ctx, AnalysisTypeOpts{Name: "pH", Method: "potentiometric", EstimatedHours: 2})
	if err != nil {
		t.Fatalf("CreateAnalysisType: %v", err)
	}
	unused, _ := svc.CreateAnalysisType(ctx, AnalysisTypeOpts{Name: "Moisture"})
	if _, err := svc.CreateAnalysisType(ctx, AnalysisTypeOpts{Name: "pH"}); err == nil {
		t.Error("duplicate name should fail")
	}

	a := &models.Analysis{SampleID: "s1", AnalysisTypeID: used.ID, Status: models.AnalysisPending}
	if err := db.Omit("Sample", "AnalysisType", "Analyst").Create(a).Error; err != nil {
		t.Fatalf("seed analysis: %v", err)
	}

	deleted, err := svc.RemoveAnalysisType(ctx, used.ID)
	if err != nil {
		t.Fatalf("RemoveAnalysisType(used): %v", err)
	}
	if deleted {
		t.Error("referenced type should be deactivated, not deleted")
	}
	deleted, err = svc.RemoveAnalysisType(ctx, unused.ID)
	if err != nil {
		t.Fatalf("RemoveAnalysisType(unused): %v", err)
	}
	if !deleted {
		t.Error("unreferenced type should be deleted")
	}

	all, _ := svc.ListAnalysisTypes(ctx, false)
	active, _ := svc.ListAnalysisTypes(ctx, true)
	if len(all) != 1 || len(active) != 0 {
		t.Errorf("all = %d active = %d, want 1 and 0", len(all), len(active))
	}

	if err := svc.SetAnalysisTypeActive(ctx, used.ID, true); err != nil {
		t.Fatalf("SetAnalysisTypeActive: %v", err)
	}
	active, _ = svc.ListAnalysisTypes(ctx, true)
	if len(active) != 1 {
		t.Errorf("active after reactivation = %d, want 1", len(active))
	}
}
