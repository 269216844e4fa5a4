package qrevent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/zulandar/labyard/internal/models"
	"github.com/zulandar/labyard/internal/workflow"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fixture struct {
	svc    *Service
	db     *gorm.DB
	now    time.Time
	user   *models.User
	sample *models.Sample
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Requirement{}, &models.Sample{}, &models.Storage{}, &models.QREvent{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}

	u := &models.User{Email: "wh@lab.test", Name: "Marta Gil", Role: models.RoleWarehouse, Active: true}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	req := &models.Requirement{Code: "REQ-2026-000001", RequesterID: u.ID, SampleType: "soil", Status: models.RequirementInProgress}
	if err := db.Omit("Requester", "Plant", "Samples").Create(req).Error; err != nil {
		t.Fatalf("seed requirement: %v", err)
	}
	smp := &models.Sample{QRCode: "QR-2026-000001", RequirementID: req.ID, Type: "soil", Status: models.SampleReceived}
	if err := db.Omit("Requirement", "Parent", "Children", "Analyses", "Storage", "QREvents").Create(smp).Error; err != nil {
		t.Fatalf("seed sample: %v", err)
	}

	f := &fixture{db: db, now: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC), user: u, sample: smp}
	f.svc, err = New(db, func() time.Time { return f.now })
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return f
}

// record adds an event and advances the clock by a minute.
func (f *fixture) record(t *testing.T, typ, location string) *models.QREvent {
	t.Helper()
	ev, err := f.svc.Record(context.Background(), RecordOpts{
		QRCode:   f.sample.QRCode,
		Type:     typ,
		UserID:   f.user.ID,
		Location: location,
	})
	if err != nil {
		t.Fatalf("Record(%s): %v", typ, err)
	}
	f.now = f.now.Add(time.Minute)
	return ev
}

func TestNew_RequiresDB(t *testing.T) {
	if _, err := New(nil, nil); err == nil {
		t.Error("expected error without db")
	}
}

func TestRecord(t *testing.T) {
	f := setup(t)
	ev, err := f.svc.Record(context.Background(), RecordOpts{
		QRCode:   f.sample.QRCode,
		Type:     models.EventMoved,
		UserID:   f.user.ID,
		Location: "Dock 2",
		Metadata: map[string]interface{}{"temperature": "4C"},
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if ev.SampleID != f.sample.ID || ev.Type != models.EventMoved || ev.Metadata["temperature"] != "4C" {
		t.Errorf("event = %+v", ev)
	}
	if !ev.CreatedAt.Equal(f.now) {
		t.Errorf("CreatedAt = %v, want %v", ev.CreatedAt, f.now)
	}
}

func TestRecord_Validation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	tests := []struct {
		name       string
		opts       RecordOpts
		wantEntity workflow.Entity
	}{
		{"unknown sample", RecordOpts{QRCode: "QR-2026-999999", Type: models.EventScanned, UserID: f.user.ID}, workflow.Sample},
		{"unknown user", RecordOpts{QRCode: f.sample.QRCode, Type: models.EventScanned, UserID: "nope"}, workflow.User},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Record(ctx, tt.opts)
			var nf *workflow.NotFoundError
			if !errors.As(err, &nf) || nf.Entity != tt.wantEntity {
				t.Errorf("got %v, want %s NotFoundError", err, tt.wantEntity)
			}
		})
	}

	_, err := f.svc.Record(ctx, RecordOpts{QRCode: f.sample.QRCode, Type: "TELEPORTED", UserID: f.user.ID})
	var ve *workflow.ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("unknown type: got %v, want ValidationError", err)
	}
}

func TestQueries(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.record(t, models.EventScanned, "Reception desk")
	f.record(t, models.EventReceived, "Reception desk")
	f.record(t, models.EventStored, "Cold room A")

	trail, err := f.svc.ByQRCode(ctx, f.sample.QRCode)
	if err != nil {
		t.Fatalf("ByQRCode: %v", err)
	}
	if len(trail.Events) != 3 || trail.Events[0].Type != models.EventStored {
		t.Errorf("ByQRCode events = %+v, want newest first", trail.Events)
	}

	timeline, err := f.svc.Timeline(ctx, f.sample.ID)
	if err != nil {
		t.Fatalf("Timeline: %v", err)
	}
	if len(timeline) != 3 || timeline[0].Type != models.EventScanned {
		t.Errorf("Timeline = %+v, want oldest first", timeline)
	}
	if _, err := f.svc.Timeline(ctx, "missing"); err == nil {
		t.Error("Timeline(missing) should fail")
	}

	byType, err := f.svc.ByType(ctx, models.EventReceived)
	if err != nil {
		t.Fatalf("ByType: %v", err)
	}
	if len(byType) != 1 {
		t.Errorf("ByType = %d, want 1", len(byType))
	}

	recent, err := f.svc.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 2 || recent[0].Type != models.EventStored {
		t.Errorf("Recent = %+v", recent)
	}

	found, err := f.svc.SearchLocation(ctx, "desk")
	if err != nil {
		t.Fatalf("SearchLocation: %v", err)
	}
	if len(found) != 2 {
		t.Errorf("SearchLocation = %d, want 2", len(found))
	}
}

func TestStatistics(t *testing.T) {
	f := setup(t)
	f.record(t, models.EventScanned, "")
	f.now = f.now.Add(48 * time.Hour)
	f.record(t, models.EventScanned, "")
	f.record(t, models.EventMoved, "")

	st, err := f.svc.Statistics(context.Background())
	if err != nil {
		t.Fatalf("Statistics: %v", err)
	}
	if st.Total != 3 || st.ByType[models.EventScanned] != 2 || st.ByType[models.EventMoved] != 1 {
		t.Errorf("stats = %+v", st)
	}
	if st.Last24h != 2 {
		t.Errorf("Last24h = %d, want 2", st.Last24h)
	}
}
