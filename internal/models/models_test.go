package models

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

// gormTag extracts the gorm tag from a struct field.
func gormTag(t *testing.T, typ reflect.Type, fieldName string) string {
	t.Helper()
	f, ok := typ.FieldByName(fieldName)
	if !ok {
		t.Fatalf("%s.%s: field not found", typ.Name(), fieldName)
	}
	return f.Tag.Get("gorm")
}

// assertGormTag checks that a struct field's gorm tag contains the expected value.
func assertGormTag(t *testing.T, typ reflect.Type, fieldName, expected string) {
	t.Helper()
	tag := gormTag(t, typ, fieldName)
	if !strings.Contains(tag, expected) {
		t.Errorf("%s.%s gorm tag = %q, want to contain %q", typ.Name(), fieldName, tag, expected)
	}
}

// assertFieldType checks that a struct field has the expected Go type.
func assertFieldType(t *testing.T, typ reflect.Type, fieldName, expectedType string) {
	t.Helper()
	f, ok := typ.FieldByName(fieldName)
	if !ok {
		t.Fatalf("%s.%s: field not found", typ.Name(), fieldName)
	}
	got := f.Type.String()
	if got != expectedType {
		t.Errorf("%s.%s type = %q, want %q", typ.Name(), fieldName, got, expectedType)
	}
}

func TestUser_Fields(t *testing.T) {
	typ := reflect.TypeOf(User{})

	assertGormTag(t, typ, "ID", "primaryKey")
	assertGormTag(t, typ, "ID", "size:36")
	assertGormTag(t, typ, "Email", "uniqueIndex")
	assertGormTag(t, typ, "Email", "not null")
	assertGormTag(t, typ, "Role", "default:RESEARCHER")

	assertFieldType(t, typ, "Active", "bool")
	assertFieldType(t, typ, "CreatedAt", "time.Time")
}

func TestCatalog_Fields(t *testing.T) {
	plant := reflect.TypeOf(Plant{})
	assertGormTag(t, plant, "Code", "uniqueIndex")
	assertGormTag(t, plant, "Name", "not null")

	at := reflect.TypeOf(AnalysisType{})
	assertGormTag(t, at, "Name", "uniqueIndex")
	assertGormTag(t, at, "Description", "type:text")
	assertGormTag(t, at, "Active", "index")
	assertFieldType(t, at, "EstimatedHours", "int")
}

func TestRequirement_Fields(t *testing.T) {
	typ := reflect.TypeOf(Requirement{})

	assertGormTag(t, typ, "Code", "uniqueIndex")
	assertGormTag(t, typ, "RequesterID", "not null")
	assertGormTag(t, typ, "Status", "default:DRAFT")
	assertGormTag(t, typ, "Status", "index")
	assertGormTag(t, typ, "Attachments", "type:json")

	assertFieldType(t, typ, "PlantID", "*string")
	assertFieldType(t, typ, "AssignedLabID", "*string")
	assertFieldType(t, typ, "Attachments", "datatypes.JSONSlice[string]")
	assertFieldType(t, typ, "Requester", "models.User")
	assertFieldType(t, typ, "Samples", "[]models.Sample")
}

func TestSample_Fields(t *testing.T) {
	typ := reflect.TypeOf(Sample{})

	assertGormTag(t, typ, "QRCode", "column:qr_code")
	assertGormTag(t, typ, "QRCode", "uniqueIndex")
	assertGormTag(t, typ, "RequirementID", "not null")
	assertGormTag(t, typ, "Status", "default:EXPECTED")

	assertFieldType(t, typ, "ParentSampleID", "*string")
	assertFieldType(t, typ, "ReceivedAt", "*time.Time")
	assertFieldType(t, typ, "AnalysisStartedAt", "*time.Time")
	assertFieldType(t, typ, "AnalysisEndedAt", "*time.Time")
	assertFieldType(t, typ, "IsCounterSample", "bool")
}

func TestSample_Relations(t *testing.T) {
	typ := reflect.TypeOf(Sample{})

	assertGormTag(t, typ, "Requirement", "foreignKey:RequirementID")
	assertGormTag(t, typ, "Parent", "foreignKey:ParentSampleID")
	assertGormTag(t, typ, "Children", "foreignKey:ParentSampleID")
	assertGormTag(t, typ, "Analyses", "foreignKey:SampleID")
	assertGormTag(t, typ, "Storage", "foreignKey:SampleID")
	assertGormTag(t, typ, "QREvents", "foreignKey:SampleID")

	assertFieldType(t, typ, "Parent", "*models.Sample")
	assertFieldType(t, typ, "Children", "[]models.Sample")
	assertFieldType(t, typ, "Storage", "*models.Storage")
}

func TestAnalysis_Fields(t *testing.T) {
	typ := reflect.TypeOf(Analysis{})

	assertGormTag(t, typ, "SampleID", "not null")
	assertGormTag(t, typ, "AnalysisTypeID", "not null")
	assertGormTag(t, typ, "Status", "default:PENDING")
	assertGormTag(t, typ, "Results", "type:json")
	assertGormTag(t, typ, "Notes", "type:text")

	assertFieldType(t, typ, "AnalystID", "*string")
	assertFieldType(t, typ, "StartedAt", "*time.Time")
	assertFieldType(t, typ, "Results", "datatypes.JSONMap")
	assertFieldType(t, typ, "Analyst", "*models.User")
}

func TestStorage_Fields(t *testing.T) {
	typ := reflect.TypeOf(Storage{})

	assertGormTag(t, typ, "SampleID", "uniqueIndex")
	assertGormTag(t, typ, "Location", "not null")
	assertGormTag(t, typ, "Shelf", "not null")
	assertGormTag(t, typ, "Status", "default:OCCUPIED")
	assertGormTag(t, typ, "DeletionRequested", "default:false")
	assertGormTag(t, typ, "ExpiresAt", "index")

	assertFieldType(t, typ, "ExpiresAt", "*time.Time")
	assertFieldType(t, typ, "DeletionRequestedBy", "*string")
	assertFieldType(t, typ, "DeletionApprovedBy", "*string")
}

func TestQREvent_Fields(t *testing.T) {
	typ := reflect.TypeOf(QREvent{})

	assertGormTag(t, typ, "SampleID", "not null")
	assertGormTag(t, typ, "Type", "not null")
	assertGormTag(t, typ, "UserID", "not null")
	assertGormTag(t, typ, "Metadata", "type:json")

	assertFieldType(t, typ, "Metadata", "datatypes.JSONMap")
	assertFieldType(t, typ, "CreatedAt", "time.Time")
	if _, ok := typ.FieldByName("UpdatedAt"); ok {
		t.Error("QREvent must not carry UpdatedAt; rows are append-only")
	}
}

func TestCodeSequence_CompositeKey(t *testing.T) {
	typ := reflect.TypeOf(CodeSequence{})

	assertGormTag(t, typ, "Prefix", "primaryKey")
	assertGormTag(t, typ, "Year", "primaryKey")
	assertGormTag(t, typ, "Year", "autoIncrement:false")
	assertFieldType(t, typ, "Value", "int64")
}

func TestStatusLists(t *testing.T) {
	tests := []struct {
		name string
		list []string
		want int
	}{
		{"roles", Roles, 5},
		{"storage statuses", StorageStatuses, 4},
		{"event types", EventTypes, 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if len(tt.list) != tt.want {
				t.Errorf("len = %d, want %d", len(tt.list), tt.want)
			}
			seen := map[string]bool{}
			for _, v := range tt.list {
				if v != strings.ToUpper(v) {
					t.Errorf("%q is not upper case", v)
				}
				if seen[v] {
					t.Errorf("%q listed twice", v)
				}
				seen[v] = true
			}
		})
	}
}

func TestAssignID(t *testing.T) {
	u := &User{}
	if err := u.BeforeCreate(nil); err != nil {
		t.Fatal(err)
	}
	if len(u.ID) != 36 {
		t.Errorf("ID = %q, want a uuid", u.ID)
	}

	s := &Sample{ID: "fixed"}
	if err := s.BeforeCreate(nil); err != nil {
		t.Fatal(err)
	}
	if s.ID != "fixed" {
		t.Errorf("ID = %q, preset key must be kept", s.ID)
	}

	if NewID() == NewID() {
		t.Error("NewID returned the same value twice")
	}
}

func TestSample_Instantiation(t *testing.T) {
	now := time.Now()
	parent := "p-1"
	s := Sample{
		QRCode:          "QR-2026-000001",
		RequirementID:   "r-1",
		ParentSampleID:  &parent,
		Type:            "soil",
		Status:          SampleReceived,
		IsCounterSample: true,
		ReceivedAt:      &now,
	}
	if s.Status != "RECEIVED" || *s.ParentSampleID != "p-1" || s.ReceivedAt != &now {
		t.Errorf("unexpected sample: %+v", s)
	}
}
