package codegen

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
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
	if err := db.AutoMigrate(&models.User{}, &models.Requirement{}, &models.Sample{}, &models.CodeSequence{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func fixedClock(year int) func() time.Time {
	return func() time.Time { return time.Date(year, 6, 1, 12, 0, 0, 0, time.UTC) }
}

func TestFormat(t *testing.T) {
	tests := []struct {
		prefix string
		year   int
		n      int64
		want   string
	}{
		{"REQ", 2026, 1, "REQ-2026-000001"},
		{"QR", 2025, 42, "QR-2025-000042"},
		{"QR", 2026, 999999, "QR-2026-999999"},
		{"QR", 2026, 1000000, "QR-2026-1000000"},
	}
	for _, tt := range tests {
		if got := Format(tt.prefix, tt.year, tt.n); got != tt.want {
			t.Errorf("Format(%q, %d, %d) = %q, want %q", tt.prefix, tt.year, tt.n, got, tt.want)
		}
	}
}

func TestParse(t *testing.T) {
	prefix, year, n, err := Parse("REQ-2026-000123")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if prefix != "REQ" || year != 2026 || n != 123 {
		t.Errorf("Parse = %s %d %d", prefix, year, n)
	}

	for _, bad := range []string{"", "REQ-2026", "REQ-20x6-000001", "REQ-2026-abc", "A-B-C-D"} {
		if _, _, _, err := Parse(bad); err == nil {
			t.Errorf("Parse(%q) expected error", bad)
		}
	}
}

func TestLastIssued_Empty(t *testing.T) {
	db := testDB(t)
	n, err := LastIssued(db, PrefixRequirement, 2026)
	if err != nil {
		t.Fatalf("LastIssued: %v", err)
	}
	if n != 0 {
		t.Errorf("LastIssued = %d, want 0", n)
	}
}

func TestLastIssued_UsesMostRecentInYear(t *testing.T) {
	db := testDB(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := []models.Requirement{
		{Code: "REQ-2025-000900", RequesterID: "u", CreatedAt: base.Add(-time.Hour)},
		{Code: "REQ-2026-000004", RequesterID: "u", CreatedAt: base.Add(time.Hour)},
		{Code: "REQ-2026-000007", RequesterID: "u", CreatedAt: base.Add(2 * time.Hour)},
	}
	for i := range rows {
		if err := db.Create(&rows[i]).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	n, err := LastIssued(db, PrefixRequirement, 2026)
	if err != nil {
		t.Fatalf("LastIssued: %v", err)
	}
	if n != 7 {
		t.Errorf("LastIssued = %d, want 7", n)
	}
}

func TestLastIssued_UnknownPrefix(t *testing.T) {
	db := testDB(t)
	if _, err := LastIssued(db, "LOT", 2026); err == nil {
		t.Error("expected error for unknown prefix")
	}
}

func TestTableSequence_Sequential(t *testing.T) {
	db := testDB(t)
	gen := &Generator{Seq: TableSequence{}, Now: fixedClock(2026)}
	ctx := context.Background()

	seen := map[string]bool{}
	for i := 1; i <= 25; i++ {
		code, err := gen.Next(ctx, db, PrefixSample)
		if err != nil {
			t.Fatalf("Next #%d: %v", i, err)
		}
		want := fmt.Sprintf("QR-2026-%06d", i)
		if code != want {
			t.Errorf("Next #%d = %q, want %q", i, code, want)
		}
		if seen[code] {
			t.Fatalf("duplicate code %q", code)
		}
		seen[code] = true
	}
}

func TestTableSequence_PrefixesAndYearsIndependent(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	seq := TableSequence{}

	a, _ := seq.Next(ctx, db, PrefixRequirement, 2026)
	b, _ := seq.Next(ctx, db, PrefixSample, 2026)
	c, _ := seq.Next(ctx, db, PrefixRequirement, 2027)
	d, _ := seq.Next(ctx, db, PrefixRequirement, 2026)
	if a != 1 || b != 1 || c != 1 || d != 2 {
		t.Errorf("counters = %d %d %d %d, want 1 1 1 2", a, b, c, d)
	}
}

func TestTableSequence_SeedsFromExistingCodes(t *testing.T) {
	db := testDB(t)
	if err := db.Create(&models.Requirement{Code: "REQ-2026-000041", RequesterID: "u"}).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	gen := &Generator{Seq: TableSequence{}, Now: fixedClock(2026)}
	code, err := gen.Next(context.Background(), db, PrefixRequirement)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if code != "REQ-2026-000042" {
		t.Errorf("code = %q, want REQ-2026-000042", code)
	}
}

func TestTableSequence_RolledBackTransactionLeavesGapFree(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	seq := TableSequence{}

	if _, err := seq.Next(ctx, db, PrefixSample, 2026); err != nil {
		t.Fatalf("Next: %v", err)
	}
	_ = db.Transaction(func(tx *gorm.DB) error {
		if _, err := seq.Next(ctx, tx, PrefixSample, 2026); err != nil {
			return err
		}
		return fmt.Errorf("abort")
	})
	n, err := seq.Next(ctx, db, PrefixSample, 2026)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if n != 2 {
		t.Errorf("after rollback Next = %d, want 2", n)
	}
}

// fakeRedis is an in-memory stand-in for the go-redis client.
type fakeRedis struct {
	values map[string]int64
	incrs  int
}

func (f *fakeRedis) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	cmd := redis.NewBoolCmd(ctx)
	if _, ok := f.values[key]; ok {
		cmd.SetVal(false)
		return cmd
	}
	f.values[key] = value.(int64)
	cmd.SetVal(true)
	return cmd
}

func (f *fakeRedis) Incr(ctx context.Context, key string) *redis.IntCmd {
	f.incrs++
	f.values[key]++
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(f.values[key])
	return cmd
}

func TestRedisSequence(t *testing.T) {
	db := testDB(t)
	if err := db.Create(&models.Sample{QRCode: "QR-2026-000009", RequirementID: "r", Type: "pulp"}).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
	fake := &fakeRedis{values: map[string]int64{}}
	gen := &Generator{Seq: &RedisSequence{Client: fake}, Now: fixedClock(2026)}
	ctx := context.Background()

	first, err := gen.Next(ctx, db, PrefixSample)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	second, err := gen.Next(ctx, db, PrefixSample)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if first != "QR-2026-000010" || second != "QR-2026-000011" {
		t.Errorf("codes = %q, %q", first, second)
	}
	if _, ok := fake.values["labyard:seq:QR:2026"]; !ok {
		t.Errorf("expected default key, have %v", fake.values)
	}
}

func TestRedisSequence_KeyPrefix(t *testing.T) {
	r := &RedisSequence{KeyPrefix: "lims"}
	if got := r.Key("REQ", 2026); got != "lims:REQ:2026" {
		t.Errorf("Key = %q", got)
	}
}
