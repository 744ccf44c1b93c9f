package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/mbsoft/ohmy-tracks/pkg/logger"
)

func newTestStorage(t *testing.T) *UploadStorage {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "uploads.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	storage, err := NewUploadStorage(db, logger.NewNop())
	if err != nil {
		t.Fatalf("NewUploadStorage: %v", err)
	}
	return storage
}

func TestUploadStorageRoundTrip(t *testing.T) {
	s := newTestStorage(t)

	id, err := s.SaveUpload("RoutePlan_0602.xlsx", "omnitracs", `{"routes":[]}`, 3, 41)
	if err != nil {
		t.Fatalf("SaveUpload: %v", err)
	}
	if id == "" {
		t.Fatal("empty upload ID")
	}

	record, err := s.GetUpload(id)
	if err != nil {
		t.Fatalf("GetUpload: %v", err)
	}
	if record == nil {
		t.Fatal("stored upload not found")
	}
	if record.FileName != "RoutePlan_0602.xlsx" || record.Format != "omnitracs" {
		t.Errorf("record = %+v", record)
	}
	if record.TotalRoutes != 3 || record.TotalDeliveries != 41 {
		t.Errorf("counts = %d/%d", record.TotalRoutes, record.TotalDeliveries)
	}
	if record.Payload != `{"routes":[]}` {
		t.Errorf("payload = %q", record.Payload)
	}
	if record.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}
}

func TestUploadStorageList(t *testing.T) {
	s := newTestStorage(t)

	if _, err := s.SaveUpload("a.xlsx", "omnitracs", "{}", 1, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SaveUpload("b.xlsx", "poc", "{}", 2, 2); err != nil {
		t.Fatal(err)
	}

	summaries, err := s.GetUploads()
	if err != nil {
		t.Fatalf("GetUploads: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("summaries = %d, want 2", len(summaries))
	}
}

func TestUploadStorageGetMissing(t *testing.T) {
	s := newTestStorage(t)

	record, err := s.GetUpload("no-such-id")
	if err != nil {
		t.Fatalf("GetUpload: %v", err)
	}
	if record != nil {
		t.Fatalf("record = %+v, want nil", record)
	}
}

func TestUploadStorageDelete(t *testing.T) {
	s := newTestStorage(t)

	id, err := s.SaveUpload("a.xlsx", "omnitracs", "{}", 1, 1)
	if err != nil {
		t.Fatal(err)
	}

	deleted, err := s.DeleteUpload(id)
	if err != nil {
		t.Fatalf("DeleteUpload: %v", err)
	}
	if !deleted {
		t.Fatal("existing upload reported not deleted")
	}

	deleted, err = s.DeleteUpload(id)
	if err != nil {
		t.Fatalf("DeleteUpload (repeat): %v", err)
	}
	if deleted {
		t.Fatal("second delete reported success")
	}
}
