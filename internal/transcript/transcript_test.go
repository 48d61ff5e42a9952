package transcript

import (
	"testing"

	"github.com/UniversalShopper/ShopperChat/internal/models"
	"github.com/UniversalShopper/ShopperChat/internal/store"
)

func TestLogAppendOrder(t *testing.T) {
	log := NewLog(nil)

	log.Append(models.RoleSystem, "welcome")
	log.Append(models.RoleUser, "create shop1")
	log.Append(models.RoleAssistant, "Creating new session 'shop1'.")

	entries := log.Entries()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	wantRoles := []models.Role{models.RoleSystem, models.RoleUser, models.RoleAssistant}
	for i, want := range wantRoles {
		if entries[i].Role != want {
			t.Errorf("entry %d role = %s, want %s", i, entries[i].Role, want)
		}
	}
	if log.Len() != 3 {
		t.Errorf("Len = %d, want 3", log.Len())
	}
}

func TestLogLast(t *testing.T) {
	log := NewLog(nil)
	if _, ok := log.Last(); ok {
		t.Error("Last on empty log should report false")
	}

	log.Append(models.RoleUser, "hello")
	last, ok := log.Last()
	if !ok || last.Content != "hello" {
		t.Errorf("unexpected last entry: %+v ok=%v", last, ok)
	}
}

func TestLogEntriesReturnsCopy(t *testing.T) {
	log := NewLog(nil)
	log.Append(models.RoleUser, "original")

	entries := log.Entries()
	entries[0].Content = "mutated"

	if got, _ := log.Last(); got.Content != "original" {
		t.Errorf("mutating the returned slice must not affect the log, got %q", got.Content)
	}
}

func TestLogMirrorsToStore(t *testing.T) {
	st := store.NewInMemoryStore()
	log := NewLog(st)

	log.Append(models.RoleAssistant, "Please paste the product URL.")

	stored, err := st.GetMessages()
	if err != nil {
		t.Fatalf("GetMessages returned error: %v", err)
	}
	if len(stored) != 1 || stored[0].Content != "Please paste the product URL." {
		t.Errorf("unexpected mirrored messages: %+v", stored)
	}
}
