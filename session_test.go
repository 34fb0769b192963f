package libris

import (
	"testing"

	"github.com/libris-ai/libris/src/models"
)

func TestSessionRollbackOnlyRemovesUserTail(t *testing.T) {
	sess := NewSession()
	sess.appendTurn(models.RoleUser, "question")
	sess.appendTurn(models.RoleAssistant, "answer")

	sess.rollbackUser()
	if sess.Len() != 2 {
		t.Fatalf("rollback must not remove assistant turns, got %d", sess.Len())
	}

	sess.appendTurn(models.RoleUser, "doomed")
	sess.rollbackUser()
	turns := sess.Turns()
	if len(turns) != 2 || turns[len(turns)-1].Role != models.RoleAssistant {
		t.Fatalf("rollback should drop the trailing user turn, got %+v", turns)
	}
}

func TestSessionResetClearsHistoryAndCursor(t *testing.T) {
	sess := NewSession()
	sess.appendTurn(models.RoleUser, "hello")
	sess.SetReading(ReadingCursor{BookID: 7, Offset: 2000})

	sess.Reset()
	if sess.Len() != 0 {
		t.Fatalf("reset should clear turns")
	}
	if cur := sess.Reading(); cur.BookID != 0 || cur.Offset != 0 {
		t.Fatalf("reset should clear the reading cursor, got %+v", cur)
	}
}

func TestSessionTurnsReturnsSnapshot(t *testing.T) {
	sess := NewSession()
	sess.appendTurn(models.RoleUser, "original")

	snap := sess.Turns()
	snap[0].Text = "mutated"
	if sess.Turns()[0].Text != "original" {
		t.Fatalf("Turns must return a copy, not the backing slice")
	}
}
