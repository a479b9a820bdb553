package store

import (
	"testing"
	"time"
)

func TestGrantShareUpdatesInPlace(t *testing.T) {
	doc := Document{}
	doc.GrantShare("usr_1", PermissionView)
	doc.GrantShare("usr_1", PermissionView)
	if len(doc.SharedWith) != 1 {
		t.Fatalf("expected 1 share entry, got %d", len(doc.SharedWith))
	}
	if doc.SharedWith[0].Permission != PermissionView {
		t.Fatalf("expected view permission, got %s", doc.SharedWith[0].Permission)
	}

	doc.GrantShare("usr_1", PermissionEdit)
	if len(doc.SharedWith) != 1 {
		t.Fatalf("expected update in place, got %d entries", len(doc.SharedWith))
	}
	if doc.SharedWith[0].Permission != PermissionEdit {
		t.Fatalf("expected edit permission after update, got %s", doc.SharedWith[0].Permission)
	}
}

func TestRevokeShareIsNoOpWhenAbsent(t *testing.T) {
	doc := Document{}
	doc.GrantShare("usr_1", PermissionView)
	doc.RevokeShare("usr_2")
	if len(doc.SharedWith) != 1 {
		t.Fatalf("revoke of absent user must not change the list, got %d entries", len(doc.SharedWith))
	}
	doc.RevokeShare("usr_1")
	if len(doc.SharedWith) != 0 {
		t.Fatalf("expected empty share list, got %d entries", len(doc.SharedWith))
	}
}

func TestRecordMentionGrantsViewOnce(t *testing.T) {
	doc := Document{}
	if !doc.RecordMention("usr_1") {
		t.Fatal("first mention should be recorded")
	}
	if doc.RecordMention("usr_1") {
		t.Fatal("duplicate mention must be a no-op")
	}
	if len(doc.Mentions) != 1 {
		t.Fatalf("expected 1 mention, got %d", len(doc.Mentions))
	}
	perm, ok := doc.SharePermission("usr_1")
	if !ok || perm != PermissionView {
		t.Fatalf("expected auto-granted view share, got %q ok=%v", perm, ok)
	}
}

func TestRecordMentionNeverDowngradesEdit(t *testing.T) {
	doc := Document{}
	doc.GrantShare("usr_1", PermissionEdit)
	doc.RecordMention("usr_1")
	perm, _ := doc.SharePermission("usr_1")
	if perm != PermissionEdit {
		t.Fatalf("mention must not downgrade edit grant, got %s", perm)
	}
	if len(doc.SharedWith) != 1 {
		t.Fatalf("expected single share entry, got %d", len(doc.SharedWith))
	}
}

func TestSnapshotVersionCapturesPreImage(t *testing.T) {
	now := time.Now()
	doc := Document{Content: "v1"}
	doc.SnapshotVersion("usr_1", now)
	doc.Content = "v2"
	doc.SnapshotVersion("usr_1", now)
	doc.Content = "v3"

	if len(doc.Versions) != 2 {
		t.Fatalf("expected 2 versions, got %d", len(doc.Versions))
	}
	if doc.Versions[0].Content != "v1" || doc.Versions[1].Content != "v2" {
		t.Fatalf("versions must hold pre-images oldest first, got %+v", doc.Versions)
	}
	if doc.Content != "v3" {
		t.Fatalf("live content must be the latest value, got %s", doc.Content)
	}
}

func TestVisibleTo(t *testing.T) {
	public := DocumentSummary{AuthorID: "usr_1", Visibility: VisibilityPublic}
	private := DocumentSummary{AuthorID: "usr_1", Visibility: VisibilityPrivate}
	shared := DocumentSummary{
		AuthorID:   "usr_1",
		Visibility: VisibilityRestricted,
		SharedWith: []ShareEntry{{UserID: "usr_2", Permission: PermissionView}},
	}

	if !public.VisibleTo("") {
		t.Fatal("public document must be visible to anonymous callers")
	}
	if private.VisibleTo("") {
		t.Fatal("private document must be invisible to anonymous callers")
	}
	if !private.VisibleTo("usr_1") {
		t.Fatal("author must always see their document")
	}
	if private.VisibleTo("usr_2") {
		t.Fatal("non-author must not see a private document")
	}
	if !shared.VisibleTo("usr_2") {
		t.Fatal("shared user must see a restricted document")
	}
	if shared.VisibleTo("usr_3") {
		t.Fatal("unshared user must not see a restricted document")
	}
}

func TestAppendNotification(t *testing.T) {
	now := time.Now()
	user := User{}
	user.AppendNotification("You were mentioned in document 'Roadmap'", "doc_1", now)
	if len(user.Notifications) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(user.Notifications))
	}
	n := user.Notifications[0]
	if n.Read {
		t.Fatal("new notifications must be unread")
	}
	if n.DocumentID != "doc_1" {
		t.Fatalf("expected document ref doc_1, got %s", n.DocumentID)
	}
}
