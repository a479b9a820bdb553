package store

import "time"

const (
	VisibilityPrivate    = "private"
	VisibilityPublic     = "public"
	VisibilityRestricted = "restricted"

	PermissionView = "view"
	PermissionEdit = "edit"
)

// Notification is one entry in a user's notification feed. The feed is
// append-only; read state defaults to false and is never mutated here.
type Notification struct {
	Message    string    `json:"message"`
	DocumentID string    `json:"documentId"`
	Read       bool      `json:"read"`
	CreatedAt  time.Time `json:"createdAt"`
}

// SharedDocument mirrors a share grant on the user side. The mirror is not
// written by share or revoke operations and can lag the document's own list.
type SharedDocument struct {
	DocumentID string `json:"documentId"`
	Permission string `json:"permission"`
}

type User struct {
	ID                    string
	Username              string
	Email                 string
	PasswordHash          string
	IsEmailVerified       bool
	VerificationToken     string
	VerificationExpiresAt *time.Time
	Notifications         []Notification
	SharedDocuments       []SharedDocument
	CreatedAt             time.Time
}

// AppendNotification adds an unread notification to the end of the feed.
func (u *User) AppendNotification(message, documentID string, now time.Time) {
	u.Notifications = append(u.Notifications, Notification{
		Message:    message,
		DocumentID: documentID,
		Read:       false,
		CreatedAt:  now,
	})
}

// ShareEntry grants one user view or edit access to a document.
type ShareEntry struct {
	UserID     string `json:"userId"`
	Permission string `json:"permission"`
}

// Version is a pre-image snapshot: the content a document held immediately
// before the edit that created the entry.
type Version struct {
	Content    string    `json:"content"`
	ModifiedAt time.Time `json:"modifiedAt"`
	ModifiedBy string    `json:"modifiedBy"`
}

type Document struct {
	ID           string
	Title        string
	AuthorID     string
	Content      string
	Visibility   string
	SharedWith   []ShareEntry
	Mentions     []string
	Versions     []Version
	LastModified time.Time
}

// DocumentSummary is a document without its content, for listings.
type DocumentSummary struct {
	ID           string
	Title        string
	AuthorID     string
	Visibility   string
	SharedWith   []ShareEntry
	LastModified time.Time
}

// GrantShare adds a share entry for userID, or updates the existing entry's
// permission in place. The list never holds two entries for the same user.
func (d *Document) GrantShare(userID, permission string) {
	for i := range d.SharedWith {
		if d.SharedWith[i].UserID == userID {
			d.SharedWith[i].Permission = permission
			return
		}
	}
	d.SharedWith = append(d.SharedWith, ShareEntry{UserID: userID, Permission: permission})
}

// RevokeShare removes any entry for userID. Removing an absent user is a no-op.
func (d *Document) RevokeShare(userID string) {
	kept := d.SharedWith[:0]
	for _, entry := range d.SharedWith {
		if entry.UserID != userID {
			kept = append(kept, entry)
		}
	}
	d.SharedWith = kept
}

// SharePermission reports the permission held by userID, if any.
func (d *Document) SharePermission(userID string) (string, bool) {
	for _, entry := range d.SharedWith {
		if entry.UserID == userID {
			return entry.Permission, true
		}
	}
	return "", false
}

// IsMentioned reports whether userID is already in the mention set.
func (d *Document) IsMentioned(userID string) bool {
	for _, id := range d.Mentions {
		if id == userID {
			return true
		}
	}
	return false
}

// RecordMention adds userID to the mention set and grants view access unless
// a share entry already exists, so an existing edit grant is never
// downgraded. Returns false without touching anything when the user is
// already mentioned.
func (d *Document) RecordMention(userID string) bool {
	if d.IsMentioned(userID) {
		return false
	}
	d.Mentions = append(d.Mentions, userID)
	if _, shared := d.SharePermission(userID); !shared {
		d.SharedWith = append(d.SharedWith, ShareEntry{UserID: userID, Permission: PermissionView})
	}
	return true
}

// SnapshotVersion appends the current content as a pre-image version entry.
// Callers invoke this before overwriting Content, and only when the new
// content differs by value.
func (d *Document) SnapshotVersion(editorID string, now time.Time) {
	d.Versions = append(d.Versions, Version{
		Content:    d.Content,
		ModifiedAt: now,
		ModifiedBy: editorID,
	})
}

// VisibleTo is the listing predicate: author, public, or shared with the
// requester. An empty requester sees only public documents.
func (d *DocumentSummary) VisibleTo(requesterID string) bool {
	if d.Visibility == VisibilityPublic {
		return true
	}
	if requesterID == "" {
		return false
	}
	if d.AuthorID == requesterID {
		return true
	}
	for _, entry := range d.SharedWith {
		if entry.UserID == requesterID {
			return true
		}
	}
	return false
}

func ValidVisibility(value string) bool {
	switch value {
	case VisibilityPrivate, VisibilityPublic, VisibilityRestricted:
		return true
	}
	return false
}

func ValidPermission(value string) bool {
	return value == PermissionView || value == PermissionEdit
}
