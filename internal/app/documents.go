package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"quill/api/internal/export"
	"quill/api/internal/search"
	"quill/api/internal/store"
	"quill/api/internal/util"
)

type CreateDocumentInput struct {
	Title      string `json:"title"`
	Content    string `json:"content"`
	Visibility string `json:"visibility"`
}

// EditDocumentInput carries a partial update. Empty fields are left
// untouched; there is no way to set a field to the empty string.
type EditDocumentInput struct {
	Title      string `json:"title"`
	Content    string `json:"content"`
	Visibility string `json:"visibility"`
}

// UserRef is the public identity of a user, for embedding in responses.
type UserRef struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// VersionView is a version entry with its editor identity resolved.
type VersionView struct {
	Content    string    `json:"content"`
	ModifiedAt time.Time `json:"modifiedAt"`
	Editor     UserRef   `json:"editor"`
}

// NotificationView is a notification with its document title resolved.
type NotificationView struct {
	Message       string    `json:"message"`
	DocumentID    string    `json:"documentId"`
	DocumentTitle string    `json:"documentTitle"`
	Read          bool      `json:"read"`
	CreatedAt     time.Time `json:"createdAt"`
}

func (s *Service) CreateDocument(ctx context.Context, input CreateDocumentInput, authorID string) (store.Document, error) {
	if input.Title == "" || input.Content == "" || authorID == "" {
		return store.Document{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title, content, and author are required", nil)
	}
	visibility := input.Visibility
	if visibility == "" {
		visibility = store.VisibilityPrivate
	}
	if !store.ValidVisibility(visibility) {
		return store.Document{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "visibility must be private, public, or restricted", nil)
	}

	if _, err := s.store.FindDocumentByTitle(ctx, input.Title); err == nil {
		return store.Document{}, domainError(http.StatusConflict, "CONFLICT", "A document with this title already exists", nil)
	} else if !errors.Is(err, sql.ErrNoRows) {
		return store.Document{}, err
	}

	doc := store.Document{
		ID:           util.NewID("doc"),
		Title:        input.Title,
		AuthorID:     authorID,
		Content:      input.Content,
		Visibility:   visibility,
		LastModified: time.Now(),
	}
	if err := s.store.InsertDocument(ctx, doc); err != nil {
		return store.Document{}, err
	}

	s.indexDocument(doc)
	return doc, nil
}

func (s *Service) EditDocument(ctx context.Context, documentID string, input EditDocumentInput, editorID string) (store.Document, error) {
	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return store.Document{}, err
	}
	if input.Visibility != "" && !store.ValidVisibility(input.Visibility) {
		return store.Document{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "visibility must be private, public, or restricted", nil)
	}

	now := time.Now()
	if input.Title != "" {
		doc.Title = input.Title
	}
	if input.Content != "" && input.Content != doc.Content {
		doc.SnapshotVersion(editorID, now)
		doc.Content = input.Content
	}
	if input.Visibility != "" {
		doc.Visibility = input.Visibility
	}
	doc.LastModified = now

	if err := s.store.SaveDocument(ctx, doc); err != nil {
		return store.Document{}, err
	}

	s.indexDocument(doc)
	return doc, nil
}

func (s *Service) GrantShare(ctx context.Context, documentID, userID, permission string) ([]store.ShareEntry, error) {
	if userID == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "userId is required", nil)
	}
	if !store.ValidPermission(permission) {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "permission must be view or edit", nil)
	}

	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	doc.GrantShare(userID, permission)
	if err := s.store.SaveDocument(ctx, doc); err != nil {
		return nil, err
	}
	return doc.SharedWith, nil
}

func (s *Service) RevokeShare(ctx context.Context, documentID, userID string) ([]store.ShareEntry, error) {
	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	doc.RevokeShare(userID)
	if err := s.store.SaveDocument(ctx, doc); err != nil {
		return nil, err
	}
	return doc.SharedWith, nil
}

// Mention records that mentionedUserID was mentioned in the document. A
// repeated mention is a full no-op. A first mention grants a view share
// when the user has none, then notifies the mentioned user. The document
// write and the notification write are independent; a notification failure
// does not roll back the mention.
func (s *Service) Mention(ctx context.Context, documentID, mentionedUserID string) error {
	if mentionedUserID == "" {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "userId is required", nil)
	}

	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return err
	}
	if !doc.RecordMention(mentionedUserID) {
		return nil
	}
	if err := s.store.SaveDocument(ctx, doc); err != nil {
		return err
	}

	user, err := s.store.GetUserByID(ctx, mentionedUserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return err
	}
	user.AppendNotification(fmt.Sprintf("You were mentioned in document '%s'", doc.Title), doc.ID, time.Now())
	if err := s.store.SaveUser(ctx, user); err != nil {
		return err
	}

	if s.SMTPConfigured() {
		go func() {
			if err := s.email.SendMentionEmail(user.Email, user.Username, doc.Title); err != nil {
				log.Printf("mention email to %s failed: %v", user.Email, err)
			}
		}()
	}
	return nil
}

// ListVisible returns summaries of the documents the requester may see:
// their own, public ones, and ones shared with them. Without a requester
// only public documents are returned.
func (s *Service) ListVisible(ctx context.Context, requesterID string) ([]store.DocumentSummary, error) {
	summaries, err := s.store.ListDocumentSummaries(ctx)
	if err != nil {
		return nil, err
	}
	visible := make([]store.DocumentSummary, 0, len(summaries))
	for i := range summaries {
		if summaries[i].VisibleTo(requesterID) {
			visible = append(visible, summaries[i])
		}
	}
	return visible, nil
}

// Search returns full documents whose title or content contains the query,
// case-insensitively. Results are not filtered by visibility.
func (s *Service) Search(ctx context.Context, query string) ([]store.Document, error) {
	if s.search != nil {
		return s.search.Search(ctx, query)
	}
	return s.store.SearchDocuments(ctx, query)
}

// Versions returns the document's version history, oldest first, with each
// editor's identity resolved.
func (s *Service) Versions(ctx context.Context, documentID string) ([]VersionView, error) {
	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}

	editorIDs := make([]string, 0, len(doc.Versions))
	seen := make(map[string]bool)
	for _, v := range doc.Versions {
		if !seen[v.ModifiedBy] {
			seen[v.ModifiedBy] = true
			editorIDs = append(editorIDs, v.ModifiedBy)
		}
	}
	editors, err := s.store.ListUsersByIDs(ctx, editorIDs)
	if err != nil {
		return nil, err
	}

	views := make([]VersionView, 0, len(doc.Versions))
	for _, v := range doc.Versions {
		editor := UserRef{ID: v.ModifiedBy}
		if u, ok := editors[v.ModifiedBy]; ok {
			editor.Username = u.Username
			editor.Email = u.Email
		}
		views = append(views, VersionView{
			Content:    v.Content,
			ModifiedAt: v.ModifiedAt,
			Editor:     editor,
		})
	}
	return views, nil
}

// GetDocument returns the full document with its author identity resolved.
func (s *Service) GetDocument(ctx context.Context, documentID string) (store.Document, UserRef, error) {
	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return store.Document{}, UserRef{}, err
	}
	author := UserRef{ID: doc.AuthorID}
	if u, err := s.store.GetUserByID(ctx, doc.AuthorID); err == nil {
		author.Username = u.Username
		author.Email = u.Email
	}
	return doc, author, nil
}

// ExportDocument renders the document in the requested format.
func (s *Service) ExportDocument(ctx context.Context, documentID string, format export.Format) (*export.Result, error) {
	if !export.ValidFormat(format) {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "format must be html, markdown, or pdf", nil)
	}
	doc, author, err := s.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	authorName := author.Username
	if authorName == "" {
		authorName = author.ID
	}
	return export.Export(export.Request{
		Title:        doc.Title,
		Content:      doc.Content,
		Author:       authorName,
		LastModified: doc.LastModified,
		Format:       format,
	})
}

// Notifications returns a user's notification feed with document titles
// resolved. A notification whose document has since disappeared keeps its
// reference but carries an empty title.
func (s *Service) Notifications(ctx context.Context, userID string) ([]NotificationView, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	docIDs := make([]string, 0, len(user.Notifications))
	seen := make(map[string]bool)
	for _, n := range user.Notifications {
		if n.DocumentID != "" && !seen[n.DocumentID] {
			seen[n.DocumentID] = true
			docIDs = append(docIDs, n.DocumentID)
		}
	}
	titles := make(map[string]string, len(docIDs))
	if len(docIDs) > 0 {
		docs, err := s.store.GetDocumentsByIDs(ctx, docIDs)
		if err != nil {
			return nil, err
		}
		for _, d := range docs {
			titles[d.ID] = d.Title
		}
	}

	views := make([]NotificationView, 0, len(user.Notifications))
	for _, n := range user.Notifications {
		views = append(views, NotificationView{
			Message:       n.Message,
			DocumentID:    n.DocumentID,
			DocumentTitle: titles[n.DocumentID],
			Read:          n.Read,
			CreatedAt:     n.CreatedAt,
		})
	}
	return views, nil
}

// SharedDocuments returns the user-side share mirror as stored. Share
// operations do not maintain it, so it reflects only what was written to
// it directly.
func (s *Service) SharedDocuments(ctx context.Context, userID string) ([]store.SharedDocument, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.SharedDocuments == nil {
		return []store.SharedDocument{}, nil
	}
	return user.SharedDocuments, nil
}

func (s *Service) indexDocument(doc store.Document) {
	if s.search == nil {
		return
	}
	s.search.IndexDocument(search.DocumentRecord{
		ID:      doc.ID,
		Title:   doc.Title,
		Content: doc.Content,
	})
}
