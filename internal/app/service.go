package app

import (
	"context"
	"time"

	"quill/api/internal/auth"
	"quill/api/internal/authpw"
	"quill/api/internal/config"
	"quill/api/internal/email"
	"quill/api/internal/search"
	"quill/api/internal/store"
	"quill/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	Username     string
	Email        string
	JTI          string
	ExpiresAt    time.Time
}

type dataStore interface {
	CreateUser(context.Context, store.User) error
	GetUserByID(context.Context, string) (store.User, error)
	GetUserByEmail(context.Context, string) (store.User, error)
	ListUsersByIDs(context.Context, []string) (map[string]store.User, error)
	SaveUser(context.Context, store.User) error
	UpdateUserPassword(context.Context, string, string) error
	UpdateUserVerificationToken(context.Context, string, string, time.Time) error
	VerifyUserEmail(context.Context, string) error
	InsertDocument(context.Context, store.Document) error
	GetDocument(context.Context, string) (store.Document, error)
	FindDocumentByTitle(context.Context, string) (store.Document, error)
	SaveDocument(context.Context, store.Document) error
	ListDocumentSummaries(context.Context) ([]store.DocumentSummary, error)
	SearchDocuments(context.Context, string) ([]store.Document, error)
	GetDocumentsByIDs(context.Context, []string) ([]store.Document, error)
	SaveRefreshSession(context.Context, string, string, time.Time) error
	LookupRefreshSession(context.Context, string) (store.User, error)
	RevokeRefreshSession(context.Context, string) error
	RevokeAccessToken(context.Context, string, time.Time) error
	IsAccessTokenRevoked(context.Context, string) (bool, error)
	Ping(ctx context.Context) error
}

// sessionStore holds refresh tokens. The Postgres store implements it; a
// Redis store can be swapped in at construction.
type sessionStore interface {
	SaveRefreshSession(context.Context, string, string, time.Time) error
	LookupRefreshSession(context.Context, string) (store.User, error)
	RevokeRefreshSession(context.Context, string) error
}

type Service struct {
	cfg      config.Config
	store    dataStore
	sessions sessionStore
	authPw   *authpw.Service
	search   *search.Service
	email    *email.Service
}

func New(cfg config.Config, dataStore *store.PostgresStore, searchService *search.Service, emailService *email.Service) *Service {
	return &Service{
		cfg:      cfg,
		store:    dataStore,
		sessions: dataStore,
		authPw:   authpw.NewService(dataStore),
		search:   searchService,
		email:    emailService,
	}
}

// NewWithSessionStore builds a Service whose refresh tokens live in the
// given store instead of Postgres.
func NewWithSessionStore(cfg config.Config, dataStore *store.PostgresStore, sessions sessionStore, searchService *search.Service, emailService *email.Service) *Service {
	svc := New(cfg, dataStore, searchService, emailService)
	svc.sessions = sessions
	return svc
}

// Bootstrap performs startup work: a full search reindex so the index
// reflects whatever is already in the database.
func (s *Service) Bootstrap(ctx context.Context) error {
	if s.search != nil {
		s.search.ReindexAll(ctx)
	}
	return nil
}

func (s *Service) AuthPasswordService() *authpw.Service {
	return s.authPw
}

func (s *Service) SMTPConfigured() bool {
	return s.email != nil && s.email.IsConfigured()
}

// SendVerificationEmail delivers the verification mail. Best effort: a
// delivery failure never fails the signup that triggered it.
func (s *Service) SendVerificationEmail(to, username, token string) {
	if !s.SMTPConfigured() {
		return
	}
	go func() {
		_ = s.email.SendVerificationEmail(to, username, token)
	}()
}

func (s *Service) CreateSession(ctx context.Context, userID string) (Session, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	user, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	// The session store may only carry the user ID.
	full, err := s.store.GetUserByID(ctx, user.ID)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, full)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:   user.ID,
		Name:  user.Username,
		Email: user.Email,
		JTI:   jti,
		Exp:   expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user.ID, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		Username:     user.Username,
		Email:        user.Email,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.store.IsAccessTokenRevoked(ctx, claims.JTI)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}

	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		Username:  user.Username,
		Email:     user.Email,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, session Session, refreshToken string) error {
	if session.JTI != "" {
		_ = s.store.RevokeAccessToken(ctx, session.JTI, session.ExpiresAt)
	}
	if refreshToken != "" {
		_ = s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}
