package app

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"log"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"contractops/api/internal/config"
	"contractops/api/internal/gitrepo"
	"contractops/api/internal/realtime"
	"contractops/api/internal/search"
	"contractops/api/internal/store"
	"contractops/api/internal/util"
)

// Session is the resolved identity behind an access token.
type Session struct {
	Token     string
	UserID    int64
	Email     string
	FullName  string
	ExpiresAt time.Time
}

type CreateProjectInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

type CreateContractInput struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Status  string `json:"status"`
}

type UpdateContractInput struct {
	Title  string `json:"title"`
	Status string `json:"status"`
}

type CreateCommentInput struct {
	Body       string `json:"body"`
	LineNumber *int   `json:"lineNumber"`
}

type dataStore interface {
	CreateUser(ctx context.Context, email, fullName, passwordHash string) (store.User, error)
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	GetUserByID(ctx context.Context, userID int64) (store.User, error)

	CreateProject(ctx context.Context, project store.Project) (store.Project, error)
	GetProject(ctx context.Context, projectID int64) (store.Project, error)
	ListProjects(ctx context.Context, ownerID int64) ([]store.Project, error)
	UpdateProject(ctx context.Context, projectID int64, name, description, status string) (store.Project, error)
	DeleteProject(ctx context.Context, projectID int64) error

	CreateContract(ctx context.Context, contract store.Contract) (store.Contract, error)
	GetContract(ctx context.Context, contractID int64) (store.Contract, error)
	ListContractsByProject(ctx context.Context, projectID int64) ([]store.Contract, error)
	UpdateContract(ctx context.Context, contractID int64, title, status string) (store.Contract, error)
	UpdateContractContent(ctx context.Context, contractID int64, content string, wordCount int) (store.Contract, error)
	DeleteContract(ctx context.Context, contractID int64) error
	LockContract(ctx context.Context, contractID, userID int64) (bool, error)
	UnlockContract(ctx context.Context, contractID, userID int64) error

	CreateComment(ctx context.Context, comment store.Comment) (store.Comment, error)
	ListComments(ctx context.Context, contractID int64) ([]store.Comment, error)
	ResolveComment(ctx context.Context, commentID int64) (bool, error)

	ProjectStats(ctx context.Context, projectID int64) (store.ProjectStats, error)
	OwnerStats(ctx context.Context, ownerID int64) (store.OwnerStats, error)
	ContractCommentStats(ctx context.Context, contractID int64) (store.CommentStats, error)

	Ping(ctx context.Context) error
}

type sessionStore interface {
	SaveAccessToken(ctx context.Context, tokenHash string, userID int64, expiresAt time.Time) error
	LookupAccessToken(ctx context.Context, tokenHash string) (int64, error)
	RevokeAccessToken(ctx context.Context, tokenHash string) error
}

type gitService interface {
	EnsureContractRepo(contractID int64, content, author string) error
	CommitContent(contractID int64, content, author, message string) (gitrepo.CommitInfo, error)
	History(contractID int64, limit int) ([]gitrepo.CommitInfo, error)
	ContentAt(contractID int64, hash string) (string, error)
}

type searchService interface {
	Search(ctx context.Context, query string, limit int) search.Response
	IndexContract(rec search.ContractRecord)
	DeleteContract(id int64)
}

type presenceLister interface {
	ListActive(ctx context.Context, contractID int64) ([]realtime.PresenceRecord, error)
	Ping(ctx context.Context) error
}

type Service struct {
	cfg      config.Config
	store    dataStore
	sessions sessionStore
	git      gitService
	search   searchService
	presence presenceLister
}

func New(cfg config.Config, dataStore *store.PostgresStore, gitService *gitrepo.Service, searchService *search.Service) *Service {
	return &Service{
		cfg:      cfg,
		store:    dataStore,
		sessions: dataStore,
		git:      gitService,
		search:   searchService,
	}
}

// NewWithSessionStore swaps access token storage to an external backend
// (Redis) instead of Postgres.
func NewWithSessionStore(cfg config.Config, dataStore *store.PostgresStore, sessions sessionStore, gitService *gitrepo.Service, searchService *search.Service) *Service {
	service := New(cfg, dataStore, gitService, searchService)
	service.sessions = sessions
	return service
}

// SetPresenceLister wires the presence mirror used by the presence REST
// endpoint. Without it the endpoint reports nobody present.
func (s *Service) SetPresenceLister(p presenceLister) {
	s.presence = p
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// --- Auth stub ---

func (s *Service) SignUp(ctx context.Context, email, fullName, password string) (Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return Session{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "A valid email is required", nil)
	}
	if len(password) < 8 {
		return Session{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Password must be at least 8 characters", nil)
	}
	if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return Session{}, domainError(http.StatusConflict, "EMAIL_TAKEN", "An account with this email already exists", nil)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Session{}, err
	}
	user, err := s.store.CreateUser(ctx, email, strings.TrimSpace(fullName), string(hash))
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) SignIn(ctx context.Context, email, password string) (Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return Session{}, domainError(http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", nil)
	}
	if !user.IsActive {
		return Session{}, domainError(http.StatusForbidden, "ACCOUNT_DISABLED", "Account is disabled", nil)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return Session{}, domainError(http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", nil)
	}
	return s.issueSession(ctx, user)
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	userID, err := s.sessions.LookupAccessToken(ctx, hashToken(token))
	if err != nil {
		return Session{}, domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
	}
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return Session{}, domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
	}
	return Session{Token: token, UserID: user.ID, Email: user.Email, FullName: user.FullName}, nil
}

func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.sessions.RevokeAccessToken(ctx, hashToken(token))
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	token := util.NewID("tok")
	expiresAt := time.Now().Add(s.cfg.AccessTTL)
	if err := s.sessions.SaveAccessToken(ctx, hashToken(token), user.ID, expiresAt); err != nil {
		return Session{}, err
	}
	return Session{
		Token:     token,
		UserID:    user.ID,
		Email:     user.Email,
		FullName:  user.FullName,
		ExpiresAt: expiresAt,
	}, nil
}

func hashToken(token string) string {
	sum := sha1.Sum([]byte(token))
	return hex.EncodeToString(sum[:])
}

// --- Projects ---

func (s *Service) CreateProject(ctx context.Context, session Session, input CreateProjectInput) (store.Project, error) {
	if strings.TrimSpace(input.Name) == "" {
		return store.Project{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}
	status := input.Status
	if status == "" {
		status = "active"
	}
	return s.store.CreateProject(ctx, store.Project{
		Name:        strings.TrimSpace(input.Name),
		Description: input.Description,
		Status:      status,
		OwnerID:     session.UserID,
	})
}

func (s *Service) ListProjects(ctx context.Context, session Session) ([]store.Project, error) {
	return s.store.ListProjects(ctx, session.UserID)
}

func (s *Service) GetProject(ctx context.Context, session Session, projectID int64) (store.Project, error) {
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return store.Project{}, err
	}
	if project.OwnerID != session.UserID {
		return store.Project{}, domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	}
	return project, nil
}

func (s *Service) UpdateProject(ctx context.Context, session Session, projectID int64, input CreateProjectInput) (store.Project, error) {
	if _, err := s.GetProject(ctx, session, projectID); err != nil {
		return store.Project{}, err
	}
	status := input.Status
	if status == "" {
		status = "active"
	}
	return s.store.UpdateProject(ctx, projectID, strings.TrimSpace(input.Name), input.Description, status)
}

func (s *Service) DeleteProject(ctx context.Context, session Session, projectID int64) error {
	if _, err := s.GetProject(ctx, session, projectID); err != nil {
		return err
	}
	return s.store.DeleteProject(ctx, projectID)
}

// --- Contracts ---

func (s *Service) CreateContract(ctx context.Context, session Session, projectID int64, input CreateContractInput) (store.Contract, error) {
	if strings.TrimSpace(input.Title) == "" {
		return store.Contract{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title is required", nil)
	}
	if _, err := s.GetProject(ctx, session, projectID); err != nil {
		return store.Contract{}, err
	}
	status := input.Status
	if status == "" {
		status = "draft"
	}
	contract, err := s.store.CreateContract(ctx, store.Contract{
		ProjectID: projectID,
		Title:     strings.TrimSpace(input.Title),
		Content:   input.Content,
		WordCount: countWords(input.Content),
		Status:    status,
		CreatedBy: session.UserID,
	})
	if err != nil {
		return store.Contract{}, err
	}
	if s.git != nil {
		if err := s.git.EnsureContractRepo(contract.ID, contract.Content, session.FullName); err != nil {
			log.Printf("app: init contract repo %d: %v", contract.ID, err)
		}
	}
	s.indexContract(contract)
	return contract, nil
}

func (s *Service) GetContract(ctx context.Context, contractID int64) (store.Contract, error) {
	return s.store.GetContract(ctx, contractID)
}

func (s *Service) ListContracts(ctx context.Context, session Session, projectID int64) ([]store.Contract, error) {
	if _, err := s.GetProject(ctx, session, projectID); err != nil {
		return nil, err
	}
	return s.store.ListContractsByProject(ctx, projectID)
}

func (s *Service) UpdateContract(ctx context.Context, session Session, contractID int64, input UpdateContractInput) (store.Contract, error) {
	current, err := s.store.GetContract(ctx, contractID)
	if err != nil {
		return store.Contract{}, err
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		title = current.Title
	}
	status := input.Status
	if status == "" {
		status = current.Status
	}
	contract, err := s.store.UpdateContract(ctx, contractID, title, status)
	if err != nil {
		return store.Contract{}, err
	}
	s.indexContract(contract)
	return contract, nil
}

func (s *Service) DeleteContract(ctx context.Context, session Session, contractID int64) error {
	contract, err := s.store.GetContract(ctx, contractID)
	if err != nil {
		return err
	}
	if _, err := s.GetProject(ctx, session, contract.ProjectID); err != nil {
		return err
	}
	if err := s.store.DeleteContract(ctx, contractID); err != nil {
		return err
	}
	if s.search != nil {
		s.search.DeleteContract(contractID)
	}
	return nil
}

func (s *Service) LockContract(ctx context.Context, session Session, contractID int64) (store.Contract, error) {
	locked, err := s.store.LockContract(ctx, contractID, session.UserID)
	if err != nil {
		return store.Contract{}, err
	}
	if !locked {
		return store.Contract{}, domainError(http.StatusConflict, "LOCKED", "Contract is locked by another user", nil)
	}
	return s.store.GetContract(ctx, contractID)
}

func (s *Service) UnlockContract(ctx context.Context, session Session, contractID int64) error {
	return s.store.UnlockContract(ctx, contractID, session.UserID)
}

// ApplyContentChange is the document-store operation behind the realtime
// mutation gateway: a full last-write-wins replacement of the stored content,
// plus a best-effort version snapshot and search reindex.
func (s *Service) ApplyContentChange(ctx context.Context, contractID int64, content string, wordCount int) error {
	if wordCount <= 0 {
		wordCount = countWords(content)
	}
	contract, err := s.store.UpdateContractContent(ctx, contractID, content, wordCount)
	if err != nil {
		return err
	}
	if s.git != nil {
		if _, err := s.git.CommitContent(contractID, content, "collaboration", "Realtime content update"); err != nil {
			log.Printf("app: version snapshot for contract %d: %v", contractID, err)
		}
	}
	s.indexContract(contract)
	return nil
}

func (s *Service) SearchContracts(ctx context.Context, query string, limit int) search.Response {
	return s.search.Search(ctx, query, limit)
}

// --- Versions ---

func (s *Service) ListVersions(ctx context.Context, contractID int64, limit int) ([]gitrepo.CommitInfo, error) {
	if _, err := s.store.GetContract(ctx, contractID); err != nil {
		return nil, err
	}
	return s.git.History(contractID, limit)
}

func (s *Service) VersionContent(ctx context.Context, contractID int64, hash string) (string, error) {
	if _, err := s.store.GetContract(ctx, contractID); err != nil {
		return "", err
	}
	return s.git.ContentAt(contractID, hash)
}

// --- Comments ---

func (s *Service) AddComment(ctx context.Context, session Session, contractID int64, input CreateCommentInput) (store.Comment, error) {
	if strings.TrimSpace(input.Body) == "" {
		return store.Comment{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "body is required", nil)
	}
	if _, err := s.store.GetContract(ctx, contractID); err != nil {
		return store.Comment{}, err
	}
	return s.store.CreateComment(ctx, store.Comment{
		ContractID: contractID,
		UserID:     session.UserID,
		Body:       input.Body,
		LineNumber: input.LineNumber,
	})
}

func (s *Service) ListComments(ctx context.Context, contractID int64) ([]store.Comment, error) {
	return s.store.ListComments(ctx, contractID)
}

func (s *Service) ResolveComment(ctx context.Context, commentID int64) error {
	resolved, err := s.store.ResolveComment(ctx, commentID)
	if err != nil {
		return err
	}
	if !resolved {
		return domainError(http.StatusNotFound, "NOT_FOUND", "Comment not found", nil)
	}
	return nil
}

// --- Presence ---

// ListPresence reports who is actively editing a contract, read from the
// presence mirror. Without a mirror the answer is empty, not an error.
func (s *Service) ListPresence(ctx context.Context, contractID int64) ([]realtime.PresenceRecord, error) {
	if s.presence == nil {
		return []realtime.PresenceRecord{}, nil
	}
	records, err := s.presence.ListActive(ctx, contractID)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []realtime.PresenceRecord{}
	}
	return records, nil
}

func (s *Service) indexContract(contract store.Contract) {
	if s.search == nil {
		return
	}
	s.search.IndexContract(search.ContractRecord{
		ID:        contract.ID,
		ProjectID: contract.ProjectID,
		Title:     contract.Title,
		Content:   contract.Content,
		Status:    contract.Status,
	})
}

func countWords(content string) int {
	return len(strings.Fields(content))
}
