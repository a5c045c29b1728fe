package board

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"taskboard-api/domain"
)

// Repository abstracts aggregate persistence. Update must apply the given
// transform and persist the result atomically with respect to concurrent
// updates of the same board (the implementation retries the transform on
// write contention), so engine transforms must be pure over the working copy.
type Repository interface {
	Insert(ctx context.Context, b *domain.Board) error
	Get(ctx context.Context, boardID string) (*domain.Board, error)
	Update(ctx context.Context, boardID string, apply func(*domain.Board) error) (*domain.Board, error)
	Delete(ctx context.Context, boardID string) error
	ListByMember(ctx context.Context, userID string) ([]*domain.Board, error)
	FindByTask(ctx context.Context, taskID string) (*domain.Board, error)
}

// Directory resolves user references. Users are owned by the identity
// subsystem; the engine only reads id/email projections.
type Directory interface {
	CreateUser(ctx context.Context, u *domain.User) error
	UserByEmail(ctx context.Context, email string) (*domain.User, error)
	UsersByID(ctx context.Context, ids []string) (map[string]domain.User, error)
}

// CommitLookup fetches commit records for an owner/repo reference.
type CommitLookup interface {
	FetchCommits(ctx context.Context, repoRef string) ([]domain.Commit, error)
}

// Engine applies every board mutation: resolve aggregate, authorize,
// transform in memory, persist in a single save.
type Engine struct {
	repo    Repository
	users   Directory
	commits CommitLookup
	logger  *log.Logger
	now     func() time.Time
}

// New creates an Engine. commits may be nil when no source-control
// integration is configured; CheckCommits then fails upstream-unavailable.
func New(repo Repository, users Directory, commits CommitLookup, logger *log.Logger) *Engine {
	if repo == nil {
		panic("board.New: repository is required")
	}
	if users == nil {
		panic("board.New: user directory is required")
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Engine{repo: repo, users: users, commits: commits, logger: logger, now: time.Now}
}

// requireRole classifies the principal against the board after the board's
// existence is already established, so a missing board always reads as
// NotFound before any authorization verdict.
func (e *Engine) requireRole(principal string, b *domain.Board, need Role) error {
	role := Classify(principal, b)
	if role >= need {
		return nil
	}
	e.logger.WithFields(log.Fields{
		"board": b.ID,
		"user":  principal,
		"role":  role.String(),
	}).Warn("board access denied")
	if need == RoleOwner {
		return fmt.Errorf("%w: requires owner access", ErrUnauthorized)
	}
	return fmt.Errorf("%w: requires member access", ErrUnauthorized)
}

// BoardCreate carries the caller-supplied fields for a new board.
type BoardCreate struct {
	Title      string
	GitHubRepo string
	Background string
}

// BoardUpdate is a partial update: nil keeps the current value, a non-nil
// pointer replaces it. Clearing GitHubRepo removes the integration; clearing
// Background restores the default.
type BoardUpdate struct {
	Title      *string
	GitHubRepo *string
	Background *string
}

// CreateBoard creates a board owned by the principal. The owner is the sole
// initial member.
func (e *Engine) CreateBoard(ctx context.Context, principal string, in BoardCreate) (*domain.BoardView, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, invalidf("board title is required")
	}
	background := in.Background
	if background == "" {
		background = domain.DefaultBackground
	}
	b := &domain.Board{
		ID:         uuid.NewString(),
		Title:      in.Title,
		GitHubRepo: in.GitHubRepo,
		OwnerID:    principal,
		MemberIDs:  []string{principal},
		Background: background,
		Lists:      []domain.List{},
		CreatedAt:  e.now().UTC(),
	}
	if err := e.repo.Insert(ctx, b); err != nil {
		return nil, err
	}
	e.logger.WithFields(log.Fields{"board": b.ID, "owner": principal}).Info("board created")
	return e.project(ctx, b)
}

// GetBoard returns the full board with resolved user projections. A board
// persisted with an empty member set is repaired to {owner} and the repair
// is saved before the view is returned.
func (e *Engine) GetBoard(ctx context.Context, principal, boardID string) (*domain.BoardView, error) {
	b, err := e.repo.Get(ctx, boardID)
	if err != nil {
		return nil, err
	}
	if len(b.MemberIDs) == 0 {
		b, err = e.repo.Update(ctx, boardID, func(cur *domain.Board) error {
			if len(cur.MemberIDs) == 0 {
				cur.MemberIDs = []string{cur.OwnerID}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		e.logger.WithField("board", boardID).Warn("repaired empty member set")
	}
	if err := e.requireRole(principal, b, RoleMember); err != nil {
		return nil, err
	}
	return e.project(ctx, b)
}

// ListBoards returns every board the principal owns or belongs to.
func (e *Engine) ListBoards(ctx context.Context, principal string) ([]domain.BoardView, error) {
	boards, err := e.repo.ListByMember(ctx, principal)
	if err != nil {
		return nil, err
	}
	views := make([]domain.BoardView, 0, len(boards))
	for _, b := range boards {
		v, err := e.project(ctx, b)
		if err != nil {
			return nil, err
		}
		views = append(views, *v)
	}
	return views, nil
}

// UpdateBoard applies a partial board update. Owner only.
func (e *Engine) UpdateBoard(ctx context.Context, principal, boardID string, in BoardUpdate) (*domain.BoardView, error) {
	if in.Title != nil && strings.TrimSpace(*in.Title) == "" {
		return nil, invalidf("board title cannot be empty")
	}
	b, err := e.repo.Update(ctx, boardID, func(cur *domain.Board) error {
		if err := e.requireRole(principal, cur, RoleOwner); err != nil {
			return err
		}
		if in.Title != nil {
			cur.Title = *in.Title
		}
		if in.GitHubRepo != nil {
			cur.GitHubRepo = *in.GitHubRepo
		}
		if in.Background != nil {
			if *in.Background == "" {
				cur.Background = domain.DefaultBackground
			} else {
				cur.Background = *in.Background
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return e.project(ctx, b)
}

// DeleteBoard removes the aggregate entirely. Owner only.
func (e *Engine) DeleteBoard(ctx context.Context, principal, boardID string) error {
	b, err := e.repo.Get(ctx, boardID)
	if err != nil {
		return err
	}
	if err := e.requireRole(principal, b, RoleOwner); err != nil {
		return err
	}
	if err := e.repo.Delete(ctx, boardID); err != nil {
		return err
	}
	e.logger.WithFields(log.Fields{"board": boardID, "owner": principal}).Info("board deleted")
	return nil
}

// InviteMember resolves an email to a user and appends them to the member
// set. Owner only; inviting an existing member is a conflict. The board is
// loaded and the caller authorized before the directory is consulted, so a
// non-owner learns nothing about which emails are registered.
func (e *Engine) InviteMember(ctx context.Context, principal, boardID, email string) (*domain.BoardView, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, invalidf("email is required")
	}
	b, err := e.repo.Get(ctx, boardID)
	if err != nil {
		return nil, err
	}
	if err := e.requireRole(principal, b, RoleOwner); err != nil {
		return nil, err
	}
	u, err := e.users.UserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	b, err = e.repo.Update(ctx, boardID, func(cur *domain.Board) error {
		if err := e.requireRole(principal, cur, RoleOwner); err != nil {
			return err
		}
		if cur.HasMember(u.ID) {
			return fmt.Errorf("%w: %s is already a member", ErrConflict, u.Email)
		}
		cur.MemberIDs = append(cur.MemberIDs, u.ID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.logger.WithFields(log.Fields{"board": boardID, "invited": u.ID}).Info("member invited")
	return e.project(ctx, b)
}

// project resolves every user reference on the board in one directory call.
func (e *Engine) project(ctx context.Context, b *domain.Board) (*domain.BoardView, error) {
	ids := collectUserIDs(b)
	users, err := e.users.UsersByID(ctx, ids)
	if err != nil {
		return nil, err
	}
	return buildView(b, users), nil
}
