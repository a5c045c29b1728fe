package api

import (
	"context"

	"taskboard-api/board"
	"taskboard-api/domain"
)

// Engine is the board aggregate engine consumed by the handlers.
type Engine interface {
	CreateBoard(ctx context.Context, principal string, in board.BoardCreate) (*domain.BoardView, error)
	GetBoard(ctx context.Context, principal, boardID string) (*domain.BoardView, error)
	ListBoards(ctx context.Context, principal string) ([]domain.BoardView, error)
	UpdateBoard(ctx context.Context, principal, boardID string, in board.BoardUpdate) (*domain.BoardView, error)
	DeleteBoard(ctx context.Context, principal, boardID string) error
	InviteMember(ctx context.Context, principal, boardID, email string) (*domain.BoardView, error)
	CreateList(ctx context.Context, principal, boardID, title string) (*domain.List, error)
	DeleteList(ctx context.Context, principal, boardID, listID string) error
	CreateTask(ctx context.Context, principal, boardID, listID string, in board.TaskCreate) (*domain.Task, error)
	UpdateTask(ctx context.Context, principal, boardID, listID, taskID string, in board.TaskUpdate) (*domain.Task, error)
	DeleteTask(ctx context.Context, principal, boardID, listID, taskID string) error
	AssignMember(ctx context.Context, principal, boardID, listID, taskID, userID string) (*domain.Task, error)
	AddComment(ctx context.Context, principal, boardID, listID, taskID, text string) (*domain.Task, error)
	MoveTask(ctx context.Context, principal, taskID, destListID string) error
	CheckCommits(ctx context.Context, principal, boardID string) ([]domain.CommitMatch, error)
}

// Authenticator is implemented by types able to extract user IDs from headers.
type Authenticator interface {
	UserIDFromAuthHeader(string) (string, error)
}

// Accounts is the slice of the user directory the account endpoints need.
type Accounts interface {
	CreateUser(ctx context.Context, u *domain.User) error
	UserByEmail(ctx context.Context, email string) (*domain.User, error)
}
