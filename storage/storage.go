package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"

	"taskboard-api/board"
	"taskboard-api/domain"
)

// casAttempts bounds how often a contended save reloads and reapplies its
// transform before giving up with a storage error.
const casAttempts = 4

// Tables names the four tables the store operates on.
type Tables struct {
	Boards  string
	Members string
	TaskLoc string
	Users   string
}

// Storage persists board aggregates in Azure Table Storage. Each board is
// one entity holding the full JSON document; the entity ETag drives
// optimistic concurrency on save. Two index tables make the cross-aggregate
// lookups cheap: members (partitioned by user) answers "which boards can
// this user see", taskloc (partitioned by task) answers "which board holds
// this task".
type Storage struct {
	boards  *aztables.Client
	members *aztables.Client
	taskloc *aztables.Client
	users   *aztables.Client
}

// New creates a Storage instance from the given connection string.
func New(connStr string, tables Tables) (*Storage, error) {
	opts := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &opts)
	if err != nil {
		return nil, err
	}
	return &Storage{
		boards:  svc.NewClient(tables.Boards),
		members: svc.NewClient(tables.Members),
		taskloc: svc.NewClient(tables.TaskLoc),
		users:   svc.NewClient(tables.Users),
	}, nil
}

type boardEntity struct {
	aztables.Entity
	ETag    string `json:"odata.etag,omitempty"`
	Owner   string `json:"Owner"`
	Payload string `json:"Payload"`
}

type indexEntity struct {
	aztables.Entity
}

func encodeBoardEntity(b *domain.Board) ([]byte, error) {
	payload, err := json.Marshal(b)
	if err != nil {
		return nil, err
	}
	return json.Marshal(boardEntity{
		Entity:  aztables.Entity{PartitionKey: b.ID, RowKey: b.ID},
		Owner:   b.OwnerID,
		Payload: string(payload),
	})
}

func decodeBoardEntity(data []byte) (*domain.Board, azcore.ETag, error) {
	var ent boardEntity
	if err := json.Unmarshal(data, &ent); err != nil {
		return nil, "", err
	}
	var b domain.Board
	if err := json.Unmarshal([]byte(ent.Payload), &b); err != nil {
		return nil, "", err
	}
	return &b, azcore.ETag(ent.ETag), nil
}

// Insert stores a new board and seeds its index rows.
func (s *Storage) Insert(ctx context.Context, b *domain.Board) error {
	data, err := encodeBoardEntity(b)
	if err != nil {
		return fmt.Errorf("%w: encode board: %v", board.ErrStorage, err)
	}
	if _, err := s.boards.AddEntity(ctx, data, nil); err != nil {
		if hasStatus(err, http.StatusConflict) {
			return fmt.Errorf("%w: board %s already exists", board.ErrConflict, b.ID)
		}
		return fmt.Errorf("%w: insert board: %v", board.ErrStorage, err)
	}
	s.syncIndexes(ctx, b.ID, nil, nil, b.MemberIDs, taskIDs(b))
	return nil
}

// Get loads the board document by identifier.
func (s *Storage) Get(ctx context.Context, boardID string) (*domain.Board, error) {
	b, _, err := s.load(ctx, boardID)
	return b, err
}

func (s *Storage) load(ctx context.Context, boardID string) (*domain.Board, azcore.ETag, error) {
	resp, err := s.boards.GetEntity(ctx, boardID, boardID, nil)
	if err != nil {
		if hasStatus(err, http.StatusNotFound) {
			return nil, "", fmt.Errorf("%w: board %s", board.ErrNotFound, boardID)
		}
		return nil, "", fmt.Errorf("%w: load board: %v", board.ErrStorage, err)
	}
	b, etag, err := decodeBoardEntity(resp.Value)
	if err != nil {
		return nil, "", fmt.Errorf("%w: decode board: %v", board.ErrStorage, err)
	}
	return b, etag, nil
}

// Update runs the load-transform-save cycle under optimistic concurrency:
// the save carries the loaded ETag, and a concurrent write forces a reload
// and a clean reapplication of the transform. Errors returned by apply
// abort the cycle with nothing written.
func (s *Storage) Update(ctx context.Context, boardID string, apply func(*domain.Board) error) (*domain.Board, error) {
	for attempt := 0; attempt < casAttempts; attempt++ {
		b, etag, err := s.load(ctx, boardID)
		if err != nil {
			return nil, err
		}
		prevMembers := append([]string{}, b.MemberIDs...)
		prevTasks := taskIDs(b)

		if err := apply(b); err != nil {
			return nil, err
		}

		data, err := encodeBoardEntity(b)
		if err != nil {
			return nil, fmt.Errorf("%w: encode board: %v", board.ErrStorage, err)
		}
		_, err = s.boards.UpdateEntity(ctx, data, &aztables.UpdateEntityOptions{
			IfMatch:    &etag,
			UpdateMode: aztables.UpdateModeReplace,
		})
		if err != nil {
			if hasStatus(err, http.StatusPreconditionFailed) {
				continue
			}
			if hasStatus(err, http.StatusNotFound) {
				return nil, fmt.Errorf("%w: board %s", board.ErrNotFound, boardID)
			}
			return nil, fmt.Errorf("%w: save board: %v", board.ErrStorage, err)
		}
		s.syncIndexes(ctx, boardID, prevMembers, prevTasks, b.MemberIDs, taskIDs(b))
		return b, nil
	}
	return nil, fmt.Errorf("%w: board %s save contention exhausted %d attempts", board.ErrStorage, boardID, casAttempts)
}

// Delete removes the aggregate and every index row derived from it.
func (s *Storage) Delete(ctx context.Context, boardID string) error {
	b, _, err := s.load(ctx, boardID)
	if err != nil {
		return err
	}
	if _, err := s.boards.DeleteEntity(ctx, boardID, boardID, nil); err != nil && !hasStatus(err, http.StatusNotFound) {
		return fmt.Errorf("%w: delete board: %v", board.ErrStorage, err)
	}
	s.syncIndexes(ctx, boardID, b.MemberIDs, taskIDs(b), nil, nil)
	return nil
}

// ListByMember returns every board the user owns or belongs to, driven by
// the membership index partition.
func (s *Storage) ListByMember(ctx context.Context, userID string) ([]*domain.Board, error) {
	filter := "PartitionKey eq '" + escapeFilterValue(userID) + "'"
	pager := s.members.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	boards := []*domain.Board{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: list memberships: %v", board.ErrStorage, err)
		}
		for _, raw := range resp.Entities {
			var ent indexEntity
			if err := json.Unmarshal(raw, &ent); err != nil {
				return nil, fmt.Errorf("%w: decode membership row: %v", board.ErrStorage, err)
			}
			b, _, err := s.load(ctx, ent.RowKey)
			if err != nil {
				if errors.Is(err, board.ErrNotFound) {
					// Stale row left behind by a deleted board.
					_, _ = s.members.DeleteEntity(ctx, ent.PartitionKey, ent.RowKey, nil)
					continue
				}
				return nil, err
			}
			boards = append(boards, b)
		}
	}
	return boards, nil
}

// FindByTask locates the board holding the task via the task locator index.
// The index is derived data, so every hit is re-verified against the loaded
// document and stale rows are dropped on the way.
func (s *Storage) FindByTask(ctx context.Context, taskID string) (*domain.Board, error) {
	filter := "PartitionKey eq '" + escapeFilterValue(taskID) + "'"
	pager := s.taskloc.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: query task index: %v", board.ErrStorage, err)
		}
		for _, raw := range resp.Entities {
			var ent indexEntity
			if err := json.Unmarshal(raw, &ent); err != nil {
				return nil, fmt.Errorf("%w: decode task row: %v", board.ErrStorage, err)
			}
			b, _, err := s.load(ctx, ent.RowKey)
			if err != nil {
				if errors.Is(err, board.ErrNotFound) {
					_, _ = s.taskloc.DeleteEntity(ctx, ent.PartitionKey, ent.RowKey, nil)
					continue
				}
				return nil, err
			}
			if containsTask(b, taskID) {
				return b, nil
			}
			_, _ = s.taskloc.DeleteEntity(ctx, ent.PartitionKey, ent.RowKey, nil)
		}
	}
	return nil, fmt.Errorf("%w: no board contains task %s", board.ErrNotFound, taskID)
}

// syncIndexes reconciles the membership and task locator rows with the just
// written document. Index writes are best effort: a missed row only degrades
// a lookup, and lookups re-verify against the document anyway.
func (s *Storage) syncIndexes(ctx context.Context, boardID string, prevMembers, prevTasks, curMembers, curTasks []string) {
	added, removed := diffIDs(prevMembers, curMembers)
	for _, userID := range added {
		s.upsertIndexRow(ctx, s.members, userID, boardID)
	}
	for _, userID := range removed {
		_, _ = s.members.DeleteEntity(ctx, userID, boardID, nil)
	}
	added, removed = diffIDs(prevTasks, curTasks)
	for _, taskID := range added {
		s.upsertIndexRow(ctx, s.taskloc, taskID, boardID)
	}
	for _, taskID := range removed {
		_, _ = s.taskloc.DeleteEntity(ctx, taskID, boardID, nil)
	}
}

func (s *Storage) upsertIndexRow(ctx context.Context, table *aztables.Client, pk, rk string) {
	data, err := json.Marshal(indexEntity{Entity: aztables.Entity{PartitionKey: pk, RowKey: rk}})
	if err != nil {
		return
	}
	_, _ = table.UpsertEntity(ctx, data, nil)
}

// diffIDs returns the identifiers added and removed between two sets.
func diffIDs(prev, cur []string) (added, removed []string) {
	prevSet := make(map[string]struct{}, len(prev))
	for _, id := range prev {
		prevSet[id] = struct{}{}
	}
	curSet := make(map[string]struct{}, len(cur))
	for _, id := range cur {
		curSet[id] = struct{}{}
		if _, ok := prevSet[id]; !ok {
			added = append(added, id)
		}
	}
	for _, id := range prev {
		if _, ok := curSet[id]; !ok {
			removed = append(removed, id)
		}
	}
	return added, removed
}

// taskIDs flattens the primary identifiers of every task on the board.
func taskIDs(b *domain.Board) []string {
	var ids []string
	for i := range b.Lists {
		for j := range b.Lists[i].Tasks {
			ids = append(ids, b.Lists[i].Tasks[j].ID)
		}
	}
	return ids
}

func containsTask(b *domain.Board, taskID string) bool {
	for i := range b.Lists {
		for j := range b.Lists[i].Tasks {
			if b.Lists[i].Tasks[j].ID == taskID {
				return true
			}
		}
	}
	return false
}

func hasStatus(err error, status int) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == status
}

// escapeFilterValue doubles single quotes for OData filter literals.
func escapeFilterValue(v string) string {
	return strings.ReplaceAll(v, "'", "''")
}
