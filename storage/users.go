package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"

	"taskboard-api/board"
	"taskboard-api/domain"
)

// All user rows share one partition; lookups are by row key (user id) or an
// Email column filter within the partition.
const usersPartition = "user"

type userEntity struct {
	aztables.Entity
	Email        string `json:"Email"`
	PasswordHash string `json:"PasswordHash"`
	CreatedAt    string `json:"CreatedAt"`
}

func encodeUserEntity(u *domain.User) ([]byte, error) {
	return json.Marshal(userEntity{
		Entity:       aztables.Entity{PartitionKey: usersPartition, RowKey: u.ID},
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt.UTC().Format(time.RFC3339),
	})
}

func decodeUserEntity(data []byte) (*domain.User, error) {
	var ent userEntity
	if err := json.Unmarshal(data, &ent); err != nil {
		return nil, err
	}
	created, _ := time.Parse(time.RFC3339, ent.CreatedAt)
	return &domain.User{
		ID:           ent.RowKey,
		Email:        ent.Email,
		PasswordHash: ent.PasswordHash,
		CreatedAt:    created,
	}, nil
}

// CreateUser stores a new user record. The email uniqueness check and the
// insert are not one atomic step; the id-level AddEntity still rejects a
// duplicate id, and the registration surface treats a racing duplicate email
// as first-writer-wins.
func (s *Storage) CreateUser(ctx context.Context, u *domain.User) error {
	if _, err := s.UserByEmail(ctx, u.Email); err == nil {
		return fmt.Errorf("%w: email %s already registered", board.ErrConflict, u.Email)
	} else if !isNotFound(err) {
		return err
	}
	data, err := encodeUserEntity(u)
	if err != nil {
		return fmt.Errorf("%w: encode user: %v", board.ErrStorage, err)
	}
	if _, err := s.users.AddEntity(ctx, data, nil); err != nil {
		if hasStatus(err, http.StatusConflict) {
			return fmt.Errorf("%w: user %s already exists", board.ErrConflict, u.ID)
		}
		return fmt.Errorf("%w: insert user: %v", board.ErrStorage, err)
	}
	return nil
}

// UserByEmail resolves an email to the matching user record.
func (s *Storage) UserByEmail(ctx context.Context, email string) (*domain.User, error) {
	filter := "PartitionKey eq '" + usersPartition + "' and Email eq '" + escapeFilterValue(email) + "'"
	pager := s.users.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: query users: %v", board.ErrStorage, err)
		}
		for _, raw := range resp.Entities {
			u, err := decodeUserEntity(raw)
			if err != nil {
				return nil, fmt.Errorf("%w: decode user: %v", board.ErrStorage, err)
			}
			return u, nil
		}
	}
	return nil, fmt.Errorf("%w: no user with email %s", board.ErrNotFound, email)
}

// UsersByID resolves a batch of user ids to records. Unknown ids are simply
// absent from the result; projection tolerates dangling references.
func (s *Storage) UsersByID(ctx context.Context, ids []string) (map[string]domain.User, error) {
	users := make(map[string]domain.User, len(ids))
	for _, id := range ids {
		if _, ok := users[id]; ok {
			continue
		}
		resp, err := s.users.GetEntity(ctx, usersPartition, id, nil)
		if err != nil {
			if hasStatus(err, http.StatusNotFound) {
				continue
			}
			return nil, fmt.Errorf("%w: load user %s: %v", board.ErrStorage, id, err)
		}
		u, err := decodeUserEntity(resp.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: decode user %s: %v", board.ErrStorage, id, err)
		}
		users[id] = *u
	}
	return users, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, board.ErrNotFound)
}
