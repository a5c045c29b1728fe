package board

import "taskboard-api/domain"

// collectUserIDs gathers every user referenced by the board: owner, members,
// assignees, comment authors. Order is first-seen; duplicates are dropped.
func collectUserIDs(b *domain.Board) []string {
	seen := make(map[string]struct{})
	ids := make([]string, 0, len(b.MemberIDs)+1)
	add := func(id string) {
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	add(b.OwnerID)
	for _, id := range b.MemberIDs {
		add(id)
	}
	for i := range b.Lists {
		for j := range b.Lists[i].Tasks {
			t := &b.Lists[i].Tasks[j]
			for _, id := range t.AssigneeIDs {
				add(id)
			}
			for _, c := range t.Comments {
				add(c.AuthorID)
			}
		}
	}
	return ids
}

// buildView projects the aggregate into its wire shape. A reference the
// directory no longer knows still projects with its id so the board stays
// readable after a user record disappears.
func buildView(b *domain.Board, users map[string]domain.User) *domain.BoardView {
	ref := func(id string) domain.UserRef {
		if u, ok := users[id]; ok {
			return domain.UserRef{ID: u.ID, Email: u.Email}
		}
		return domain.UserRef{ID: id}
	}

	v := &domain.BoardView{
		ID:         b.ID,
		Title:      b.Title,
		GitHubRepo: b.GitHubRepo,
		Owner:      ref(b.OwnerID),
		Members:    make([]domain.UserRef, 0, len(b.MemberIDs)),
		Background: b.Background,
		Lists:      make([]domain.ListView, 0, len(b.Lists)),
		CreatedAt:  b.CreatedAt,
	}
	for _, id := range b.MemberIDs {
		v.Members = append(v.Members, ref(id))
	}
	for i := range b.Lists {
		l := &b.Lists[i]
		lv := domain.ListView{ID: l.ID, Title: l.Title, Tasks: make([]domain.TaskView, 0, len(l.Tasks))}
		for j := range l.Tasks {
			t := &l.Tasks[j]
			tv := domain.TaskView{
				ID:          t.ID,
				Title:       t.Title,
				Description: t.Description,
				DueDate:     t.DueDate,
				Priority:    t.Priority,
				TaskID:      t.TaskID,
				Status:      t.Status,
				Assignees:   make([]domain.UserRef, 0, len(t.AssigneeIDs)),
				Comments:    make([]domain.CommentView, 0, len(t.Comments)),
				CreatedAt:   t.CreatedAt,
			}
			for _, id := range t.AssigneeIDs {
				tv.Assignees = append(tv.Assignees, ref(id))
			}
			for _, c := range t.Comments {
				tv.Comments = append(tv.Comments, domain.CommentView{
					ID:        c.ID,
					Author:    ref(c.AuthorID),
					Text:      c.Text,
					CreatedAt: c.CreatedAt,
				})
			}
			lv.Tasks = append(lv.Tasks, tv)
		}
		v.Lists = append(v.Lists, lv)
	}
	return v
}
