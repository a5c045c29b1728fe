package board

import (
	"context"
	"strings"

	log "github.com/sirupsen/logrus"

	"taskboard-api/domain"
)

// CheckCommits reconciles the board's incomplete tasks against the commit
// history of its linked repository. The first commit (in lookup order) whose
// message contains a task's token completes that task; a task matches at
// most once, a commit message may complete several tasks. All status changes
// land in a single save. No matches is a success with an empty result.
func (e *Engine) CheckCommits(ctx context.Context, principal, boardID string) ([]domain.CommitMatch, error) {
	b, err := e.repo.Get(ctx, boardID)
	if err != nil {
		return nil, err
	}
	if err := e.requireRole(principal, b, RoleMember); err != nil {
		return nil, err
	}
	if strings.TrimSpace(b.GitHubRepo) == "" {
		return nil, invalidf("board %s has no linked repository", boardID)
	}
	if e.commits == nil {
		return nil, ErrUpstreamUnavailable
	}

	commits, err := e.commits.FetchCommits(ctx, b.GitHubRepo)
	if err != nil {
		return nil, err
	}

	// Probe against the loaded copy first so a no-match run never writes.
	if len(matchCommits(b, commits)) == 0 {
		return []domain.CommitMatch{}, nil
	}

	var matches []domain.CommitMatch
	_, err = e.repo.Update(ctx, boardID, func(cur *domain.Board) error {
		if err := e.requireRole(principal, cur, RoleMember); err != nil {
			return err
		}
		// Rescan on the freshly loaded copy; the save may retry under
		// contention and the accumulated set must match what is persisted.
		matches = matchCommits(cur, commits)
		for _, m := range matches {
			markCompleted(cur, m.TaskID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if matches == nil {
		matches = []domain.CommitMatch{}
	}
	e.logger.WithFields(log.Fields{"board": boardID, "matched": len(matches)}).Info("commit reconciliation applied")
	return matches, nil
}

// matchCommits pairs each incomplete task with the first commit whose
// message contains the task token. Exact, case-sensitive substring match.
func matchCommits(b *domain.Board, commits []domain.Commit) []domain.CommitMatch {
	var matches []domain.CommitMatch
	for i := range b.Lists {
		for j := range b.Lists[i].Tasks {
			t := &b.Lists[i].Tasks[j]
			if t.Status == domain.StatusCompleted {
				continue
			}
			for _, c := range commits {
				if strings.Contains(c.Message, t.TaskID) {
					matches = append(matches, domain.CommitMatch{TaskID: t.TaskID, CommitSHA: c.SHA})
					break
				}
			}
		}
	}
	return matches
}

func markCompleted(b *domain.Board, taskToken string) {
	for i := range b.Lists {
		for j := range b.Lists[i].Tasks {
			if b.Lists[i].Tasks[j].TaskID == taskToken {
				b.Lists[i].Tasks[j].Status = domain.StatusCompleted
			}
		}
	}
}
