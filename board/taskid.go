package board

import (
	"crypto/rand"
	"fmt"

	"taskboard-api/domain"
)

const (
	taskTokenPrefix   = "TASK-"
	taskTokenLength   = 9
	taskTokenAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

	// A fresh token colliding with an existing one is vanishingly unlikely,
	// but commit matching breaks silently if it ever happens, so generation
	// retries against the board before giving up.
	taskTokenAttempts = 5
)

func newTaskToken() (string, error) {
	buf := make([]byte, taskTokenLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate task token: %w", err)
	}
	for i, b := range buf {
		buf[i] = taskTokenAlphabet[int(b)%len(taskTokenAlphabet)]
	}
	return taskTokenPrefix + string(buf), nil
}

func boardHasTaskToken(b *domain.Board, token string) bool {
	for i := range b.Lists {
		for j := range b.Lists[i].Tasks {
			if b.Lists[i].Tasks[j].TaskID == token {
				return true
			}
		}
	}
	return false
}

// uniqueTaskToken returns a token not already present on the board.
func uniqueTaskToken(b *domain.Board) (string, error) {
	for i := 0; i < taskTokenAttempts; i++ {
		token, err := newTaskToken()
		if err != nil {
			return "", err
		}
		if !boardHasTaskToken(b, token) {
			return token, nil
		}
	}
	return "", fmt.Errorf("task token space exhausted on board %s", b.ID)
}
