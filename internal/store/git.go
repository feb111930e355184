package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

const snapshotFile = "records.json"

// GitStore keeps snapshots in a local git repository, one commit per
// save. The commit history doubles as a best-effort audit trail of the
// record set over time.
type GitStore struct {
	dir  string
	repo *git.Repository
	mu   sync.Mutex
}

func NewGitStore(dir string) (*GitStore, error) {
	repo, err := git.PlainOpen(dir)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
			return nil, fmt.Errorf("create snapshot repo dir: %w", mkErr)
		}
		repo, err = git.PlainInit(dir, false)
	}
	if err != nil {
		return nil, fmt.Errorf("open snapshot repo: %w", err)
	}
	return &GitStore{dir: dir, repo: repo}, nil
}

func (s *GitStore) Load(_ context.Context) (RecordMap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(filepath.Join(s.dir, snapshotFile))
	if errors.Is(err, os.ErrNotExist) {
		return RecordMap{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot file: %w", err)
	}

	records := RecordMap{}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode snapshot file: %w", err)
	}
	return records, nil
}

func (s *GitStore) Save(_ context.Context, records RecordMap) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, snapshotFile), append(payload, '\n'), 0o644); err != nil {
		return fmt.Errorf("write snapshot file: %w", err)
	}

	worktree, err := s.repo.Worktree()
	if err != nil {
		return fmt.Errorf("open worktree: %w", err)
	}
	if _, err := worktree.Add(snapshotFile); err != nil {
		return fmt.Errorf("git add snapshot: %w", err)
	}

	status, err := worktree.Status()
	if err != nil {
		return fmt.Errorf("worktree status: %w", err)
	}
	if status.IsClean() {
		// Identical snapshot, nothing to commit.
		return nil
	}

	_, err = worktree.Commit("Update records snapshot", &git.CommitOptions{
		Author: &object.Signature{
			Name:  "bugtrack",
			Email: "bugtrack@localhost",
			When:  time.Now(),
		},
	})
	if err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

func (s *GitStore) Close() error {
	return nil
}
