package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// FileRunStore persists runs as indented JSON files. It stands in for the
// sqlite store on filesystems where sqlite cannot initialize.
//
// Layout:
//
//	<root>/run/<runID>.json
//	<root>/artifact/<runID>/attempt_<n>.json
type FileRunStore struct {
	Root string
}

type attemptBatch struct {
	Attempt   int              `json:"attempt"`
	Artifacts []SearchArtifact `json:"artifacts"`
	SavedAt   time.Time        `json:"saved_at"`
}

func NewFileRunStore(root string) *FileRunStore {
	if strings.TrimSpace(root) == "" {
		root = DefaultRunsRoot()
	}
	return &FileRunStore{Root: root}
}

func (s *FileRunStore) runDir() string {
	return filepath.Join(s.Root, "run")
}

func (s *FileRunStore) artifactDir(runID string) string {
	return filepath.Join(s.Root, "artifact", runID)
}

func (s *FileRunStore) runPath(runID string) string {
	return filepath.Join(s.runDir(), runID+".json")
}

func (s *FileRunStore) SaveRun(sess *ResearchSession) error {
	if sess == nil {
		return errors.New("nil session")
	}
	if strings.TrimSpace(sess.ID) == "" {
		return errors.New("missing run id")
	}
	if err := os.MkdirAll(s.runDir(), 0o755); err != nil {
		return err
	}
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now()
	}
	sess.UpdatedAt = time.Now()
	b, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.runPath(sess.ID), b, 0o644)
}

func (s *FileRunStore) SaveArtifacts(runID string, attempt int, artifacts []SearchArtifact) error {
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return errors.New("missing run id")
	}
	if len(artifacts) == 0 {
		return nil
	}
	if err := os.MkdirAll(s.artifactDir(runID), 0o755); err != nil {
		return err
	}
	batch := attemptBatch{Attempt: attempt, Artifacts: artifacts, SavedAt: time.Now()}
	b, err := json.MarshalIndent(&batch, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(s.artifactDir(runID), fmt.Sprintf("attempt_%02d.json", attempt))
	return os.WriteFile(path, b, 0o644)
}

func (s *FileRunStore) LoadRun(id string) (*ResearchSession, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("missing run id")
	}
	b, err := os.ReadFile(s.runPath(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}
	var sess ResearchSession
	if err := json.Unmarshal(b, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *FileRunStore) ListRuns(limit int) ([]RunSummary, error) {
	ents, err := os.ReadDir(s.runDir())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []RunSummary{}, nil
		}
		return nil, err
	}

	summaries := make([]RunSummary, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(e.Name(), ".json")
		sess, err := s.LoadRun(id)
		if err != nil {
			continue
		}
		summaries = append(summaries, RunSummary{
			ID:        sess.ID,
			Topic:     sess.Topic,
			Goal:      sess.Goal,
			Status:    sess.Status,
			Attempts:  sess.Attempt,
			Artifacts: s.countArtifacts(sess.ID),
			CreatedAt: sess.CreatedAt,
			UpdatedAt: sess.UpdatedAt,
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].UpdatedAt.After(summaries[j].UpdatedAt)
	})
	if limit > 0 && len(summaries) > limit {
		summaries = summaries[:limit]
	}
	return summaries, nil
}

func (s *FileRunStore) countArtifacts(runID string) int {
	ents, err := os.ReadDir(s.artifactDir(runID))
	if err != nil {
		return 0
	}
	total := 0
	for _, e := range ents {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		b, err := os.ReadFile(filepath.Join(s.artifactDir(runID), e.Name()))
		if err != nil {
			continue
		}
		var batch attemptBatch
		if err := json.Unmarshal(b, &batch); err != nil {
			continue
		}
		total += len(batch.Artifacts)
	}
	return total
}

func (s *FileRunStore) DeleteRun(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return errors.New("missing run id")
	}
	if err := os.Remove(s.runPath(id)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrRunNotFound
		}
		return err
	}
	return os.RemoveAll(s.artifactDir(id))
}

func (s *FileRunStore) Close() error {
	return nil
}
