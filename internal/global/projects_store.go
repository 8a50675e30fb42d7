package global

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const projectsFileName = "projects.json"

// ProjectRef points the CLI at a repository it has opened before. The
// database row is the authority; this file only feeds quick listing
// without opening the DB.
type ProjectRef struct {
	ProjectID string    `json:"project_id"`
	RootDir   string    `json:"root_dir"`
	Name      string    `json:"name"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ProjectsStore struct {
	dir string
}

func NewProjectsStore(dir string) *ProjectsStore {
	return &ProjectsStore{dir: dir}
}

func (s *ProjectsStore) List() ([]ProjectRef, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(s.dir, projectsFileName)
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []ProjectRef{}, nil
		}
		return nil, err
	}
	var list []ProjectRef
	if err := json.Unmarshal(b, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// Remember upserts a project reference keyed by project ID.
func (s *ProjectsStore) Remember(ref ProjectRef) error {
	list, err := s.List()
	if err != nil {
		return err
	}
	ref.Name = strings.TrimSpace(ref.Name)
	if ref.Name == "" {
		ref.Name = filepath.Base(ref.RootDir)
	}
	ref.UpdatedAt = time.Now().UTC()
	for i := range list {
		if list[i].ProjectID == ref.ProjectID {
			list[i] = ref
			return s.save(list)
		}
	}
	list = append(list, ref)
	return s.save(list)
}

func (s *ProjectsStore) Forget(projectID string) error {
	list, err := s.List()
	if err != nil {
		return err
	}
	out := make([]ProjectRef, 0, len(list))
	for _, ref := range list {
		if ref.ProjectID != projectID {
			out = append(out, ref)
		}
	}
	return s.save(out)
}

func (s *ProjectsStore) save(list []ProjectRef) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	return writeJSONAtomically(filepath.Join(s.dir, projectsFileName), list)
}
