package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/YoshitsuguKoike/loanstage/internal/domain/model"
	"github.com/YoshitsuguKoike/loanstage/internal/domain/model/application"
	"github.com/YoshitsuguKoike/loanstage/internal/domain/repository"
)

const (
	applicationsDir = "applications"
	applicationFile = "application.yaml"
	overridesFile   = "overrides.yaml"
	documentVersion = 1
)

// applicationDocument is the on-disk shape of one application
type applicationDocument struct {
	Version   int                            `yaml:"version"`
	ID        string                         `yaml:"id"`
	Applicant application.Applicant          `yaml:"applicant"`
	CreatedAt time.Time                      `yaml:"created_at"`
	UpdatedAt time.Time                      `yaml:"updated_at"`
	History   []application.TransitionRecord `yaml:"history"`
}

type overridesDocument struct {
	Overrides []application.ScoreOverride `yaml:"overrides"`
}

// Store keeps each application as a YAML document under root/applications/<id>/.
// It implements both the application repository and the score override ledger.
// Writes are serialized within the process; cross-process writers must hold the application lock.
type Store struct {
	fs   afero.Fs
	root string
	mu   sync.Mutex
}

// NewStore creates a file store rooted at root
func NewStore(fs afero.Fs, root string) *Store {
	return &Store{fs: fs, root: root}
}

var (
	_ repository.ApplicationRepository   = (*Store)(nil)
	_ repository.ScoreOverrideRepository = (*Store)(nil)
)

// Create stores a new application
func (s *Store) Create(ctx context.Context, app *application.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, err := s.applicationPath(app.ID())
	if err != nil {
		return err
	}
	exists, err := afero.Exists(s.fs, path)
	if err != nil {
		return fmt.Errorf("stat application: %w", err)
	}
	if exists {
		return fmt.Errorf("%w: %s", repository.ErrAlreadyExists, app.ID())
	}
	return s.writeApplication(app, app.History())
}

// Load retrieves an application with its full history
func (s *Store) Load(ctx context.Context, id model.ApplicationID) (*application.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(id)
}

// Save appends pending records if the stored history length still equals app.ReadVersion()
func (s *Store) Save(ctx context.Context, app *application.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.readDocument(app.ID())
	if err != nil {
		return err
	}
	if len(doc.History) != app.ReadVersion() {
		return fmt.Errorf("%w: %s", repository.ErrConflict, app.ID())
	}

	history := append(doc.History, app.PendingRecords()...)
	return s.writeApplication(app, history)
}

// Exists reports whether an application id is taken
func (s *Store) Exists(ctx context.Context, id model.ApplicationID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, err := s.applicationPath(id)
	if err != nil {
		return false, err
	}
	ok, err := afero.Exists(s.fs, path)
	if err != nil {
		return false, fmt.Errorf("stat application: %w", err)
	}
	return ok, nil
}

// List retrieves applications by filter criteria, newest first
func (s *Store) List(ctx context.Context, filter repository.ApplicationFilter) ([]*application.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := afero.ReadDir(s.fs, filepath.Join(s.root, applicationsDir))
	if errors.Is(err, os.ErrNotExist) {
		return []*application.Application{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read applications dir: %w", err)
	}

	stages := make(map[model.Stage]bool, len(filter.Stages))
	for _, st := range filter.Stages {
		stages[st] = true
	}
	search := strings.ToLower(strings.TrimSpace(filter.Search))

	var apps []*application.Application
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		id, err := model.NewApplicationID(entry.Name())
		if err != nil {
			continue
		}
		app, err := s.load(id)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if len(stages) > 0 && !stages[app.CurrentStage()] {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(app.ID().String()), search) &&
			!strings.Contains(strings.ToLower(app.Applicant().FullName()), search) {
			continue
		}
		apps = append(apps, app)
	}

	sort.SliceStable(apps, func(i, j int) bool {
		ci, cj := apps[i].CreatedAt().Value(), apps[j].CreatedAt().Value()
		if !ci.Equal(cj) {
			return ci.After(cj)
		}
		return apps[i].ID().String() > apps[j].ID().String()
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(apps) {
			return []*application.Application{}, nil
		}
		apps = apps[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(apps) {
		apps = apps[:filter.Limit]
	}
	if apps == nil {
		apps = []*application.Application{}
	}
	return apps, nil
}

// Append records a new override
func (s *Store) Append(ctx context.Context, o application.ScoreOverride) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := model.NewApplicationID(o.ApplicationID)
	if err != nil {
		return err
	}
	doc, err := s.readOverrides(id)
	if err != nil {
		return err
	}
	doc.Overrides = append(doc.Overrides, o)

	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal overrides: %w", err)
	}
	path, err := s.overridesPath(id)
	if err != nil {
		return err
	}
	return writeFileAtomic(s.fs, path, data)
}

// ListByApplication returns overrides for one application, oldest first
func (s *Store) ListByApplication(ctx context.Context, id model.ApplicationID) ([]application.ScoreOverride, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.readOverrides(id)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(doc.Overrides, func(i, j int) bool {
		return doc.Overrides[i].Timestamp.Before(doc.Overrides[j].Timestamp)
	})
	return doc.Overrides, nil
}

// applicationDir returns root/applications/<id>, refusing ids that are not a single path segment
func (s *Store) applicationDir(id model.ApplicationID) (string, error) {
	name := id.String()
	if name == "" || name == "." || name == ".." || filepath.Base(name) != name || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("invalid application id %q for file store", name)
	}
	return filepath.Join(s.root, applicationsDir, name), nil
}

func (s *Store) applicationPath(id model.ApplicationID) (string, error) {
	dir, err := s.applicationDir(id)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, applicationFile), nil
}

func (s *Store) overridesPath(id model.ApplicationID) (string, error) {
	dir, err := s.applicationDir(id)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, overridesFile), nil
}

func (s *Store) load(id model.ApplicationID) (*application.Application, error) {
	doc, err := s.readDocument(id)
	if err != nil {
		return nil, err
	}
	app, err := application.Reconstruct(id, doc.Applicant, doc.History, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("corrupt application %s: %w", id, err)
	}
	return app, nil
}

func (s *Store) readDocument(id model.ApplicationID) (*applicationDocument, error) {
	path, err := s.applicationPath(id)
	if err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(s.fs, path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", repository.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("read application: %w", err)
	}

	var doc applicationDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal application %s: %w", id, err)
	}
	if doc.Version > documentVersion {
		return nil, fmt.Errorf("application %s: unsupported document version %d", id, doc.Version)
	}
	return &doc, nil
}

func (s *Store) writeApplication(app *application.Application, history []application.TransitionRecord) error {
	doc := applicationDocument{
		Version:   documentVersion,
		ID:        app.ID().String(),
		Applicant: app.Applicant(),
		CreatedAt: app.CreatedAt().Value().UTC(),
		UpdatedAt: app.UpdatedAt().Value().UTC(),
		History:   history,
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal application: %w", err)
	}
	path, err := s.applicationPath(app.ID())
	if err != nil {
		return err
	}
	return writeFileAtomic(s.fs, path, data)
}

func (s *Store) readOverrides(id model.ApplicationID) (*overridesDocument, error) {
	path, err := s.overridesPath(id)
	if err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(s.fs, path)
	if errors.Is(err, os.ErrNotExist) {
		return &overridesDocument{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read overrides: %w", err)
	}

	var doc overridesDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal overrides %s: %w", id, err)
	}
	return &doc, nil
}
