package directory

import (
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/LACC-DEVLINK/checkin-exercito-api/internal/render"
	"github.com/LACC-DEVLINK/checkin-exercito-api/pkg/validator"
)

// file is the on-disk layout of a subject directory.
type file struct {
	Title    string    `yaml:"title"`
	Subjects []subject `yaml:"subjects"`
}

type subject struct {
	ID       string `yaml:"id" validate:"required,nodelim"`
	Name     string `yaml:"name"`
	Rank     string `yaml:"rank"`
	IDNumber string `yaml:"id_number"`
	Unit     string `yaml:"unit"`
	PhotoURL string `yaml:"photo_url" validate:"omitempty,url"`
}

// Directory is a read-only lookup of display attributes keyed by subject id.
// It only feeds card rendering and batch subject lists.
type Directory struct {
	title    string
	order    []string
	profiles map[string]render.Profile
}

// Load reads a YAML directory file from disk.
func Load(path string) (*Directory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("directory: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a YAML directory document. Subject ids must be unique.
func Parse(data []byte) (*Directory, error) {
	var doc file
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("directory: decode: %w", err)
	}

	dir := &Directory{
		title:    strings.TrimSpace(doc.Title),
		profiles: make(map[string]render.Profile, len(doc.Subjects)),
	}

	for i, s := range doc.Subjects {
		s.ID = strings.TrimSpace(s.ID)
		if err := validator.ValidateStruct(s); err != nil {
			return nil, fmt.Errorf("directory: subject %d: %w", i, err)
		}
		if _, exists := dir.profiles[s.ID]; exists {
			return nil, fmt.Errorf("directory: duplicate subject %q", s.ID)
		}

		dir.order = append(dir.order, s.ID)
		dir.profiles[s.ID] = render.Profile{
			SubjectID: s.ID,
			Name:      strings.TrimSpace(s.Name),
			Rank:      strings.TrimSpace(s.Rank),
			IDNumber:  strings.TrimSpace(s.IDNumber),
			Unit:      strings.TrimSpace(s.Unit),
			PhotoURL:  strings.TrimSpace(s.PhotoURL),
		}
	}

	return dir, nil
}

// Title returns the optional sheet title declared in the file.
func (d *Directory) Title() string {
	if d == nil {
		return ""
	}
	return d.title
}

// Lookup returns the profile for a subject.
func (d *Directory) Lookup(subjectID string) (render.Profile, bool) {
	if d == nil {
		return render.Profile{}, false
	}
	p, ok := d.profiles[subjectID]
	return p, ok
}

// SubjectIDs lists every subject in file order.
func (d *Directory) SubjectIDs() []string {
	if d == nil {
		return nil
	}
	out := make([]string, len(d.order))
	copy(out, d.order)
	return out
}

// Len returns the number of subjects.
func (d *Directory) Len() int {
	if d == nil {
		return 0
	}
	return len(d.order)
}
