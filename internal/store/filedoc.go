package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/oklog/ulid/v2"
	"gopkg.in/yaml.v3"
)

const revisionExt = ".json"

// Meta is the sidecar written next to a FileDocument.
type Meta struct {
	Revision     string    `yaml:"revision"`
	UpdatedAt    time.Time `yaml:"updated_at"`
	PreviewPlain string    `yaml:"preview_plain"`
	PreviewHTML  string    `yaml:"preview_html"`
}

// Revision is a saved copy of earlier document text.
type Revision struct {
	ID      string
	Path    string
	SavedAt time.Time
}

// FileDocument keeps the document text in a plain file. Each save snapshots
// the previous text under a hidden revisions directory and keeps at most
// Keep snapshots.
type FileDocument struct {
	Path string
	Keep int

	mu     sync.Mutex
	staged *staged
	lock   *flock.Flock
}

func NewFileDocument(path string, keep int) *FileDocument {
	path = ExpandHome(path)
	return &FileDocument{
		Path: path,
		Keep: keep,
		lock: flock.New(path + ".lock"),
	}
}

func (d *FileDocument) MetaPath() string { return d.Path + ".meta.yaml" }

func (d *FileDocument) RevisionsDir() string {
	return filepath.Join(filepath.Dir(d.Path), "."+filepath.Base(d.Path)+".revisions")
}

// ReadRaw returns the document text, or "" when the file does not exist yet.
func (d *FileDocument) ReadRaw() (string, error) {
	b, err := os.ReadFile(d.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (d *FileDocument) WriteRaw(text, previewPlain, previewHTML string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.staged = &staged{text: text, plain: previewPlain, html: previewHTML}
	return nil
}

// NotifyChanged writes the staged text. It fails with ErrLocked when another
// process is saving the same document.
func (d *FileDocument) NotifyChanged() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.staged == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(d.Path), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(d.Path), err)
	}
	locked, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("lock %s: %w", d.Path, err)
	}
	if !locked {
		return fmt.Errorf("%w: %s", ErrLocked, d.Path)
	}
	defer func() { _ = d.lock.Unlock() }()

	if err := d.snapshot(d.staged.text); err != nil {
		return err
	}
	if err := atomicWriteFile(d.Path, []byte(d.staged.text), 0o644); err != nil {
		return err
	}
	meta := Meta{
		Revision:     newULID(),
		UpdatedAt:    timeNow(),
		PreviewPlain: d.staged.plain,
		PreviewHTML:  d.staged.html,
	}
	b, err := yaml.Marshal(&meta)
	if err != nil {
		return err
	}
	if err := atomicWriteFile(d.MetaPath(), b, 0o644); err != nil {
		return err
	}
	d.staged = nil
	return d.prune()
}

// Meta reads the sidecar of the last save.
func (d *FileDocument) Meta() (Meta, error) {
	var meta Meta
	b, err := os.ReadFile(d.MetaPath())
	if err != nil {
		return meta, err
	}
	if err := yaml.Unmarshal(b, &meta); err != nil {
		return meta, err
	}
	return meta, nil
}

// Revisions lists saved revisions, newest first.
func (d *FileDocument) Revisions() ([]Revision, error) {
	entries, err := os.ReadDir(d.RevisionsDir())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []Revision
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), revisionExt) {
			continue
		}
		id := strings.TrimSuffix(e.Name(), revisionExt)
		rev := Revision{ID: id, Path: filepath.Join(d.RevisionsDir(), e.Name())}
		if parsed, err := ulid.ParseStrict(id); err == nil {
			rev.SavedAt = ulid.Time(parsed.Time()).UTC()
		}
		out = append(out, rev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// snapshot copies the current file into the revisions directory unless it
// is missing, empty, or identical to next.
func (d *FileDocument) snapshot(next string) error {
	current, err := d.ReadRaw()
	if err != nil {
		return err
	}
	if current == "" || current == next || d.Keep <= 0 {
		return nil
	}
	path := filepath.Join(d.RevisionsDir(), newULID()+revisionExt)
	return atomicWriteFile(path, []byte(current), 0o644)
}

func (d *FileDocument) prune() error {
	revs, err := d.Revisions()
	if err != nil {
		return err
	}
	keep := d.Keep
	if keep < 0 {
		keep = 0
	}
	for i := keep; i < len(revs); i++ {
		if err := os.Remove(revs[i].Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}
