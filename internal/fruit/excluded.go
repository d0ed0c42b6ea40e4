package fruit

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/gofrs/flock"
)

const ExcludeActorUser = "user"

// ExcludedFruits is the on-disk list of candidates that must never be offered again.
type ExcludedFruits struct {
	Items []*ExcludedFruit
}

type ExcludedFruit struct {
	ID         string
	Type       Type
	Actor      string    `json:",omitempty"`
	Reason     string    `json:",omitempty"`
	ExcludedAt time.Time
}

func (f *Fruits) ToExcluded(actor, reason string) *ExcludedFruits {
	excluded := &ExcludedFruits{}
	for _, item := range f.Items {
		excluded.Items = append(excluded.Items, &ExcludedFruit{
			ID:         item.ID,
			Type:       item.Type,
			Actor:      actor,
			Reason:     reason,
			ExcludedAt: time.Now().UTC(),
		})
	}
	return excluded
}

// GetExcludedFruitsFromFile reads the exclude file. A missing file is an empty list.
func GetExcludedFruitsFromFile(path string) (*ExcludedFruits, error) {
	lock := flock.New(lockPath(path))
	if err := lock.RLock(); err != nil {
		return nil, fmt.Errorf("lock exclude file: %w", err)
	}
	defer lock.Unlock()

	return readExcluded(path)
}

func readExcluded(path string) (*ExcludedFruits, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &ExcludedFruits{}, nil
	}
	if err != nil {
		return nil, err
	}

	var excluded ExcludedFruits
	if len(data) == 0 {
		return &excluded, nil
	}
	if err := json.Unmarshal(data, &excluded); err != nil {
		return nil, fmt.Errorf("decode exclude file %s: %w", path, err)
	}

	return &excluded, nil
}

func (e *ExcludedFruits) Append(s *ExcludedFruits) {
	for _, item := range s.Items {
		if e.Contains(item.ID) {
			continue
		}
		e.Items = append(e.Items, item)
	}
}

func (e *ExcludedFruits) Contains(id string) bool {
	for _, item := range e.Items {
		if item.ID == id {
			return true
		}
	}
	return false
}

func (e *ExcludedFruits) FruitIDs() []string {
	ids := make([]string, 0, len(e.Items))
	for _, item := range e.Items {
		ids = append(ids, item.ID)
	}
	return ids
}

func (e *ExcludedFruits) ToFile(path string) error {
	lock := flock.New(lockPath(path))
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock exclude file: %w", err)
	}
	defer lock.Unlock()

	return e.write(path)
}

func (e *ExcludedFruits) write(path string) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	return enc.Encode(e)
}

// AppendToExcludeFile merges s into the file at path under a single exclusive lock.
func AppendToExcludeFile(path string, s *ExcludedFruits) error {
	lock := flock.New(lockPath(path))
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock exclude file: %w", err)
	}
	defer lock.Unlock()

	current, err := readExcluded(path)
	if err != nil {
		return err
	}
	current.Append(s)

	return current.write(path)
}

func lockPath(path string) string {
	return path + ".lock"
}
