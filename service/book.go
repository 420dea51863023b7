package service

import (
	"strings"
	"time"

	"github.com/samber/lo"

	"library-api/models"
	"library-api/store"
)

// SearchFilters narrow a catalog search. Nil and empty fields are ignored.
type SearchFilters struct {
	Category        string
	Author          string
	Available       *bool
	MinRating       *float64
	MaxRating       *float64
	PublishedAfter  *time.Time
	PublishedBefore *time.Time
}

// Applied names the filters that are set, in a stable order.
func (f SearchFilters) Applied() []string {
	applied := []string{}
	add := func(set bool, name string) {
		if set {
			applied = append(applied, name)
		}
	}
	add(f.Category != "", "category")
	add(f.Author != "", "author")
	add(f.PublishedAfter != nil, "published_after")
	add(f.PublishedBefore != nil, "published_before")
	add(f.MinRating != nil, "min_rating")
	add(f.MaxRating != nil, "max_rating")
	add(f.Available != nil, "availability")
	return applied
}

// BookService owns the book repository and id sequence.
type BookService struct {
	repo   store.Repository[int, models.Book]
	nextID int
}

// NewBookService returns a BookService backed by repo.
func NewBookService(repo store.Repository[int, models.Book]) *BookService {
	return &BookService{repo: repo, nextID: 1}
}

// Create stores a new book. A zero id is replaced by the next free one.
func (s *BookService) Create(b models.Book) (models.Book, error) {
	if b.BookID != 0 && s.repo.Has(b.BookID) {
		return models.Book{}, conflictf("book with id: %d already exists", b.BookID)
	}
	if err := b.Validate(); err != nil {
		return models.Book{}, invalid(err)
	}
	if b.BookID == 0 {
		b.BookID = s.allocate()
	}
	s.repo.Put(b.BookID, b)
	return b, nil
}

func (s *BookService) allocate() int {
	for s.repo.Has(s.nextID) {
		s.nextID++
	}
	id := s.nextID
	s.nextID++
	return id
}

// Get returns the book with id.
func (s *BookService) Get(id int) (models.Book, bool) {
	return s.repo.Get(id)
}

// Exists reports whether a book with id is stored.
func (s *BookService) Exists(id int) bool {
	return s.repo.Has(id)
}

func (s *BookService) List() []models.Book {
	return s.repo.List()
}

func (s *BookService) stage(id int, patch models.BookPatch) (models.Book, error) {
	b, ok := s.repo.Get(id)
	if !ok {
		return models.Book{}, notFound("book", id)
	}
	b.Apply(patch)
	if err := b.Validate(); err != nil {
		return models.Book{}, invalid(err)
	}
	return b, nil
}

func (s *BookService) save(b models.Book) {
	s.repo.Put(b.BookID, b)
}

// Update applies patch to the book. The stored book is unchanged when the
// result does not validate.
func (s *BookService) Update(id int, patch models.BookPatch) (models.Book, error) {
	b, err := s.stage(id, patch)
	if err != nil {
		return models.Book{}, err
	}
	s.save(b)
	return b, nil
}

// Delete removes the book and reports whether it existed.
func (s *BookService) Delete(id int) bool {
	return s.repo.Delete(id)
}

// Search matches query case-insensitively against title, author, category and
// description, then applies filters. Results keep catalog order.
func (s *BookService) Search(query string, f SearchFilters) []models.Book {
	term := strings.ToLower(strings.TrimSpace(query))
	author := strings.ToLower(f.Author)

	return lo.Filter(s.repo.List(), func(b models.Book, _ int) bool {
		if term != "" &&
			!strings.Contains(strings.ToLower(b.Title), term) &&
			!strings.Contains(strings.ToLower(b.Author), term) &&
			!strings.Contains(strings.ToLower(b.Category), term) &&
			!strings.Contains(strings.ToLower(b.Description), term) {
			return false
		}
		if f.Category != "" && b.Category != f.Category {
			return false
		}
		if author != "" && !strings.Contains(strings.ToLower(b.Author), author) {
			return false
		}
		if f.Available != nil && b.IsAvailable != *f.Available {
			return false
		}
		if f.MinRating != nil && b.Rating < *f.MinRating {
			return false
		}
		if f.MaxRating != nil && b.Rating > *f.MaxRating {
			return false
		}
		if f.PublishedAfter != nil || f.PublishedBefore != nil {
			published, ok := b.PublishedAt()
			if !ok {
				return false
			}
			if f.PublishedAfter != nil && published.Before(*f.PublishedAfter) {
				return false
			}
			if f.PublishedBefore != nil && published.After(*f.PublishedBefore) {
				return false
			}
		}
		return true
	})
}
