package service

import (
	"library-api/models"
	"library-api/store"
)

// MemberService owns the member repository and id sequence.
type MemberService struct {
	repo   store.Repository[int, models.Member]
	nextID int
}

// NewMemberService returns a MemberService backed by repo.
func NewMemberService(repo store.Repository[int, models.Member]) *MemberService {
	return &MemberService{repo: repo, nextID: 1}
}

// Create stores a new member. A zero id is replaced by the next free one.
func (s *MemberService) Create(m models.Member) (models.Member, error) {
	if m.MemberID != 0 && s.repo.Has(m.MemberID) {
		return models.Member{}, conflictf("member with id: %d already exists", m.MemberID)
	}
	if err := m.Validate(); err != nil {
		return models.Member{}, invalid(err)
	}
	if m.MemberID == 0 {
		m.MemberID = s.allocate()
	}
	s.repo.Put(m.MemberID, m)
	return m, nil
}

func (s *MemberService) allocate() int {
	for s.repo.Has(s.nextID) {
		s.nextID++
	}
	id := s.nextID
	s.nextID++
	return id
}

// Get returns the member with id.
func (s *MemberService) Get(id int) (models.Member, bool) {
	return s.repo.Get(id)
}

// Exists reports whether a member with id is stored.
func (s *MemberService) Exists(id int) bool {
	return s.repo.Has(id)
}

// List returns members in creation order.
func (s *MemberService) List() []models.Member {
	return s.repo.List()
}

// stage applies patch to a copy of the stored member and validates it.
func (s *MemberService) stage(id int, patch models.MemberPatch) (models.Member, error) {
	m, ok := s.repo.Get(id)
	if !ok {
		return models.Member{}, notFound("member", id)
	}
	m.Apply(patch)
	if err := m.Validate(); err != nil {
		return models.Member{}, invalid(err)
	}
	return m, nil
}

func (s *MemberService) save(m models.Member) {
	s.repo.Put(m.MemberID, m)
}

// Update applies patch to the member. The stored member is unchanged when the
// result does not validate.
func (s *MemberService) Update(id int, patch models.MemberPatch) (models.Member, error) {
	m, err := s.stage(id, patch)
	if err != nil {
		return models.Member{}, err
	}
	s.save(m)
	return m, nil
}

// Delete removes the member and reports whether they existed.
func (s *MemberService) Delete(id int) bool {
	return s.repo.Delete(id)
}
