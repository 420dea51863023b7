package models

import (
	"math"
	"strings"
	"unicode/utf8"
)

const (
	MinMemberAge       = 12
	MaxMemberAge       = 120
	MaxMemberNameChars = 100
	maxPriorityScore   = 10
)

// Member represents a registered library member.
type Member struct {
	MemberID    int    `json:"member_id"`
	Name        string `json:"name"`
	Age         int    `json:"age"`
	HasBorrowed bool   `json:"has_borrowed"`
}

// MemberPatch carries the allow-listed fields of a partial member update.
// Nil fields are left untouched.
type MemberPatch struct {
	Name        *string
	Age         *int
	HasBorrowed *bool
}

// NewMember builds a member that has not borrowed anything yet. A zero id is
// assigned by the member service on creation.
func NewMember(id int, name string, age int) Member {
	return Member{MemberID: id, Name: name, Age: age}
}

// Validate reports every violated member rule.
func (m Member) Validate() error {
	var v validation
	name := strings.TrimSpace(m.Name)
	v.failIf(name == "", "Name is required")
	v.failIf(utf8.RuneCountInString(m.Name) > MaxMemberNameChars, "Name must be 100 characters or less")
	v.failIf(m.Age < MinMemberAge, "Age must be 12 or older")
	v.failIf(m.Age > MaxMemberAge, "Age must be 120 or younger")
	v.failIf(m.MemberID < 0, "Member ID must be a positive integer")
	return v.result()
}

// Apply copies the non-nil patch fields onto the member.
func (m *Member) Apply(p MemberPatch) {
	if p.Name != nil {
		m.Name = *p.Name
	}
	if p.Age != nil {
		m.Age = *p.Age
	}
	if p.HasBorrowed != nil {
		m.HasBorrowed = *p.HasBorrowed
	}
}

// PriorityScore is the member's contribution to reservation ranking.
func (m Member) PriorityScore() float64 {
	score := 1.0
	if m.Age > 18 {
		score += 0.5
	}
	if m.Age > 65 {
		score += 0.5
	}
	if m.HasBorrowed {
		score++
	}
	return math.Min(score, maxPriorityScore)
}
