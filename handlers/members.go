package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"library-api/models"
	"library-api/service"
)

var memberMessages = fieldMessages{
	"member_id": "Member ID must be a positive integer",
	"name":      "Name is required",
	"name.max":  "Name must be between 1 and 100 characters",
	"age":       "Age must be between 12 and 120",
}

type createMemberRequest struct {
	MemberID *int   `json:"member_id" binding:"omitempty,min=1"`
	Name     string `json:"name" binding:"notblank,max=100"`
	Age      *int   `json:"age" binding:"required,min=12,max=120"`
}

type updateMemberRequest struct {
	Name *string `json:"name" binding:"omitempty,notblank,max=100"`
	Age  *int    `json:"age" binding:"omitempty,min=12,max=120"`
}

type memberResponse struct {
	MemberID    int    `json:"member_id"`
	Name        string `json:"name"`
	Age         int    `json:"age"`
	HasBorrowed bool   `json:"has_borrowed"`
}

type memberSummary struct {
	MemberID int    `json:"member_id"`
	Name     string `json:"name"`
	Age      int    `json:"age"`
}

func toMemberResponse(m models.Member) memberResponse {
	return memberResponse{MemberID: m.MemberID, Name: m.Name, Age: m.Age, HasBorrowed: m.HasBorrowed}
}

// MemberHandler serves the member endpoints.
type MemberHandler struct {
	lib  *service.Library
	errs errorResponder
}

// Create registers a member. A missing member_id is assigned.
func (h *MemberHandler) Create(c *gin.Context) {
	var req createMemberRequest
	if !bindJSON(c, &req, memberMessages) {
		return
	}

	id := 0
	if req.MemberID != nil {
		id = *req.MemberID
	}
	m, err := h.lib.CreateMember(c.Request.Context(), models.NewMember(id, strings.TrimSpace(req.Name), *req.Age))
	if err != nil {
		h.errs.respond(c, err)
		return
	}
	c.JSON(http.StatusOK, toMemberResponse(m))
}

// Get returns one member.
func (h *MemberHandler) Get(c *gin.Context) {
	id, ok := memberIDParam(c)
	if !ok {
		return
	}
	m, err := h.lib.GetMember(c.Request.Context(), id)
	if err != nil {
		h.errs.respond(c, err)
		return
	}
	c.JSON(http.StatusOK, toMemberResponse(m))
}

// List returns every member in short form.
func (h *MemberHandler) List(c *gin.Context) {
	members := h.lib.ListMembers(c.Request.Context())
	out := make([]memberSummary, 0, len(members))
	for _, m := range members {
		out = append(out, memberSummary{MemberID: m.MemberID, Name: m.Name, Age: m.Age})
	}
	c.JSON(http.StatusOK, gin.H{"members": out})
}

// Update applies name and age changes. Other fields are ignored.
func (h *MemberHandler) Update(c *gin.Context) {
	id, ok := memberIDParam(c)
	if !ok {
		return
	}
	var req updateMemberRequest
	if !bindJSON(c, &req, memberMessages) {
		return
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		req.Name = &name
	}

	m, err := h.lib.UpdateMember(c.Request.Context(), id, models.MemberPatch{Name: req.Name, Age: req.Age})
	if err != nil {
		h.errs.respond(c, err)
		return
	}
	c.JSON(http.StatusOK, toMemberResponse(m))
}

// Delete removes a member who is not borrowing.
func (h *MemberHandler) Delete(c *gin.Context) {
	id, ok := memberIDParam(c)
	if !ok {
		return
	}
	if err := h.lib.DeleteMember(c.Request.Context(), id); err != nil {
		h.errs.respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("member with id: %d has been deleted successfully", id)})
}
