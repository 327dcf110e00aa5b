package handler

import (
	"errors"
	"net/http"
	"strconv"

	"backend/internal/models"
	"backend/internal/repository"
	"backend/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type MeetingRoomHandler struct {
	rooms service.MeetingRoomService
	log   *zap.Logger
}

func NewMeetingRoomHandler(rooms service.MeetingRoomService, log *zap.Logger) *MeetingRoomHandler {
	return &MeetingRoomHandler{rooms: rooms, log: log}
}

type CreateRoomRequest struct {
	Name        string `json:"name" binding:"required"`
	Capacity    int    `json:"capacity" binding:"required,min=1"`
	Location    string `json:"location" binding:"required"`
	Equipment   string `json:"equipment"`
	Description string `json:"description"`
}

type UpdateRoomRequest struct {
	ID          int64  `json:"id" binding:"required"`
	Name        string `json:"name" binding:"required"`
	Capacity    int    `json:"capacity" binding:"required,min=1"`
	Location    string `json:"location" binding:"required"`
	Equipment   string `json:"equipment"`
	Description string `json:"description"`
}

type RoomListResponse struct {
	MeetingRooms []models.MeetingRoom `json:"meetingRooms"`
	TotalCount   int64                `json:"totalCount"`
}

func (h *MeetingRoomHandler) List(c *gin.Context) {
	page := queryInt(c, "pageNum", 1)
	pageSize := queryInt(c, "pageSize", 10)

	rooms, totalCount, err := h.rooms.List(page, pageSize, repository.RoomFilter{
		Name:        c.Query("name"),
		Capacity:    c.Query("capacity"),
		Location:    c.Query("location"),
		Equipment:   c.Query("equipment"),
		Description: c.Query("description"),
	})
	if err != nil {
		if errors.Is(err, service.ErrInvalidPage) {
			fail(c, http.StatusBadRequest, err.Error())
			return
		}
		h.log.Error("Failed to list meeting rooms", zap.Error(err))
		fail(c, http.StatusInternalServerError, "Failed to list meeting rooms")
		return
	}

	ok(c, RoomListResponse{MeetingRooms: rooms, TotalCount: totalCount})
}

func (h *MeetingRoomHandler) Create(c *gin.Context) {
	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	room, err := h.rooms.Create(service.CreateRoomInput{
		Name:        req.Name,
		Capacity:    req.Capacity,
		Location:    req.Location,
		Equipment:   req.Equipment,
		Description: req.Description,
	})
	if err != nil {
		if errors.Is(err, service.ErrRoomAlreadyExists) {
			fail(c, http.StatusBadRequest, err.Error())
			return
		}
		h.log.Error("Failed to create meeting room", zap.Error(err))
		fail(c, http.StatusInternalServerError, "Failed to create meeting room")
		return
	}

	created(c, room)
}

func (h *MeetingRoomHandler) Update(c *gin.Context) {
	var req UpdateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	err := h.rooms.Update(req.ID, service.UpdateRoomInput{
		Name:        req.Name,
		Capacity:    req.Capacity,
		Location:    req.Location,
		Equipment:   req.Equipment,
		Description: req.Description,
	})
	if err != nil {
		if errors.Is(err, service.ErrRoomNotFound) {
			fail(c, http.StatusBadRequest, err.Error())
			return
		}
		h.log.Error("Failed to update meeting room", zap.Error(err))
		fail(c, http.StatusInternalServerError, "Failed to update meeting room")
		return
	}

	ok(c, "Meeting room updated")
}

func (h *MeetingRoomHandler) Get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		fail(c, http.StatusBadRequest, "id must be an integer")
		return
	}

	room, err := h.rooms.Get(id)
	if err != nil {
		if errors.Is(err, service.ErrRoomNotFound) {
			fail(c, http.StatusNotFound, err.Error())
			return
		}
		h.log.Error("Failed to get meeting room", zap.Error(err))
		fail(c, http.StatusInternalServerError, "Failed to get meeting room")
		return
	}

	ok(c, room)
}

func (h *MeetingRoomHandler) Delete(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		fail(c, http.StatusBadRequest, "id must be an integer")
		return
	}

	if err := h.rooms.Delete(id); err != nil {
		h.log.Error("Failed to delete meeting room", zap.Error(err))
		fail(c, http.StatusInternalServerError, "Failed to delete meeting room")
		return
	}

	ok(c, "Meeting room deleted")
}
