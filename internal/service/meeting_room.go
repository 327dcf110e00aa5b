package service

import (
	"database/sql"
	"errors"
	"fmt"

	"backend/internal/models"
	"backend/internal/repository"

	"go.uber.org/zap"
)

var (
	ErrRoomAlreadyExists = errors.New("meeting room name already exists")
	ErrRoomNotFound      = errors.New("meeting room not found")
	ErrInvalidPage       = errors.New("page number must be at least 1")
)

type CreateRoomInput struct {
	Name        string
	Capacity    int
	Location    string
	Equipment   string
	Description string
}

// UpdateRoomInput overwrites name, capacity and location; equipment and
// description are applied only when non-empty.
type UpdateRoomInput struct {
	Name        string
	Capacity    int
	Location    string
	Equipment   string
	Description string
}

type MeetingRoomService interface {
	List(page, pageSize int, filter repository.RoomFilter) ([]models.MeetingRoom, int64, error)
	Create(input CreateRoomInput) (*models.MeetingRoom, error)
	Update(id int64, input UpdateRoomInput) error
	Get(id int64) (*models.MeetingRoom, error)
	Delete(id int64) error
}

type meetingRoomService struct {
	repo   repository.MeetingRoomRepository
	logger *zap.Logger
}

func NewMeetingRoomService(repo repository.MeetingRoomRepository, logger *zap.Logger) MeetingRoomService {
	return &meetingRoomService{repo: repo, logger: logger}
}

func (s *meetingRoomService) List(page, pageSize int, filter repository.RoomFilter) ([]models.MeetingRoom, int64, error) {
	if page < 1 {
		return nil, 0, ErrInvalidPage
	}

	rooms, totalCount, err := s.repo.ListRooms(page, pageSize, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list meeting rooms: %w", err)
	}
	return rooms, totalCount, nil
}

func (s *meetingRoomService) Create(input CreateRoomInput) (*models.MeetingRoom, error) {
	_, err := s.repo.GetRoomByName(input.Name)
	if err == nil {
		return nil, ErrRoomAlreadyExists
	}
	if !errors.Is(err, sql.ErrNoRows) {
		s.logger.Error("Failed to look up room by name", zap.Error(err))
		return nil, fmt.Errorf("failed to check existing rooms: %w", err)
	}

	room := &models.MeetingRoom{
		Name:        input.Name,
		Capacity:    input.Capacity,
		Location:    input.Location,
		Equipment:   input.Equipment,
		Description: input.Description,
	}

	if err := s.repo.CreateRoom(room); err != nil {
		s.logger.Error("Failed to create meeting room", zap.Error(err))
		return nil, fmt.Errorf("failed to create meeting room: %w", err)
	}

	s.logger.Info("Meeting room created", zap.String("name", room.Name))
	return room, nil
}

func (s *meetingRoomService) Update(id int64, input UpdateRoomInput) error {
	room, err := s.repo.GetRoomByID(id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrRoomNotFound
		}
		return fmt.Errorf("failed to retrieve meeting room: %w", err)
	}

	room.Name = input.Name
	room.Capacity = input.Capacity
	room.Location = input.Location
	if input.Equipment != "" {
		room.Equipment = input.Equipment
	}
	if input.Description != "" {
		room.Description = input.Description
	}

	if err := s.repo.UpdateRoom(room); err != nil {
		s.logger.Error("Failed to update meeting room", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to update meeting room: %w", err)
	}

	s.logger.Info("Meeting room updated", zap.Int64("id", id))
	return nil
}

func (s *meetingRoomService) Get(id int64) (*models.MeetingRoom, error) {
	room, err := s.repo.GetRoomByID(id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("failed to retrieve meeting room: %w", err)
	}
	return room, nil
}

func (s *meetingRoomService) Delete(id int64) error {
	if err := s.repo.DeleteRoom(id); err != nil {
		s.logger.Error("Failed to delete meeting room", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to delete meeting room: %w", err)
	}
	return nil
}
