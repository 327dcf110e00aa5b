package repository

import (
	"fmt"
	"strings"

	"backend/internal/models"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

type MeetingRoomRepository interface {
	CreateRoom(room *models.MeetingRoom) error
	GetRoomByID(id int64) (*models.MeetingRoom, error)
	GetRoomByName(name string) (*models.MeetingRoom, error)
	UpdateRoom(room *models.MeetingRoom) error
	DeleteRoom(id int64) error
	ListRooms(page, pageSize int, filter RoomFilter) ([]models.MeetingRoom, int64, error)
}

// RoomFilter holds the optional fuzzy-match filters for room listing.
type RoomFilter struct {
	Name        string
	Capacity    string
	Location    string
	Equipment   string
	Description string
}

type meetingRoomRepository struct {
	db  *sqlx.DB
	log *zap.Logger
}

func NewMeetingRoomRepository(db *sqlx.DB, log *zap.Logger) MeetingRoomRepository {
	return &meetingRoomRepository{db: db, log: log}
}

const roomColumns = `id, name, capacity, location, equipment, description, is_booked, created_at, updated_at`

func (r *meetingRoomRepository) CreateRoom(room *models.MeetingRoom) error {
	query := `INSERT INTO meeting_rooms (name, capacity, location, equipment, description)
	          VALUES ($1, $2, $3, $4, $5)
	          RETURNING id, created_at, updated_at`
	return r.db.QueryRowx(query, room.Name, room.Capacity, room.Location, room.Equipment, room.Description).
		Scan(&room.ID, &room.CreatedAt, &room.UpdatedAt)
}

func (r *meetingRoomRepository) GetRoomByID(id int64) (*models.MeetingRoom, error) {
	var room models.MeetingRoom
	query := `SELECT ` + roomColumns + ` FROM meeting_rooms WHERE id = $1`
	if err := r.db.Get(&room, query, id); err != nil {
		return nil, err
	}
	return &room, nil
}

func (r *meetingRoomRepository) GetRoomByName(name string) (*models.MeetingRoom, error) {
	var room models.MeetingRoom
	query := `SELECT ` + roomColumns + ` FROM meeting_rooms WHERE name = $1`
	if err := r.db.Get(&room, query, name); err != nil {
		return nil, err
	}
	return &room, nil
}

func (r *meetingRoomRepository) UpdateRoom(room *models.MeetingRoom) error {
	query := `UPDATE meeting_rooms
	          SET name = $1, capacity = $2, location = $3, equipment = $4, description = $5, updated_at = now()
	          WHERE id = $6`
	_, err := r.db.Exec(query, room.Name, room.Capacity, room.Location, room.Equipment, room.Description, room.ID)
	return err
}

func (r *meetingRoomRepository) DeleteRoom(id int64) error {
	query := `DELETE FROM meeting_rooms WHERE id = $1`
	_, err := r.db.Exec(query, id)
	return err
}

func (r *meetingRoomRepository) ListRooms(page, pageSize int, filter RoomFilter) ([]models.MeetingRoom, int64, error) {
	where := []string{}
	args := []interface{}{}

	addFilter := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, "%"+value+"%")
		where = append(where, fmt.Sprintf("%s ILIKE $%d", column, len(args)))
	}
	addFilter("name", filter.Name)
	addFilter("capacity::text", filter.Capacity)
	addFilter("location", filter.Location)
	addFilter("equipment", filter.Equipment)
	addFilter("description", filter.Description)

	condition := ""
	if len(where) > 0 {
		condition = " WHERE " + strings.Join(where, " AND ")
	}

	var totalCount int64
	if err := r.db.Get(&totalCount, `SELECT COUNT(*) FROM meeting_rooms`+condition, args...); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + roomColumns + ` FROM meeting_rooms` + condition +
		fmt.Sprintf(` ORDER BY id LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, pageSize, (page-1)*pageSize)

	rooms := []models.MeetingRoom{}
	if err := r.db.Select(&rooms, query, args...); err != nil {
		return nil, 0, err
	}

	return rooms, totalCount, nil
}
