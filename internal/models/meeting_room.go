package models

import "time"

type MeetingRoom struct {
	ID          int64     `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Capacity    int       `db:"capacity" json:"capacity"`
	Location    string    `db:"location" json:"location"`
	Equipment   string    `db:"equipment" json:"equipment"`
	Description string    `db:"description" json:"description"`
	IsBooked    bool      `db:"is_booked" json:"isBooked"`
	CreatedAt   time.Time `db:"created_at" json:"createTime"`
	UpdatedAt   time.Time `db:"updated_at" json:"updateTime"`
}
