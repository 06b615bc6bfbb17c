package models

// RoomDay holds the queue counters of an open clinic session.
type RoomDay struct {
	BaseModel
	ScheduleID            string `gorm:"size:36;uniqueIndex" json:"schedule_id"`
	NextSequence          int    `gorm:"default:1" json:"next_sequence"`
	CurrentCalledSequence int    `gorm:"default:0" json:"current_called_sequence"`
}

// TakeSequence returns the next ticket sequence and advances the counter.
func (r *RoomDay) TakeSequence() int {
	if r.NextSequence < 1 {
		r.NextSequence = 1
	}
	seq := r.NextSequence
	r.NextSequence++
	return seq
}
