package models

type Room struct {
	Label    string `db:"label" json:"label"`
	Capacity int    `db:"capacity" json:"capacity"`
}

type Teacher struct {
	Acro string `db:"acro" json:"acro"`
}

// ExaminationRoom assigns a physical room, and later a supervisor, to an event.
type ExaminationRoom struct {
	ID         int64   `db:"id" json:"id"`
	Event      int64   `db:"event" json:"event" validate:"required"`
	Room       string  `db:"room" json:"room" validate:"required"`
	Supervisor *string `db:"supervisor" json:"supervisor"`
}

func (r *ExaminationRoom) Validate() error {
	return validate.Struct(r)
}

// ValidateAcro checks a supervisor acronym before it is stored.
func ValidateAcro(acro string) error {
	return validate.Var(acro, "required,max=16")
}
