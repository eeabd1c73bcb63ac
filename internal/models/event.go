package models

type Event struct {
	ID           int64  `db:"id" json:"id"`
	Label        string `db:"label" json:"label" validate:"required,min=3,max=120"`
	SessionCompo int64  `db:"session_compo" json:"session_compo" validate:"required"`
}

func (e *Event) Validate() error {
	return validate.Struct(e)
}
