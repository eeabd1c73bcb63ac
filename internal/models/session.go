package models

import (
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type Session struct {
	ID    int64  `db:"id" json:"id"`
	Label string `db:"label" json:"label" validate:"required,max=120"`
}

type UE struct {
	Code string `db:"ue" json:"ue" validate:"required,max=32"`
}

// SessionCompo links a UE into a session. Its id anchors events.
type SessionCompo struct {
	ID      int64  `db:"id" json:"id"`
	Session int64  `db:"session" json:"session" validate:"required"`
	UE      string `db:"ue" json:"ue" validate:"required,max=32"`
}

func (s *Session) Validate() error {
	return validate.Struct(s)
}

func (c *SessionCompo) Validate() error {
	return validate.Struct(c)
}
