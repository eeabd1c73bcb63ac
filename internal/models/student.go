package models

type Student struct {
	StudentID int64  `db:"student_id" json:"student_id"`
	Firstname string `db:"firstname" json:"firstname"`
	Lastname  string `db:"lastname" json:"lastname"`
}

// PAE is an enrollment of a student in a UE.
type PAE struct {
	StudentID int64  `db:"student_id" json:"student_id"`
	UE        string `db:"ue" json:"ue"`
	Group     string `db:"group" json:"group"`
}

// Examination is a presence row: its existence means the student is checked
// in to the examination room.
type Examination struct {
	ID              int64 `db:"id" json:"id"`
	Student         int64 `db:"student" json:"student"`
	ExaminationRoom int64 `db:"examination_room" json:"examination_room"`
}
