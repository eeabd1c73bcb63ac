package models

// Gateway table names.
const (
	TableSession         = "session"
	TableUE              = "ue"
	TableSessionCompo    = "session_compo"
	TableEvent           = "event"
	TableRoom            = "room"
	TableTeacher         = "teacher"
	TableExaminationRoom = "examination_room"
	TableStudent         = "student"
	TablePAE             = "pae"
	TableExamination     = "examination"
)
