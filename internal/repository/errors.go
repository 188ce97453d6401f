package repository

// Conflict messages shared by the store implementations so callers see the
// same text whichever backend rejected the write.
const (
	MsgDuplicateEmail   = "a patient with this email already exists"
	MsgSlotTaken        = "another appointment is already scheduled at this date and time"
	MsgSessionNumber    = "session number already taken"
	MsgReferencedRecord = "referenced record"
)
