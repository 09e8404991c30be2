package models

// FileDescriptor — итоговая запись о полностью загруженном файле.
type FileDescriptor struct {
	FileID   string `json:"file_id"`
	ItemID   string `json:"item_id"`
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type,omitempty"`
}

// User — владелец токена, как его возвращает /user/me.
type User struct {
	ID        string `json:"id"`
	Login     string `json:"login"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}
