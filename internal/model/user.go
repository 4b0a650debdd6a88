package model

// User 用户，Email 同时作为个人通知频道的 key
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Image string `json:"image,omitempty"`
}

// Identity 已解析的调用方身份
type Identity struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
}

// Resolved 是否为已解析身份
func (i Identity) Resolved() bool {
	return i.UserID != ""
}
