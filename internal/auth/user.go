package auth

import (
	"encoding/json"
)

// User представляет пользователя из сервиса аккаунтов
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// ToJSON сериализует пользователя в JSON для кеширования
func (u *User) ToJSON() ([]byte, error) {
	return json.Marshal(u)
}

// UserFromJSON десериализует пользователя из JSON
func UserFromJSON(data []byte) (*User, error) {
	var user User
	err := json.Unmarshal(data, &user)
	return &user, err
}

// IsAdmin проверяет, является ли пользователь администратором
func (u *User) IsAdmin() bool {
	return u.Role == "admin"
}
