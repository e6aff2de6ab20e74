// Package users предоставляет доступ к хранению профилей подписчиков
package users

import "time"

// User профиль подписчика: выбранный факультет и группа
type User struct {
	UserID       int64
	FacultyID    string
	FacultyName  string
	GroupID      string
	GroupName    string
	RegisteredAt time.Time
	IsActive     bool
}

// BroadcastTarget минимальный набор полей для ежедневной рассылки
type BroadcastTarget struct {
	UserID    int64
	FacultyID string
	GroupID   string
}
