// Package db открывает базу данных SQLite и создает таблицы приложения
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Open открывает файл базы данных и создает недостающие таблицы
func Open(path string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database %s: %w", path, err)
	}

	// Настраиваем пул соединений
	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(5)

	if err := createTables(conn); err != nil {
		conn.Close()
		return nil, err
	}

	return conn, nil
}

func createTables(conn *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// 1) Таблица users — профили подписчиков
	_, err := conn.ExecContext(ctx, `
        CREATE TABLE IF NOT EXISTS users (
            user_id INTEGER PRIMARY KEY,
            faculty_id TEXT NOT NULL,
            faculty_name TEXT NOT NULL,
            group_id TEXT NOT NULL,
            group_name TEXT NOT NULL,
            registered_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            is_active BOOLEAN DEFAULT 1,
            last_activity TIMESTAMP
        );
    `)
	if err != nil {
		return fmt.Errorf("failed to create users table: %w", err)
	}

	// 2) Таблица schedule_cache — кеш распарсенного расписания
	_, err = conn.ExecContext(ctx, `
        CREATE TABLE IF NOT EXISTS schedule_cache (
            group_id TEXT NOT NULL,
            faculty_id TEXT NOT NULL,
            target_date DATE NOT NULL,
            schedule_data TEXT NOT NULL,
            updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            PRIMARY KEY (group_id, faculty_id, target_date)
        );
    `)
	if err != nil {
		return fmt.Errorf("failed to create schedule_cache table: %w", err)
	}

	return nil
}
