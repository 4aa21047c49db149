package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// Open connects to MySQL and verifies the connection.
func Open(user, pass, host, port, name string) (*sql.DB, error) {
	auth := user
	if pass != "" {
		auth = fmt.Sprintf("%s:%s", user, pass)
	}
	// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
	dsn := fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
		auth, host, port, name)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	// Pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	// Ping with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates the application tables when they do not exist yet.
// The unique keys and cascading foreign keys are the authoritative guards
// for the store invariants: duplicate email, duplicate (title, year) and
// duplicate (user_id, movie_id) inserts fail here even when two requests
// race past the application-level existence checks, and deleting a user
// or movie removes its favorites atomically.
func Migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
			name VARCHAR(100) NOT NULL,
			email VARCHAR(150) NOT NULL,
			registered_at DATETIME NOT NULL,
			PRIMARY KEY (id),
			UNIQUE KEY uq_users_email (email)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		`CREATE TABLE IF NOT EXISTS movies (
			id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
			title VARCHAR(200) NOT NULL,
			director VARCHAR(150) NOT NULL,
			genre VARCHAR(100) NOT NULL,
			duration INT NOT NULL,
			year INT NOT NULL,
			classification VARCHAR(10) NOT NULL,
			synopsis VARCHAR(1000) NULL,
			created_at DATETIME NOT NULL,
			poster MEDIUMBLOB NULL,
			PRIMARY KEY (id),
			UNIQUE KEY uq_movies_title_year (title, year)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		`CREATE TABLE IF NOT EXISTS favorites (
			id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
			user_id BIGINT UNSIGNED NOT NULL,
			movie_id BIGINT UNSIGNED NOT NULL,
			marked_at DATETIME NOT NULL,
			PRIMARY KEY (id),
			UNIQUE KEY uq_favorites_user_movie (user_id, movie_id),
			CONSTRAINT fk_favorites_user FOREIGN KEY (user_id)
				REFERENCES users (id) ON DELETE CASCADE,
			CONSTRAINT fk_favorites_movie FOREIGN KEY (movie_id)
				REFERENCES movies (id) ON DELETE CASCADE
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	}
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
