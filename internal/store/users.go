package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cloudshipai/loom/pkg/ids"
	"github.com/cloudshipai/loom/pkg/models"
)

// Users is the SQLite-backed assignment.Directory (UserDirectory, §6).
// ListEligible runs the filter in-process after a full table scan, the
// same contract the in-memory fakes already give the assignment service's
// tests: eligibility gating is cheap per-user Go logic, not SQL.
type Users struct {
	db *DB
}

func NewUsers(db *DB) *Users {
	return &Users{db: db}
}

// Put upserts a directory record.
func (u *Users) Put(ctx context.Context, user models.User) error {
	roles, err := json.Marshal(user.Roles)
	if err != nil {
		return fmt.Errorf("store: marshal user roles: %w", err)
	}
	skills, err := json.Marshal(user.Skills)
	if err != nil {
		return fmt.Errorf("store: marshal user skills: %w", err)
	}
	return withWriteLock(func() error {
		_, err := u.db.conn.ExecContext(ctx, `
			INSERT INTO users (id, status, roles, skills, joined_at) VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET status = excluded.status, roles = excluded.roles, skills = excluded.skills`,
			user.ID.String(), string(user.Status), string(roles), string(skills), user.JoinedAt)
		if err != nil {
			return fmt.Errorf("store: upsert user: %w", err)
		}
		return nil
	})
}

func (u *Users) Get(ctx context.Context, userID ids.ID) (models.User, bool, error) {
	row := u.db.conn.QueryRowContext(ctx, `SELECT id, status, roles, skills, joined_at FROM users WHERE id = ?`, userID.String())
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, false, nil
	}
	if err != nil {
		return models.User{}, false, err
	}
	return user, true, nil
}

func (u *Users) ListEligible(ctx context.Context, filter func(models.User) bool) ([]models.User, error) {
	rows, err := u.db.conn.QueryContext(ctx, `SELECT id, status, roles, skills, joined_at FROM users`)
	if err != nil {
		return nil, fmt.Errorf("store: list users: %w", err)
	}
	defer rows.Close()

	var out []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		if filter == nil || filter(user) {
			out = append(out, user)
		}
	}
	return out, rows.Err()
}

func scanUser(row interface{ Scan(...interface{}) error }) (models.User, error) {
	var id, status, roles, skills string
	var joinedAt int64
	if err := row.Scan(&id, &status, &roles, &skills, &joinedAt); err != nil {
		return models.User{}, fmt.Errorf("store: scan user: %w", err)
	}

	idVal, err := ids.Parse(ids.TagUser, id)
	if err != nil {
		return models.User{}, fmt.Errorf("store: parse user id: %w", err)
	}

	user := models.User{ID: idVal, Status: models.UserStatus(status), JoinedAt: joinedAt}
	if roles != "" {
		if err := json.Unmarshal([]byte(roles), &user.Roles); err != nil {
			return models.User{}, fmt.Errorf("store: unmarshal user roles: %w", err)
		}
	}
	if skills != "" {
		if err := json.Unmarshal([]byte(skills), &user.Skills); err != nil {
			return models.User{}, fmt.Errorf("store: unmarshal user skills: %w", err)
		}
	}
	return user, nil
}
