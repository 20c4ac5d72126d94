package userrepo

import (
	"context"
	"database/sql"

	"liblending/model"
)

type Repo interface {
	Create(ctx context.Context, u *model.User) error
	ByEmail(ctx context.Context, email string) (*model.User, error)
	ByID(ctx context.Context, id int64) (*model.User, error)
	Exists(ctx context.Context, id int64) (bool, error)

	CreateCard(ctx context.Context, c *model.LibraryCard) error
	CardByUser(ctx context.Context, userID int64) (*model.LibraryCard, error)
}

type repo struct{ db *sql.DB }

func New(db *sql.DB) Repo { return &repo{db} }

func (r *repo) Create(ctx context.Context, u *model.User) error {
	return r.db.QueryRowContext(ctx, `
		INSERT INTO users(first_name, last_name, email, username, password_hash, role)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id, created_at`,
		u.FirstName, u.LastName, u.Email, u.Username, u.PasswordHash, u.Role,
	).Scan(&u.ID, &u.CreatedAt)
}

func (r *repo) ByEmail(ctx context.Context, email string) (*model.User, error) {
	u := &model.User{}
	err := r.db.QueryRowContext(ctx, `
        SELECT id, first_name, last_name, email, username, password_hash, role, created_at
        FROM users
        WHERE lower(email) = lower($1)`,
		email,
	).Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.Username, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (r *repo) ByID(ctx context.Context, id int64) (*model.User, error) {
	u := &model.User{}
	err := r.db.QueryRowContext(ctx, `
        SELECT id, first_name, last_name, email, username, password_hash, role, created_at
        FROM users
        WHERE id = $1`,
		id,
	).Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.Username, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (r *repo) Exists(ctx context.Context, id int64) (bool, error) {
	var out bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, id).Scan(&out)
	return out, err
}

func (r *repo) CreateCard(ctx context.Context, c *model.LibraryCard) error {
	return r.db.QueryRowContext(ctx, `
		INSERT INTO library_cards(user_id, card_number, issue_date, expiry_date, is_active)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING id`,
		c.UserID, c.CardNumber, c.IssueDate, c.ExpiryDate, c.IsActive,
	).Scan(&c.ID)
}

func (r *repo) CardByUser(ctx context.Context, userID int64) (*model.LibraryCard, error) {
	c := &model.LibraryCard{}
	err := r.db.QueryRowContext(ctx, `
        SELECT id, user_id, card_number, issue_date, expiry_date, is_active
        FROM library_cards
        WHERE user_id = $1`,
		userID,
	).Scan(&c.ID, &c.UserID, &c.CardNumber, &c.IssueDate, &c.ExpiryDate, &c.IsActive)
	if err != nil {
		return nil, err
	}
	return c, nil
}
