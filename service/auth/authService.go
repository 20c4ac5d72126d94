package authsvc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"liblending/model"
	userrepo "liblending/repository/user"
	"liblending/util/hash"
	jwtutil "liblending/util/jwt"
)

var (
	ErrEmailTaken    = errors.New("email already registered")
	ErrBadInput      = errors.New("bad input")
	ErrInvalidCreds  = errors.New("invalid credentials")
	ErrUsernameTaken = errors.New("username already taken")
	ErrNotFound      = errors.New("user not found")
)

const cardValidYears = 5

type Service interface {
	Register(ctx context.Context, req model.RegisterReq, secret string) (*model.User, string, error)
	Login(ctx context.Context, req model.LoginReq, secret string) (*model.User, string, error)
	Me(ctx context.Context, userID int64) (*model.User, *model.LibraryCard, error)
}

type service struct {
	ur  userrepo.Repo
	now func() time.Time
}

func New(ur userrepo.Repo) Service { return &service{ur: ur, now: time.Now} }

// NewWithClock fixes the time source for deterministic tests.
func NewWithClock(ur userrepo.Repo, now func() time.Time) Service {
	return &service{ur: ur, now: now}
}

func (s *service) Register(ctx context.Context, req model.RegisterReq, secret string) (*model.User, string, error) {
	hashed, err := hash.HashPassword(req.Password)
	if err != nil {
		return nil, "", err
	}

	u := &model.User{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		Username:     req.Username,
		PasswordHash: hashed,
		Role:         "user",
	}

	if err := s.ur.Create(ctx, u); err != nil {
		if derr := mapDuplicateErr(err); derr != nil {
			return nil, "", derr
		}
		return nil, "", err
	}

	// Every patron gets a card at registration.
	issued := s.now()
	card := &model.LibraryCard{
		UserID:     u.ID,
		CardNumber: newCardNumber(issued),
		IssueDate:  issued,
		ExpiryDate: issued.AddDate(cardValidYears, 0, 0),
		IsActive:   true,
	}
	if err := s.ur.CreateCard(ctx, card); err != nil {
		return nil, "", err
	}

	token, err := jwtutil.Issue(secret, u.ID, u.Role, 24)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

func (s *service) Login(ctx context.Context, req model.LoginReq, secret string) (*model.User, string, error) {
	u, err := s.ur.ByEmail(ctx, req.Email)
	if err != nil {
		return nil, "", ErrInvalidCreds
	}
	if !hash.Check(u.PasswordHash, req.Password) {
		return nil, "", ErrInvalidCreds
	}
	token, err := jwtutil.Issue(secret, u.ID, u.Role, 24)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

func (s *service) Me(ctx context.Context, userID int64) (*model.User, *model.LibraryCard, error) {
	u, err := s.ur.ByID(ctx, userID)
	if err != nil {
		return nil, nil, ErrNotFound
	}
	card, err := s.ur.CardByUser(ctx, userID)
	if err != nil {
		// Old accounts may predate card issuance.
		return u, nil, nil
	}
	return u, card, nil
}

// newCardNumber follows the LIB-YYYY-XXXX format.
func newCardNumber(issued time.Time) string {
	suffix := strings.ToUpper(uuid.NewString()[:4])
	return fmt.Sprintf("LIB-%d-%s", issued.Year(), suffix)
}

func mapDuplicateErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		cn := strings.ToLower(pgErr.ConstraintName)
		msg := strings.ToLower(pgErr.Message)

		if strings.Contains(cn, "users_email") || strings.Contains(msg, "email") {
			return ErrEmailTaken
		}
		if strings.Contains(cn, "users_username") || strings.Contains(msg, "username") {
			return ErrUsernameTaken
		}
		return ErrBadInput
	}

	return nil
}
