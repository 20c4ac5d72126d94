package authsvc

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"liblending/model"
	userrepo "liblending/repository/user"
	"liblending/util/hash"

	"github.com/stretchr/testify/require"
)

type mockRepo struct {
	createFn     func(ctx context.Context, u *model.User) error
	byEmailFn    func(ctx context.Context, email string) (*model.User, error)
	byIDFn       func(ctx context.Context, id int64) (*model.User, error)
	existsFn     func(ctx context.Context, id int64) (bool, error)
	createCardFn func(ctx context.Context, c *model.LibraryCard) error
	cardByUserFn func(ctx context.Context, userID int64) (*model.LibraryCard, error)
}

var _ userrepo.Repo = (*mockRepo)(nil)

func (m *mockRepo) Create(ctx context.Context, u *model.User) error { return m.createFn(ctx, u) }
func (m *mockRepo) ByEmail(ctx context.Context, email string) (*model.User, error) {
	return m.byEmailFn(ctx, email)
}
func (m *mockRepo) ByID(ctx context.Context, id int64) (*model.User, error) {
	return m.byIDFn(ctx, id)
}
func (m *mockRepo) Exists(ctx context.Context, id int64) (bool, error) {
	return m.existsFn(ctx, id)
}
func (m *mockRepo) CreateCard(ctx context.Context, c *model.LibraryCard) error {
	return m.createCardFn(ctx, c)
}
func (m *mockRepo) CardByUser(ctx context.Context, userID int64) (*model.LibraryCard, error) {
	return m.cardByUserFn(ctx, userID)
}

var issuedAt = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

func TestRegister_IssuesCardAndToken(t *testing.T) {
	ctx := context.Background()
	var card *model.LibraryCard
	m := &mockRepo{
		createFn: func(ctx context.Context, u *model.User) error {
			u.ID = 42
			return nil
		},
		createCardFn: func(ctx context.Context, c *model.LibraryCard) error {
			card = c
			return nil
		},
	}
	svc := NewWithClock(m, func() time.Time { return issuedAt })

	u, tok, err := svc.Register(ctx, model.RegisterReq{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "ada@example.com",
		Username:  "ada",
		Password:  "supersecret",
	}, "test-secret")
	require.NoError(t, err)
	require.NotEmpty(t, tok)
	require.Equal(t, int64(42), u.ID)
	require.Equal(t, "user", u.Role)

	require.NotNil(t, card)
	require.Equal(t, int64(42), card.UserID)
	require.True(t, card.IsActive)
	require.Equal(t, issuedAt.AddDate(5, 0, 0), card.ExpiryDate)
	require.Regexp(t, regexp.MustCompile(`^LIB-2024-[0-9A-F]{4}$`), card.CardNumber)
}

func TestRegister_CreateError(t *testing.T) {
	ctx := context.Background()
	m := &mockRepo{
		createFn: func(ctx context.Context, u *model.User) error { return errors.New("db down") },
	}
	svc := New(m)

	_, _, err := svc.Register(ctx, model.RegisterReq{
		Email: "x@example.com", Username: "x", Password: "123456",
	}, "test-secret")
	require.Error(t, err)
}

func TestLogin_Success(t *testing.T) {
	ctx := context.Background()
	hashed, err := hash.HashPassword("supersecret")
	require.NoError(t, err)

	m := &mockRepo{
		byEmailFn: func(ctx context.Context, email string) (*model.User, error) {
			return &model.User{ID: 7, Email: email, PasswordHash: hashed, Role: "user"}, nil
		},
	}
	svc := New(m)

	u, tok, err := svc.Login(ctx, model.LoginReq{Email: "user@example.com", Password: "supersecret"}, "test-secret")
	require.NoError(t, err)
	require.NotEmpty(t, tok)
	require.Equal(t, int64(7), u.ID)
}

func TestLogin_WrongPassword(t *testing.T) {
	ctx := context.Background()
	hashed, err := hash.HashPassword("correct-password")
	require.NoError(t, err)

	m := &mockRepo{
		byEmailFn: func(ctx context.Context, email string) (*model.User, error) {
			return &model.User{ID: 7, PasswordHash: hashed}, nil
		},
	}
	svc := New(m)

	_, _, err = svc.Login(ctx, model.LoginReq{Email: "user@example.com", Password: "wrong"}, "test-secret")
	require.ErrorIs(t, err, ErrInvalidCreds)
}

func TestLogin_UnknownEmail(t *testing.T) {
	ctx := context.Background()
	m := &mockRepo{
		byEmailFn: func(ctx context.Context, email string) (*model.User, error) {
			return nil, errors.New("no rows")
		},
	}
	svc := New(m)

	_, _, err := svc.Login(ctx, model.LoginReq{Email: "missing@example.com", Password: "x"}, "test-secret")
	require.ErrorIs(t, err, ErrInvalidCreds)
}

func TestMe_ToleratesMissingCard(t *testing.T) {
	ctx := context.Background()
	m := &mockRepo{
		byIDFn: func(ctx context.Context, id int64) (*model.User, error) {
			return &model.User{ID: id}, nil
		},
		cardByUserFn: func(ctx context.Context, userID int64) (*model.LibraryCard, error) {
			return nil, errors.New("no rows")
		},
	}
	svc := New(m)

	u, card, err := svc.Me(ctx, 7)
	require.NoError(t, err)
	require.NotNil(t, u)
	require.Nil(t, card)
}
