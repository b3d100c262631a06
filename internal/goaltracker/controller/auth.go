package controller

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/SakuraBurst/goaltracker/internal/goaltracker/database"
	"github.com/SakuraBurst/goaltracker/internal/goaltracker/types"
	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 6

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (c *Controller) CreateNewUser(ctx context.Context, request *types.UserRequest) (*types.User, error) {
	email := normalizeEmail(request.Email)
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return nil, invalid("a valid email is required")
	}
	if len(request.Password) < minPasswordLength {
		return nil, invalid("password must be at least %d characters long", minPasswordLength)
	}
	hashedPass, err := cryptPassword([]byte(request.Password))
	if err != nil {
		return nil, errors.Wrap(err, "cryptPassword failed")
	}
	user := &types.User{
		ID:        uuid.NewString(),
		Email:     email,
		Password:  string(hashedPass),
		CreatedAt: c.now().UTC(),
	}
	if err := c.userDatabase.CreateUser(ctx, user); err != nil {
		return nil, errors.Wrap(err, "userDatabase.CreateUser failed")
	}
	return user, nil
}

// AuthorizeUser checks the credentials and issues a signed token for the user.
// Unknown email and wrong password are reported the same way.
func (c *Controller) AuthorizeUser(ctx context.Context, request *types.UserRequest) (string, error) {
	foundUser, err := c.userDatabase.GetUserByEmail(ctx, normalizeEmail(request.Email))
	if errors.Is(err, database.ErrUserNotExist) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", errors.Wrap(err, "userDatabase.GetUserByEmail failed")
	}
	err = bcrypt.CompareHashAndPassword([]byte(foundUser.Password), []byte(request.Password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", errors.Wrap(err, "bcrypt.CompareHashAndPassword failed")
	}
	return c.createJWT(foundUser.ID)
}

func (c *Controller) GetUser(ctx context.Context, userID string) (*types.User, error) {
	user, err := c.userDatabase.GetUserByID(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "userDatabase.GetUserByID failed")
	}
	return user, nil
}

func (c *Controller) createJWT(id string) (string, error) {
	token := jwt.New(jwt.SigningMethodHS256)

	claims := token.Claims.(jwt.MapClaims)
	claims["id"] = id
	claims["exp"] = c.now().Add(c.tokenTTL).Unix()

	return token.SignedString(c.jwtSecret)
}

func cryptPassword(pass []byte) ([]byte, error) {
	hash, err := bcrypt.GenerateFromPassword(pass, bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.Wrap(err, "bcrypt.GenerateFromPassword failed")
	}
	return hash, nil
}

// TokenTTL is how long issued tokens stay valid.
func (c *Controller) TokenTTL() time.Duration {
	return c.tokenTTL
}
