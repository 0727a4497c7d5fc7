package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"taskshare/backend/internal/services"
)

type IdentityServiceTestSuite struct {
	suite.Suite
	db      *gorm.DB
	service *services.IdentityService
	ctx     context.Context
}

func (suite *IdentityServiceTestSuite) SetupTest() {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	suite.Require().NoError(err)
	suite.Require().NoError(services.MigrateUsers(db))

	suite.db = db
	suite.service = services.NewIdentityService(db, "test-secret", time.Hour, bcrypt.MinCost)
	suite.ctx = context.Background()
}

func (suite *IdentityServiceTestSuite) register(email string) *services.RegistrationRequest {
	return &services.RegistrationRequest{
		Email:       email,
		Password:    "correct-horse",
		DisplayName: "Test User",
	}
}

func (suite *IdentityServiceTestSuite) TestRegisterAndLogin() {
	user, err := suite.service.Register(suite.ctx, *suite.register("Alice@Example.com"))
	suite.Require().NoError(err)
	suite.Equal("alice@example.com", user.Email)
	suite.True(user.IsActive)
	suite.NotEqual("correct-horse", user.Password)

	logged, err := suite.service.Login(suite.ctx, "alice@example.com", "correct-horse")
	suite.Require().NoError(err)
	suite.Equal(user.ID, logged.ID)
	suite.NotNil(logged.LastLoginAt)
}

func (suite *IdentityServiceTestSuite) TestRegisterUsesConfiguredBcryptCost() {
	user, err := suite.service.Register(suite.ctx, *suite.register("alice@example.com"))
	suite.Require().NoError(err)

	cost, err := bcrypt.Cost([]byte(user.Password))
	suite.Require().NoError(err)
	suite.Equal(bcrypt.MinCost, cost)
}

func (suite *IdentityServiceTestSuite) TestRegisterDuplicateEmail() {
	_, err := suite.service.Register(suite.ctx, *suite.register("alice@example.com"))
	suite.Require().NoError(err)

	_, err = suite.service.Register(suite.ctx, *suite.register("alice@example.com"))
	suite.ErrorIs(err, services.ErrEmailTaken)
}

func (suite *IdentityServiceTestSuite) TestLoginWrongPassword() {
	_, err := suite.service.Register(suite.ctx, *suite.register("alice@example.com"))
	suite.Require().NoError(err)

	_, err = suite.service.Login(suite.ctx, "alice@example.com", "wrong")
	suite.ErrorIs(err, services.ErrInvalidCredentials)

	_, err = suite.service.Login(suite.ctx, "nobody@example.com", "whatever")
	suite.ErrorIs(err, services.ErrInvalidCredentials)
}

func (suite *IdentityServiceTestSuite) TestDeactivatedUserCannotLoginOrResolve() {
	user, err := suite.service.Register(suite.ctx, *suite.register("alice@example.com"))
	suite.Require().NoError(err)

	suite.Require().NoError(suite.service.Deactivate(suite.ctx, user.ID))

	_, err = suite.service.Login(suite.ctx, "alice@example.com", "correct-horse")
	suite.ErrorIs(err, services.ErrInvalidCredentials)

	users, err := suite.service.FindActiveByEmails(suite.ctx, []string{"alice@example.com"})
	suite.Require().NoError(err)
	suite.Empty(users)

	// The row survives: share entries keep a valid reference.
	found, err := suite.service.FindByID(suite.ctx, user.ID)
	suite.Require().NoError(err)
	suite.False(found.IsActive)
}

func (suite *IdentityServiceTestSuite) TestFindActiveByEmails() {
	alice, err := suite.service.Register(suite.ctx, *suite.register("alice@example.com"))
	suite.Require().NoError(err)
	_, err = suite.service.Register(suite.ctx, *suite.register("bob@example.com"))
	suite.Require().NoError(err)

	users, err := suite.service.FindActiveByEmails(suite.ctx, []string{"alice@example.com", "ghost@example.com"})
	suite.Require().NoError(err)
	suite.Require().Len(users, 1)
	suite.Equal(alice.ID, users[0].ID)
}

func (suite *IdentityServiceTestSuite) TestGenerateTokenClaims() {
	user, err := suite.service.Register(suite.ctx, *suite.register("alice@example.com"))
	suite.Require().NoError(err)

	tokenStr, err := suite.service.GenerateToken(user)
	suite.Require().NoError(err)

	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	suite.Require().NoError(err)
	suite.True(token.Valid)

	claims := token.Claims.(jwt.MapClaims)
	suite.Equal(user.ID.String(), claims["user_id"])
	suite.Equal("alice@example.com", claims["email"])
	suite.Equal(services.TokenIssuer, claims["iss"])
}

func TestIdentityServiceTestSuite(t *testing.T) {
	suite.Run(t, new(IdentityServiceTestSuite))
}
