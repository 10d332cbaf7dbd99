package auth

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub003/internal/domain/auth"
	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub003/internal/pkg/database"
	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub003/internal/pkg/jwt"
	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub003/internal/repository/postgresql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	testAccessExp  = "1h"
	testRefreshExp = "24h"
	testSecret     = "test-secret-key-for-jwt"
)

var (
	authDBOnce sync.Once
	authDB     *database.DB
	authDBErr  error
)

// requireAuthDB connects to TEST_DATABASE_URL and skips the test when the
// variable is unset. The schema from migrations/ must be applied beforehand.
func requireAuthDB(t *testing.T) *database.DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping auth service integration tests")
	}

	authDBOnce.Do(func() {
		authDB, authDBErr = database.NewPostgreSQLDB(dsn)
	})
	if authDBErr != nil {
		t.Fatalf("failed to connect to test database: %v", authDBErr)
	}
	return authDB
}

func truncateAuthTables(t *testing.T, ctx context.Context, db *database.DB) {
	t.Helper()
	for _, table := range []string{"refresh_tokens", "users"} {
		_, err := db.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table))
		require.NoError(t, err)
	}
}

func newTestAuthService(db *database.DB) auth.AuthService {
	userRepo := postgresql.NewUserRepository(db)
	jwtService := jwt.NewJWTService(testSecret, testAccessExp, testRefreshExp)
	jwtRepo := postgresql.NewJWTRepository(db)
	return NewAuthService(db, userRepo, jwtService, jwtRepo)
}

func createAuthTestUser(t *testing.T, ctx context.Context, db *database.DB, email string) string {
	t.Helper()
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	require.NoError(t, err)

	var userID string
	err = db.QueryRow(ctx, `
		INSERT INTO users (email, full_name, password_hash)
		VALUES ($1, 'Test User', $2)
		RETURNING id
	`, email, string(hashedPassword)).Scan(&userID)
	require.NoError(t, err)
	return userID
}

func testSession() auth.SessionTrackingRequest {
	return auth.SessionTrackingRequest{IPAddress: "127.0.0.1", UserAgent: "Mozilla/5.0"}
}

func TestAuthService_Login_Success(t *testing.T) {
	db := requireAuthDB(t)
	ctx := context.Background()
	truncateAuthTables(t, ctx, db)

	testEmail := fmt.Sprintf("login-%d@example.com", time.Now().UnixNano())
	createAuthTestUser(t, ctx, db, testEmail)
	authService := newTestAuthService(db)

	response, err := authService.Login(ctx, auth.LoginRequest{Email: testEmail, Password: "password123"}, testSession())

	assert.NoError(t, err)
	assert.NotEmpty(t, response.AccessToken)
	assert.NotEmpty(t, response.RefreshToken)
	assert.Greater(t, response.AccessTokenExpiresIn, int64(0))
	assert.Greater(t, response.RefreshTokenExpiresIn, int64(0))
}

func TestAuthService_Login_InvalidPassword(t *testing.T) {
	db := requireAuthDB(t)
	ctx := context.Background()
	truncateAuthTables(t, ctx, db)

	testEmail := fmt.Sprintf("invalidpass-%d@example.com", time.Now().UnixNano())
	createAuthTestUser(t, ctx, db, testEmail)
	authService := newTestAuthService(db)

	_, err := authService.Login(ctx, auth.LoginRequest{Email: testEmail, Password: "wrongpassword"}, testSession())

	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestAuthService_Login_UserNotFound(t *testing.T) {
	db := requireAuthDB(t)
	ctx := context.Background()
	truncateAuthTables(t, ctx, db)

	authService := newTestAuthService(db)

	_, err := authService.Login(ctx, auth.LoginRequest{Email: "nonexistent@example.com", Password: "password123"}, testSession())

	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestAuthService_LoginWithGoogle_NewUser(t *testing.T) {
	db := requireAuthDB(t)
	ctx := context.Background()
	truncateAuthTables(t, ctx, db)

	authService := newTestAuthService(db)
	userRepo := postgresql.NewUserRepository(db)

	googleEmail := "newgoogleuser@example.com"
	response, err := authService.LoginWithGoogle(ctx, googleEmail, "google-id-123", testSession())

	assert.NoError(t, err)
	assert.NotEmpty(t, response.AccessToken)
	assert.NotEmpty(t, response.RefreshToken)

	createdUser, err := userRepo.GetByEmail(ctx, googleEmail)
	assert.NoError(t, err)
	assert.Equal(t, googleEmail, createdUser.Email)
	require.NotNil(t, createdUser.OAuthProvider)
	assert.Equal(t, "google", *createdUser.OAuthProvider)
	require.NotNil(t, createdUser.OAuthProviderID)
	assert.Equal(t, "google-id-123", *createdUser.OAuthProviderID)
}

func TestAuthService_LoginWithGoogle_ExistingUser(t *testing.T) {
	db := requireAuthDB(t)
	ctx := context.Background()
	truncateAuthTables(t, ctx, db)

	testEmail := "existinguser@example.com"
	createAuthTestUser(t, ctx, db, testEmail)
	authService := newTestAuthService(db)

	response, err := authService.LoginWithGoogle(ctx, testEmail, "google-id-456", testSession())

	assert.NoError(t, err)
	assert.NotEmpty(t, response.AccessToken)
	assert.NotEmpty(t, response.RefreshToken)
}

func TestAuthService_RevokeRefreshToken(t *testing.T) {
	db := requireAuthDB(t)
	ctx := context.Background()
	truncateAuthTables(t, ctx, db)

	testEmail := fmt.Sprintf("revoke-%d@example.com", time.Now().UnixNano())
	testUserID := createAuthTestUser(t, ctx, db, testEmail)

	jwtService := jwt.NewJWTService(testSecret, testAccessExp, testRefreshExp)
	jwtRepo := postgresql.NewJWTRepository(db)

	refreshToken, expiresAt, err := jwtService.GenerateRefreshToken(testUserID)
	require.NoError(t, err)
	require.NoError(t, jwtRepo.CreateRefreshToken(ctx, testUserID, refreshToken, expiresAt, testSession()))

	require.NoError(t, jwtRepo.RevokeRefreshToken(ctx, refreshToken))

	userID, isRevoked, err := jwtRepo.IsRefreshTokenRevoked(ctx, refreshToken)
	assert.NoError(t, err)
	assert.True(t, isRevoked)
	assert.Equal(t, testUserID, userID)
}

func TestAuthService_RefreshToken_Success(t *testing.T) {
	db := requireAuthDB(t)
	ctx := context.Background()
	truncateAuthTables(t, ctx, db)

	testEmail := fmt.Sprintf("refresh-%d@example.com", time.Now().UnixNano())
	createAuthTestUser(t, ctx, db, testEmail)
	authService := newTestAuthService(db)

	loginResp, err := authService.Login(ctx, auth.LoginRequest{Email: testEmail, Password: "password123"}, testSession())
	require.NoError(t, err)
	require.NotEmpty(t, loginResp.RefreshToken)

	resp, err := authService.RefreshToken(ctx, auth.RefreshTokenRequest{RefreshToken: loginResp.RefreshToken})

	assert.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Greater(t, resp.AccessTokenExpiresIn, int64(0))
}

func TestAuthService_Logout_Success(t *testing.T) {
	db := requireAuthDB(t)
	ctx := context.Background()
	truncateAuthTables(t, ctx, db)

	testEmail := fmt.Sprintf("logout-%d@example.com", time.Now().UnixNano())
	createAuthTestUser(t, ctx, db, testEmail)
	authService := newTestAuthService(db)
	jwtRepo := postgresql.NewJWTRepository(db)

	loginResp, err := authService.Login(ctx, auth.LoginRequest{Email: testEmail, Password: "password123"}, testSession())
	require.NoError(t, err)

	require.NoError(t, authService.Logout(ctx, loginResp.RefreshToken))

	_, isRevoked, err := jwtRepo.IsRefreshTokenRevoked(ctx, loginResp.RefreshToken)
	assert.NoError(t, err)
	assert.True(t, isRevoked)
}

func TestAuthService_Register_Success(t *testing.T) {
	db := requireAuthDB(t)
	ctx := context.Background()
	truncateAuthTables(t, ctx, db)

	testEmail := fmt.Sprintf("newuser-%d@example.com", time.Now().UnixNano())
	authService := newTestAuthService(db)

	resp, err := authService.Register(ctx, auth.RegisterRequest{
		Email:           testEmail,
		Password:        "SecurePass123!",
		ConfirmPassword: "SecurePass123!",
	}, testSession())

	assert.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)

	var userCount int
	err = db.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE email = $1`, testEmail).Scan(&userCount)
	assert.NoError(t, err)
	assert.Equal(t, 1, userCount)
}

func TestAuthService_Register_DuplicateEmail(t *testing.T) {
	db := requireAuthDB(t)
	ctx := context.Background()
	truncateAuthTables(t, ctx, db)

	testEmail := fmt.Sprintf("dup-%d@example.com", time.Now().UnixNano())
	createAuthTestUser(t, ctx, db, testEmail)
	authService := newTestAuthService(db)

	_, err := authService.Register(ctx, auth.RegisterRequest{
		Email:           testEmail,
		Password:        "SecurePass123!",
		ConfirmPassword: "SecurePass123!",
	}, testSession())

	assert.ErrorIs(t, err, auth.ErrEmailAlreadyExists)
}
