package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"taskboard/internal/common"
	"taskboard/internal/common/security"
	"taskboard/internal/domain/model"
	"taskboard/internal/domain/repository"

	"github.com/google/uuid"
)

// LoginLimiter counts failed logins per key. A blocked key is refused before
// its password is checked. Keys are account emails, so changing the client
// address does not reset the count.
type LoginLimiter interface {
	Blocked(ctx context.Context, key string) (bool, error)
	RecordFailure(ctx context.Context, key string) error
	Reset(ctx context.Context, key string) error
}

type noopLimiter struct{}

func (noopLimiter) Blocked(context.Context, string) (bool, error) { return false, nil }
func (noopLimiter) RecordFailure(context.Context, string) error   { return nil }
func (noopLimiter) Reset(context.Context, string) error           { return nil }

var (
	errInvalidCredentials = common.NewError(common.ErrUnauthorized, "Invalid credentials")
	errAccountDeactivated = common.NewError(common.ErrUnauthorized, "Account is deactivated")
	errTooManyAttempts    = common.NewError(common.ErrTooManyRequests, "Too many failed login attempts, please try again later")
	errUserExists         = common.NewError(common.ErrConflict, "User with this email or username already exists")
	errUserNotFound       = common.NewError(common.ErrNotFound, "User not found")
)

type AuthService struct {
	userRepo repository.UserRepository
	limiter  LoginLimiter
	stats    StatsCache
}

// NewAuthService returns an AuthService. A nil limiter disables login
// throttling and a nil cache disables stats invalidation.
func NewAuthService(userRepo repository.UserRepository, limiter LoginLimiter, stats StatsCache) *AuthService {
	if limiter == nil {
		limiter = noopLimiter{}
	}
	if stats == nil {
		stats = noopStatsCache{}
	}
	return &AuthService{userRepo: userRepo, limiter: limiter, stats: stats}
}

type RegisterRequest struct {
	Username  string `json:"username" validate:"required,min=3,max=30,username"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=6,password"`
	FirstName string `json:"firstName" validate:"required,max=50"`
	LastName  string `json:"lastName" validate:"required,max=50"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	ClientIP string `json:"-"`
}

type ProfileUpdateRequest struct {
	FirstName *string `json:"firstName" validate:"omitnil,max=50"`
	LastName  *string `json:"lastName" validate:"omitnil,max=50"`
}

type AuthResponse struct {
	Message string      `json:"message"`
	Token   string      `json:"token"`
	User    *model.User `json:"user"`
}

func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	user, err := s.createUser(ctx, req, model.RoleUser)
	if err != nil {
		return nil, err
	}

	token, err := security.GenerateToken(user.ID, user.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	return &AuthResponse{Message: "User registered successfully", Token: token, User: user}, nil
}

// CreateAdmin registers an administrator with the same validation as Register.
// It is reachable from the operator CLI only.
func (s *AuthService) CreateAdmin(ctx context.Context, req RegisterRequest) (*model.User, error) {
	return s.createUser(ctx, req, model.RoleAdmin)
}

func (s *AuthService) createUser(ctx context.Context, req RegisterRequest, role string) (*model.User, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	if err := common.Validate(req); err != nil {
		return nil, err
	}

	hashedPassword, err := security.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		ID:           uuid.NewString(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hashedPassword,
		Role:         role,
		IsActive:     true,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, common.ErrConflict) {
			return nil, errUserExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	invalidateStats(ctx, s.stats)
	return user, nil
}

func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := common.Validate(req); err != nil {
		return nil, err
	}

	key := req.Email
	blocked, err := s.limiter.Blocked(ctx, key)
	if err != nil {
		slog.WarnContext(ctx, "login limiter unavailable", "error", err)
	}
	if blocked {
		slog.WarnContext(ctx, "login throttled", "email", req.Email, "client_ip", req.ClientIP)
		return nil, errTooManyAttempts
	}

	user, err := s.userRepo.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			s.recordFailure(ctx, key)
			return nil, errInvalidCredentials // Same answer as a wrong password
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if !security.CheckPasswordHash(req.Password, user.PasswordHash) {
		s.recordFailure(ctx, key)
		return nil, errInvalidCredentials
	}
	if !user.IsActive {
		return nil, errAccountDeactivated
	}

	if err := s.limiter.Reset(ctx, key); err != nil {
		slog.WarnContext(ctx, "login limiter reset failed", "error", err)
	}

	token, err := security.GenerateToken(user.ID, user.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	return &AuthResponse{Message: "Login successful", Token: token, User: user}, nil
}

func (s *AuthService) recordFailure(ctx context.Context, key string) {
	if err := s.limiter.RecordFailure(ctx, key); err != nil {
		slog.WarnContext(ctx, "login limiter record failed", "error", err)
	}
}

func (s *AuthService) Profile(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, errUserNotFound
		}
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	return user, nil
}

// UpdateProfile changes the caller's own display names. Nothing else about the
// account is self-service.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, req ProfileUpdateRequest) (*model.User, error) {
	var extra []common.FieldError
	if req.FirstName != nil {
		*req.FirstName = strings.TrimSpace(*req.FirstName)
		if *req.FirstName == "" {
			extra = append(extra, common.FieldError{Field: "firstName", Message: "is required"})
		}
	}
	if req.LastName != nil {
		*req.LastName = strings.TrimSpace(*req.LastName)
		if *req.LastName == "" {
			extra = append(extra, common.FieldError{Field: "lastName", Message: "is required"})
		}
	}
	if err := common.Validate(req, extra...); err != nil {
		return nil, err
	}

	user, err := s.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if req.FirstName != nil {
		user.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		user.LastName = *req.LastName
	}
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return user, nil
}

// EnsureAdmin creates an administrator account when none exists yet. It does
// nothing unless both email and password are provided.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, username, password string) error {
	if email == "" || password == "" {
		return nil
	}
	n, err := s.userRepo.CountByRole(ctx, model.RoleAdmin)
	if err != nil {
		return fmt.Errorf("failed to count admins: %w", err)
	}
	if n > 0 {
		return nil
	}

	hashedPassword, err := security.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	admin := &model.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        strings.ToLower(email),
		PasswordHash: hashedPassword,
		Role:         model.RoleAdmin,
		IsActive:     true,
		FirstName:    "Admin",
		LastName:     "User",
	}
	if err := s.userRepo.Create(ctx, admin); err != nil {
		return fmt.Errorf("failed to create admin: %w", err)
	}
	invalidateStats(ctx, s.stats)
	slog.InfoContext(ctx, "bootstrap admin created", "email", admin.Email, "username", admin.Username)
	return nil
}
