package services

import (
	"context"
	"time"

	"github.com/taskmaster/taskhub/internal/domain/entities"
	"github.com/taskmaster/taskhub/internal/infrastructure/logger"
	"github.com/taskmaster/taskhub/internal/ports"
)

// UserService handles user-related operations
type UserService struct {
	userRepo ports.UserRepository
	logger   *logger.Logger
}

// NewUserService creates a new user service
func NewUserService(userRepo ports.UserRepository, logger *logger.Logger) *UserService {
	return &UserService{
		userRepo: userRepo,
		logger:   logger.WithComponent("user_service"),
	}
}

// CreateUser creates a user with an explicit role. Registration over HTTP always yields the
// user role, so this is how administrators are provisioned.
func (s *UserService) CreateUser(ctx context.Context, name, email, password, role string) (*entities.User, error) {
	r, err := entities.ParseUserRole(role)
	if err != nil {
		return nil, err
	}

	user, err := createUser(ctx, s.userRepo, name, email, password, r, time.Now())
	if err != nil {
		return nil, err
	}

	s.logger.Infow("User created successfully", "user_id", user.ID.String(), "email", user.Email, "role", user.Role)

	user.PasswordHash = ""
	return user, nil
}

// GetUser retrieves a user by ID
func (s *UserService) GetUser(ctx context.Context, userID string) (*entities.User, error) {
	id, err := entities.ParseID("user id", userID)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	user.PasswordHash = ""
	return user, nil
}
