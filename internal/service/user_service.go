package service

import (
	"context"
	"errors"

	"github.com/sakashimaa/shoe-shop/internal/domain"
	"github.com/sakashimaa/shoe-shop/internal/repository"
	generalDomain "github.com/sakashimaa/shoe-shop/pkg/domain"
	"github.com/sakashimaa/shoe-shop/pkg/mylogger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type UserService interface {
	Resolve(ctx context.Context, userID int64) (*domain.User, error)
	HandleUserRegistered(ctx context.Context, event *generalDomain.UserRegisteredEvent) error
}

type userService struct {
	userRepo repository.UserRepository
	logger   *zap.Logger
	tracer   trace.Tracer
}

func NewUserService(userRepo repository.UserRepository, logger *zap.Logger) UserService {
	return &userService{
		userRepo: userRepo,
		logger:   logger,
		tracer:   otel.Tracer("user_service"),
	}
}

func (s *userService) Resolve(ctx context.Context, userID int64) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			mylogger.Warn(ctx, s.logger, "Unknown user", zap.Int64("user_id", userID))
			return nil, unauthorized("User not found")
		}

		mylogger.Error(ctx, s.logger, "Failed to resolve user", zap.Int64("user_id", userID), zap.Error(err))
		return nil, err
	}

	return user, nil
}

func (s *userService) HandleUserRegistered(ctx context.Context, event *generalDomain.UserRegisteredEvent) error {
	ctx, span := s.tracer.Start(ctx, "UserService.HandleUserRegistered")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("user_id", event.UserID),
	)

	role := domain.Role(event.Role)
	if role == "" {
		role = domain.RoleUser
	}
	if !role.Valid() {
		return invalidRequest("Invalid role: %s", event.Role)
	}

	username := event.Username
	if username == "" {
		username = event.Email
	}

	user := &domain.User{
		ID:       event.UserID,
		Email:    event.Email,
		Username: username,
		Role:     role,
	}

	if err := s.userRepo.Upsert(ctx, user); err != nil {
		span.RecordError(err)

		mylogger.Warn(
			ctx,
			s.logger,
			"Failed to save user",
			zap.Int64("user_id", event.UserID),
			zap.Error(err),
		)

		return err
	}

	mylogger.Info(
		ctx,
		s.logger,
		"User saved successfully",
		zap.Int64("user_id", event.UserID),
	)

	return nil
}
