package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"mailtriage/internal/model"
	"mailtriage/internal/repository"
	"mailtriage/internal/util"
)

var ErrInvalidCredentials = errors.New("invalid email or password")

// BudgetProvisioner creates the budget row for a new user.
type BudgetProvisioner interface {
	EnsureBudget(ctx context.Context, userID, dailyLimitCents, monthlyLimitCents, alertPct int) error
}

type AuthService struct {
	userRepo  *repository.UserRepository
	prefsRepo *repository.PrefsRepository
	budgets   BudgetProvisioner
	jwtSecret string
	logger    *zap.Logger
}

func NewAuthService(userRepo *repository.UserRepository, prefsRepo *repository.PrefsRepository, budgets BudgetProvisioner, jwtSecret string, logger *zap.Logger) *AuthService {
	return &AuthService{
		userRepo:  userRepo,
		prefsRepo: prefsRepo,
		budgets:   budgets,
		jwtSecret: jwtSecret,
		logger:    logger,
	}
}

// Register creates a new user with default preferences and a budget row.
func (s *AuthService) Register(ctx context.Context, email, password string) (int, error) {
	existing, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return 0, err
	}
	if existing != nil {
		return 0, errors.New("email already exists")
	}

	hash, err := util.HashPassword(password)
	if err != nil {
		return 0, err
	}

	userID, err := s.userRepo.Create(ctx, email, hash)
	if err != nil {
		return 0, err
	}

	prefs := model.DefaultPrefs(userID)
	if err := s.prefsRepo.Upsert(ctx, &prefs); err != nil {
		s.logger.Warn("Failed to store default prefs for new user",
			zap.Int("user_id", userID),
			zap.Error(err),
		)
	}
	if err := s.budgets.EnsureBudget(ctx, userID, prefs.MaxAICostPerDayCents, prefs.MaxAICostPerDayCents*30, 80); err != nil {
		s.logger.Warn("Failed to initialize budget for new user",
			zap.Int("user_id", userID),
			zap.Error(err),
		)
	}

	return userID, nil
}

// Login checks credentials and returns a JWT.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, error) {
	u, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if u == nil || !util.CheckPassword(password, u.PasswordHash) {
		return "", ErrInvalidCredentials
	}

	return util.GenerateJWT(u.ID, s.jwtSecret)
}
