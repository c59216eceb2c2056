package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/dmitrijs2005/fitaccounts/internal/common"
	"github.com/dmitrijs2005/fitaccounts/internal/dbx"
	"github.com/dmitrijs2005/fitaccounts/internal/logging"
	"github.com/dmitrijs2005/fitaccounts/internal/server/models"
	"github.com/dmitrijs2005/fitaccounts/internal/server/repositories/repomanager"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var (
	validatorOnce sync.Once
	validate      *validator.Validate
)

func profileValidator() *validator.Validate {
	validatorOnce.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// validateProfile reports the first failing field as a ValidationError whose
// Reason is the violated rule (required, gte, lte, max).
func validateProfile(p models.ProfileParams) error {
	err := profileValidator().Struct(p)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return common.NewValidationError(verrs[0].Field(), verrs[0].Tag())
	}
	return common.NewValidationError("profile", common.ReasonInvalidValue)
}

type ProfileService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
}

func NewProfileService(db *sql.DB, m repomanager.RepositoryManager, l logging.Logger) *ProfileService {
	return &ProfileService{db: db, repomanager: m, logger: l.With("module", "profiles")}
}

// Create attaches a profile to an existing account. The existence check and
// the insert share one transaction.
func (s *ProfileService) Create(ctx context.Context, p models.ProfileParams) (*models.Profile, error) {
	if err := validateProfile(p); err != nil {
		return nil, err
	}

	id, err := uuid.Parse(p.UserID)
	if err != nil {
		return nil, common.NewValidationError("user_id", common.ReasonInvalidValue)
	}

	profile := &models.Profile{
		UserID: id.String(),
		Age:    p.Age,
		Height: p.Height,
		Weight: p.Weight,
		Goal:   p.Goal,
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		exists, err := s.repomanager.Accounts(tx).ExistsBy(ctx, models.FieldAccountID, profile.UserID)
		if err != nil {
			return fmt.Errorf("%w: %w", common.ErrLookup, err)
		}
		if !exists {
			return common.ErrAccountNotFound
		}

		if err := s.repomanager.Profiles(tx).Create(ctx, profile); err != nil {
			var conflict *common.ConflictError
			if errors.As(err, &conflict) {
				return conflict
			}
			return fmt.Errorf("%w: %w", common.ErrPersistence, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "profile created", "account_id", profile.UserID)
	return profile, nil
}
