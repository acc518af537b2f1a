package tabra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tabra-pos/tabra-backend/internal/models"
	"github.com/tabra-pos/tabra-backend/internal/security"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Filials manages branch records and their credentials.
type Filials struct {
	db *gorm.DB
}

// NewFilials constructs a Filials service.
func NewFilials(db *gorm.DB) *Filials {
	return &Filials{db: db}
}

// FilialWithStock pairs a filial with its current unused-card count.
type FilialWithStock struct {
	Filial       models.Filial
	CardsInStock int64
}

// List returns all filials, oldest first, with stock counts.
func (s *Filials) List(ctx context.Context) ([]FilialWithStock, error) {
	var filials []models.Filial
	if errFind := s.db.WithContext(ctx).Order("created_at ASC, id ASC").Find(&filials).Error; errFind != nil {
		return nil, fmt.Errorf("list filials: %w", errFind)
	}

	type countRow struct {
		LocationFilialID uint64
		Count            int64
	}
	var counts []countRow
	if errCount := s.db.WithContext(ctx).Model(&models.Card{}).
		Select("location_filial_id, COUNT(*) AS count").
		Where("location_filial_id IS NOT NULL AND is_used = ?", false).
		Group("location_filial_id").
		Scan(&counts).Error; errCount != nil {
		return nil, fmt.Errorf("count stock: %w", errCount)
	}
	byFilial := make(map[uint64]int64, len(counts))
	for _, row := range counts {
		byFilial[row.LocationFilialID] = row.Count
	}

	out := make([]FilialWithStock, 0, len(filials))
	for _, f := range filials {
		out = append(out, FilialWithStock{Filial: f, CardsInStock: byFilial[f.ID]})
	}
	return out, nil
}

// Get loads one filial by ID.
func (s *Filials) Get(ctx context.Context, filialID uint64) (*models.Filial, error) {
	var filial models.Filial
	if errFind := s.db.WithContext(ctx).First(&filial, filialID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "filial", Key: fmt.Sprintf("%d", filialID)}
		}
		return nil, fmt.Errorf("get filial: %w", errFind)
	}
	return &filial, nil
}

// CreateFilialParams holds inputs for filial creation.
type CreateFilialParams struct {
	Name     string // Display name.
	Code     string // Unique login code.
	Password string // Plaintext password, stored hashed.
}

// Create registers a new filial with a hashed password.
func (s *Filials) Create(ctx context.Context, params CreateFilialParams) (*models.Filial, error) {
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, &ValidationError{Field: "name", Reason: "cannot be blank"}
	}
	code := strings.TrimSpace(params.Code)
	if code == "" {
		return nil, &ValidationError{Field: "code", Reason: "cannot be blank"}
	}
	if strings.TrimSpace(params.Password) == "" {
		return nil, &ValidationError{Field: "password", Reason: "cannot be blank"}
	}

	var existing models.Filial
	errCheck := s.db.WithContext(ctx).Where("code = ?", code).First(&existing).Error
	if errCheck == nil {
		return nil, &ConflictError{Reason: fmt.Sprintf("filial code %s already exists", code)}
	}
	if !errors.Is(errCheck, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("check code: %w", errCheck)
	}

	hash, errHash := security.HashPassword(params.Password)
	if errHash != nil {
		return nil, fmt.Errorf("hash password: %w", errHash)
	}

	filial := models.Filial{Name: name, Code: code, Password: hash}
	if errCreate := s.db.WithContext(ctx).Create(&filial).Error; errCreate != nil {
		return nil, fmt.Errorf("create filial: %w", errCreate)
	}
	return &filial, nil
}

// UpdateFilialParams holds optional filial field changes.
type UpdateFilialParams struct {
	Name     *string // Optional new display name.
	Code     *string // Optional new login code.
	Password *string // Optional new plaintext password.
}

// Update applies validated field changes to a filial.
func (s *Filials) Update(ctx context.Context, filialID uint64, params UpdateFilialParams) (*models.Filial, error) {
	filial, errGet := s.Get(ctx, filialID)
	if errGet != nil {
		return nil, errGet
	}

	updates := map[string]any{}
	if params.Name != nil {
		name := strings.TrimSpace(*params.Name)
		if name == "" {
			return nil, &ValidationError{Field: "name", Reason: "cannot be blank"}
		}
		updates["name"] = name
	}
	if params.Code != nil {
		code := strings.TrimSpace(*params.Code)
		if code == "" {
			return nil, &ValidationError{Field: "code", Reason: "cannot be blank"}
		}
		if code != filial.Code {
			var existing models.Filial
			errCheck := s.db.WithContext(ctx).Where("code = ?", code).First(&existing).Error
			if errCheck == nil {
				return nil, &ConflictError{Reason: fmt.Sprintf("filial code %s already exists", code)}
			}
			if !errors.Is(errCheck, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("check code: %w", errCheck)
			}
		}
		updates["code"] = code
	}
	if params.Password != nil {
		if strings.TrimSpace(*params.Password) == "" {
			return nil, &ValidationError{Field: "password", Reason: "cannot be blank"}
		}
		hash, errHash := security.HashPassword(*params.Password)
		if errHash != nil {
			return nil, fmt.Errorf("hash password: %w", errHash)
		}
		updates["password"] = hash
	}
	if len(updates) == 0 {
		return nil, &ValidationError{Field: "body", Reason: "no fields to update"}
	}

	if errUpdate := s.db.WithContext(ctx).Model(filial).Updates(updates).Error; errUpdate != nil {
		return nil, fmt.Errorf("update filial: %w", errUpdate)
	}
	return s.Get(ctx, filialID)
}

// Delete removes a filial after returning every unused card it holds
// back to the depot. The stock return and the row deletion commit
// together or not at all. Used cards keep the filial's name as a plain
// string, so redemption history is unaffected.
func (s *Filials) Delete(ctx context.Context, filialID uint64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		filial, errFind := findFilial(tx, filialID)
		if errFind != nil {
			return errFind
		}

		type countRow struct {
			TabraTypeID uint64
			Count       int
		}
		var perType []countRow
		if errCount := tx.Model(&models.Card{}).
			Select("tabra_type_id, COUNT(*) AS count").
			Where("location_filial_id = ? AND is_used = ?", filialID, false).
			Group("tabra_type_id").
			Scan(&perType).Error; errCount != nil {
			return fmt.Errorf("count returned stock: %w", errCount)
		}

		returned, errReturn := returnFilialCards(tx, filialID)
		if errReturn != nil {
			return errReturn
		}
		if returned > 0 {
			typeIDs := make(map[uint64]int, len(perType))
			for _, row := range perType {
				typeIDs[row.TabraTypeID] = row.Count
			}
			byType, errNames := typeNameCounts(tx, typeIDs)
			if errNames != nil {
				return errNames
			}
			breakdown, errMarshal := json.Marshal(byType)
			if errMarshal != nil {
				return fmt.Errorf("marshal breakdown: %w", errMarshal)
			}
			entry := models.TransferLog{
				Mode:       models.TransferModeReturn,
				FilialID:   filial.ID,
				FilialName: filial.Name,
				CardCount:  int(returned),
				Breakdown:  datatypes.JSON(breakdown),
			}
			if errLog := tx.Create(&entry).Error; errLog != nil {
				return fmt.Errorf("record return: %w", errLog)
			}
		}

		if errDelete := tx.Delete(&models.Filial{}, filialID).Error; errDelete != nil {
			return fmt.Errorf("delete filial: %w", errDelete)
		}
		return nil
	})
}

// Authenticate resolves a filial login. Wrong codes and wrong passwords
// both come back as the same ForbiddenError so callers cannot probe for
// valid codes.
func (s *Filials) Authenticate(ctx context.Context, code, password string) (*models.Filial, error) {
	trimmedCode := strings.TrimSpace(code)
	if trimmedCode == "" || strings.TrimSpace(password) == "" {
		return nil, &ValidationError{Field: "code", Reason: "code and password are required"}
	}

	var filial models.Filial
	if errFind := s.db.WithContext(ctx).Where("code = ?", trimmedCode).First(&filial).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, &ForbiddenError{Reason: "invalid credentials"}
		}
		return nil, fmt.Errorf("find filial: %w", errFind)
	}
	if !security.CheckPassword(filial.Password, password) {
		return nil, &ForbiddenError{Reason: "invalid credentials"}
	}
	return &filial, nil
}
