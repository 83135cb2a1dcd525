package services

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/carlosmourajunior/minhasfinancas/internal/billing"
	apperrors "github.com/carlosmourajunior/minhasfinancas/internal/errors"
	"github.com/carlosmourajunior/minhasfinancas/internal/export"
	"github.com/carlosmourajunior/minhasfinancas/internal/logger"
	"github.com/carlosmourajunior/minhasfinancas/internal/metrics"
	"github.com/carlosmourajunior/minhasfinancas/internal/models"
)

// uncategorizedName is the category of imported rows without one.
const uncategorizedName = "Uncategorized"

// errImportRejected rolls the import transaction back when a row failed.
var errImportRejected = errors.New("import rejected")

// importService handles spreadsheet import and CSV export of obligations.
type importService struct {
	db        *gorm.DB
	clock     billing.Clock
	generator *billing.Generator
}

// NewImportService creates a new ImportServicer.
func NewImportService(db *gorm.DB, opts BillingOptions) ImportServicer {
	opts = opts.withDefaults()
	return &importService{
		db:        db,
		clock:     opts.Clock,
		generator: billing.NewGenerator(opts.IDs, opts.Clock, opts.SeriesLength),
	}
}

// ImportXLSX creates one simple obligation per spreadsheet row. Missing
// categories are created by name; cards must already exist. When any row
// fails nothing is imported and the result lists every failing line.
func (s *importService) ImportXLSX(userID string, r io.Reader) (*ImportResult, error) {
	rows, rowErrs, err := export.ReadObligationRows(r)
	if err != nil {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error())
	}

	result := &ImportResult{CreatedCategories: []string{}, Errors: rowErrs}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		categories, err := s.categoryIndex(tx, userID)
		if err != nil {
			return err
		}
		cards, err := s.cardIndex(tx, userID)
		if err != nil {
			return err
		}

		var obligations []models.Obligation
		for _, row := range rows {
			categoryName := row.Category
			if categoryName == "" {
				categoryName = uncategorizedName
			}
			category, ok := categories[strings.ToLower(categoryName)]
			if !ok {
				category = &models.Category{UserID: userID, Name: categoryName}
				if err := tx.Create(category).Error; err != nil {
					return apperrors.Wrap(apperrors.ErrInternalServer, err)
				}
				categories[strings.ToLower(categoryName)] = category
				result.CreatedCategories = append(result.CreatedCategories, categoryName)
			}

			var cardID *string
			if row.Card != "" {
				card, ok := cards[strings.ToLower(row.Card)]
				if !ok {
					result.Errors = append(result.Errors, export.RowError{Line: row.Line, Message: fmt.Sprintf("card %q not found", row.Card)})
					continue
				}
				cardID = &card.ID
			}

			series, err := s.generator.Generate(billing.SeriesRequest{
				UserID:      userID,
				Description: row.Description,
				Amount:      row.Amount,
				DueDate:     row.DueDate,
				CategoryID:  category.ID,
				CardID:      cardID,
				Notes:       row.Notes,
			}, nil)
			if err != nil {
				result.Errors = append(result.Errors, export.RowError{Line: row.Line, Message: err.Error()})
				continue
			}
			obligations = append(obligations, series...)
		}

		if len(result.Errors) > 0 {
			return errImportRejected
		}
		if len(obligations) == 0 {
			return nil
		}
		if err := tx.Omit(clause.Associations).CreateInBatches(&obligations, 100).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		result.Imported = len(obligations)
		return nil
	})
	if errors.Is(err, errImportRejected) {
		result.Imported = 0
		result.CreatedCategories = []string{}
		return result, nil
	}
	if err != nil {
		return nil, err
	}

	metrics.AddObligationsGenerated(string(billing.ModeSimple), result.Imported)
	logger.Get().Infow("obligations imported",
		"user_id", userID,
		"imported", result.Imported,
		"created_categories", len(result.CreatedCategories),
	)
	return result, nil
}

func (s *importService) categoryIndex(tx *gorm.DB, userID string) (map[string]*models.Category, error) {
	var categories []models.Category
	if err := tx.Where("user_id = ?", userID).Find(&categories).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	index := make(map[string]*models.Category, len(categories))
	for i := range categories {
		index[strings.ToLower(categories[i].Name)] = &categories[i]
	}
	return index, nil
}

func (s *importService) cardIndex(tx *gorm.DB, userID string) (map[string]*models.Card, error) {
	var cards []models.Card
	if err := tx.Where("user_id = ?", userID).Find(&cards).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	index := make(map[string]*models.Card, len(cards))
	for i := range cards {
		index[strings.ToLower(cards[i].Name)] = &cards[i]
	}
	return index, nil
}

// ExportCSV writes the obligations matching filter as CSV.
func (s *importService) ExportCSV(userID string, filter ObligationFilter, w io.Writer) error {
	today := s.clock.Today()

	var obligations []models.Obligation
	if err := applyObligationFilters(s.db.Where("user_id = ?", userID), filter, today).
		Preload("Category").Preload("Card").
		Order("due_date ASC").Order("installment_index ASC").
		Find(&obligations).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if err := export.WriteObligationsCSV(w, obligations, today); err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}
