package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sifan077/LinkPulse/internal/app/model"
	"gorm.io/gorm"
)

// AppendClick increments the counter first so that, on Postgres, the row lock it takes
// serializes concurrent appends to the same code.
func (r *linkRepository) AppendClick(ctx context.Context, code string, click *model.Click) error {
	prepareClick(code, click)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.Link{}).
			Where("code = ?", code).
			UpdateColumn("total_clicks", gorm.Expr("total_clicks + ?", 1))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrLinkNotFound
		}
		return tx.Create(click).Error
	})
	if err != nil && isUniqueViolation(err) {
		return ErrDuplicateClick
	}
	return err
}

func prepareClick(code string, click *model.Click) {
	click.LinkCode = code
	if click.ID == "" {
		click.ID = uuid.New().String()
	}
	if click.Timestamp.IsZero() {
		click.Timestamp = time.Now()
	}
}
