// Package report summarizes recorded price corrections for one month.
package report

import (
	"context"
	"fmt"
	"io"
	"time"

	"gorm.io/gorm"

	"menuprice/models"
)

// MonthRange returns the UTC bounds [start, end) of a YYYY-MM month.
func MonthRange(month string) (time.Time, time.Time, error) {
	t, err := time.Parse("2006-01", month)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid month format, expected YYYY-MM: %w", err)
	}
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0), nil
}

// Summary is one row of the per-source breakdown.
type Summary struct {
	Source string
	Count  int64
	Images int64
}

// Run prints how many price updates were recorded in month, split by source.
// An empty username reports on every editor. With list set, each update is
// printed as a pipe-separated line.
func Run(ctx context.Context, w io.Writer, db *gorm.DB, username, month string, list bool) error {
	start, end, err := MonthRange(month)
	if err != nil {
		return err
	}
	q := db.WithContext(ctx).Model(&models.PriceUpdate{}).
		Where("created_at >= ? AND created_at < ?", start, end)
	if username != "" {
		q = q.Where("submitted_by = ?", username)
	}

	var rows []Summary
	if err := q.Session(&gorm.Session{}).
		Select("source, COUNT(*) AS count, COUNT(DISTINCT menu_image_id) AS images").
		Group("source").Order("source").Scan(&rows).Error; err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	who := username
	if who == "" {
		who = "*"
	}
	fmt.Fprintf(w, "Price updates for user=%s month=%s (UTC):\n", who, month)
	var total int64
	for _, r := range rows {
		fmt.Fprintf(w, "  source=%s records=%d images=%d\n", r.Source, r.Count, r.Images)
		total += r.Count
	}
	fmt.Fprintf(w, "  total=%d\n", total)

	if list {
		var updates []models.PriceUpdate
		if err := q.Session(&gorm.Session{}).Order("created_at, id").Find(&updates).Error; err != nil {
			return fmt.Errorf("fetch rows failed: %w", err)
		}
		for _, u := range updates {
			fmt.Fprintf(w, "%s|%s|%s|%s|%s|%s\n", u.ID, u.RegionID, u.OriginalPrice, u.NewPrice, u.SubmittedBy, u.CreatedAt.Format(time.RFC3339))
		}
	}
	return nil
}
