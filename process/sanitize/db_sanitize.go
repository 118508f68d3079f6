// Package sanitize empties application tables on development databases.
package sanitize

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"gorm.io/gorm"

	"menuprice/models"
	"menuprice/pkg/account"
)

// DefaultTables are the application tables, children first.
var DefaultTables = []string{"price_updates", "regions", "menu_images", "refresh_tokens", "users"}

var nameRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// TableNames splits a comma-separated list and drops names that are not plain
// identifiers. Dropped names are returned separately.
func TableNames(list string) (valid, invalid []string) {
	for _, p := range strings.Split(list, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !nameRe.MatchString(p) {
			invalid = append(invalid, p)
			continue
		}
		valid = append(valid, p)
	}
	return valid, invalid
}

// TruncateStatement builds the TRUNCATE for already validated names.
func TruncateStatement(tables []string) string {
	quoted := make([]string, 0, len(tables))
	for _, t := range tables {
		quoted = append(quoted, fmt.Sprintf("%q", t))
	}
	return fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", strings.Join(quoted, ", "))
}

type Options struct {
	Tables []string
	DryRun bool
	Yes    bool
	// AdminPassword, when set, recreates an "admin" administrator after truncation.
	AdminPassword string
}

// Run truncates the requested tables that exist. Nothing is changed unless
// DryRun is false and Yes is true.
func Run(ctx context.Context, w io.Writer, db *gorm.DB, opts Options) error {
	existing := make([]string, 0, len(opts.Tables))
	for _, t := range opts.Tables {
		var cnt int64
		if err := db.WithContext(ctx).Raw("SELECT count(*) FROM pg_tables WHERE schemaname = 'public' AND tablename = ?", t).Scan(&cnt).Error; err != nil {
			return fmt.Errorf("query pg_tables for %s: %w", t, err)
		}
		if cnt > 0 {
			existing = append(existing, t)
		} else {
			fmt.Fprintf(w, "table %s not found, skipping\n", t)
		}
	}
	if len(existing) == 0 {
		fmt.Fprintln(w, "no requested tables present in the database; nothing to do")
		return nil
	}

	fmt.Fprintln(w, "Tables considered for truncation:")
	for _, t := range existing {
		fmt.Fprintf(w, " - %s\n", t)
	}
	if opts.DryRun {
		fmt.Fprintln(w, "dry-run enabled; no changes will be made. Use --dry-run=false --yes to execute.")
		return nil
	}
	if !opts.Yes {
		fmt.Fprintln(w, "Destructive operation. Pass --yes to confirm execution. Aborting.")
		return nil
	}

	stmt := TruncateStatement(existing)
	fmt.Fprintf(w, "Executing: %s\n", stmt)
	tctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := db.WithContext(tctx).Exec(stmt).Error; err != nil {
		return fmt.Errorf("truncate failed: %w", err)
	}
	fmt.Fprintln(w, "Truncate completed.")

	if opts.AdminPassword != "" {
		u, err := account.Register(ctx, account.NewGormStore(db), "admin", opts.AdminPassword, models.RoleAdministrator)
		if err != nil {
			return fmt.Errorf("reseed admin: %w", err)
		}
		fmt.Fprintf(w, "created administrator %s id=%d\n", u.Username, u.ID)
	}
	return nil
}
