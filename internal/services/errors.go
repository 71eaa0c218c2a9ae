package services

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	apperrors "github.com/charlesng35/uniauth/pkg/errors"
)

var (
	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = apperrors.New("USER_NOT_FOUND", "User not found", http.StatusNotFound)
	// ErrUserExists reports a duplicate username.
	ErrUserExists = apperrors.New("USER_EXISTS", "Username already exists", http.StatusConflict)
	// ErrProfileNotFound indicates the requested profile does not exist.
	ErrProfileNotFound = apperrors.New("PROFILE_NOT_FOUND", "Profile not found", http.StatusNotFound)
	// ErrLinkedEmailNotFound indicates the requested linked email does not exist.
	ErrLinkedEmailNotFound = apperrors.New("LINKED_EMAIL_NOT_FOUND", "Linked email not found", http.StatusNotFound)
	// ErrInstitutionNotFound indicates the requested institution does not exist.
	ErrInstitutionNotFound = apperrors.New("INSTITUTION_NOT_FOUND", "Institution not found", http.StatusNotFound)
	// ErrInstitutionExists reports a duplicate institution slug.
	ErrInstitutionExists = apperrors.New("INSTITUTION_EXISTS", "Institution slug already exists", http.StatusConflict)
	// ErrAccountNotFound indicates the requested institution account does not exist.
	ErrAccountNotFound = apperrors.New("ACCOUNT_NOT_FOUND", "Institution account not found", http.StatusNotFound)
)

// isUniqueConstraintError detects database uniqueness constraint violations across vendors.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr != nil {
		return pgErr.Code == "23505"
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr != nil {
		return myErr.Number == 1062
	}

	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "unique") || strings.Contains(lower, "duplicate")
}
