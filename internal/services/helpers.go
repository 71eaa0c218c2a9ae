package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"gorm.io/gorm"

	"github.com/charlesng35/uniauth/internal/models"
)

// purgeBatchSize bounds IN (...) lists so bulk deletes stay within driver parameter limits.
const purgeBatchSize = 500

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

// normaliseEmail trims the address and lowercases its domain. The local part
// is kept as entered.
func normaliseEmail(address string) string {
	address = strings.TrimSpace(address)
	at := strings.LastIndex(address, "@")
	if at < 0 {
		return address
	}
	return address[:at+1] + strings.ToLower(address[at+1:])
}

// slugify lowercases the name and joins alphanumeric runs with hyphens.
func slugify(name string, maxLen int) string {
	slug := strings.Trim(nonSlugChars.ReplaceAllString(strings.ToLower(name), "-"), "-")
	if maxLen > 0 && len(slug) > maxLen {
		slug = strings.TrimRight(slug[:maxLen], "-")
	}
	return slug
}

// escapeLike escapes LIKE wildcards using '!' as the escape character.
func escapeLike(value string) string {
	return strings.NewReplacer("!", "!!", "%", "!%", "_", "!_").Replace(value)
}

func chunk(ids []string, size int) [][]string {
	var out [][]string
	for len(ids) > size {
		out = append(out, ids[:size])
		ids = ids[size:]
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}

// purgeProfiles deletes the given profiles after their linked emails and
// institution accounts. Rows already gone are ignored.
func purgeProfiles(tx *gorm.DB, profileIDs []string) (int64, error) {
	if len(profileIDs) == 0 {
		return 0, nil
	}
	if err := tx.Where("profile_id IN ?", profileIDs).Delete(&models.LinkedEmail{}).Error; err != nil {
		return 0, fmt.Errorf("delete linked emails: %w", err)
	}
	if err := tx.Where("profile_id IN ?", profileIDs).Delete(&models.InstitutionAccount{}).Error; err != nil {
		return 0, fmt.Errorf("delete institution accounts: %w", err)
	}
	result := tx.Where("id IN ?", profileIDs).Delete(&models.UserProfile{})
	if result.Error != nil {
		return 0, fmt.Errorf("delete profiles: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// purgeUsers deletes users together with their profiles, children first, and
// returns the number of user rows removed.
func purgeUsers(tx *gorm.DB, userIDs []string) (int64, error) {
	if len(userIDs) == 0 {
		return 0, nil
	}

	var profileIDs []string
	if err := tx.Model(&models.UserProfile{}).Where("user_id IN ?", userIDs).Pluck("id", &profileIDs).Error; err != nil {
		return 0, fmt.Errorf("load profiles: %w", err)
	}
	if _, err := purgeProfiles(tx, profileIDs); err != nil {
		return 0, err
	}

	result := tx.Where("id IN ?", userIDs).Delete(&models.User{})
	if result.Error != nil {
		return 0, fmt.Errorf("delete users: %w", result.Error)
	}
	return result.RowsAffected, nil
}
