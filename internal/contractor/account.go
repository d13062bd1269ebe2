package contractor

import (
	"strings"

	"github.com/google/uuid"

	"github.com/sells-group/contractor-cli/internal/normalize"
)

// PlaceholderDomain is the mail domain of synthesized account emails.
const PlaceholderDomain = "contractor.temp"

// IsPlaceholderEmail reports whether email was synthesized by the pipeline.
func IsPlaceholderEmail(email string) bool {
	return strings.HasSuffix(strings.ToLower(email), "@"+PlaceholderDomain)
}

// PlaceholderEmail synthesizes an account email for a business without one.
func PlaceholderEmail(businessName string) string {
	slug := normalize.Slug(businessName)
	if slug == "" {
		slug = "contractor-" + uuid.New().String()[:8]
	}
	return slug + "@" + PlaceholderDomain
}
