package normalize

import (
	"fmt"
	"strings"

	"obecsync/internal/record"
)

// ContactNormalizer validates contact directory rows. A missing title is
// fatal for the row; malformed optional fields (phone, e-mail, web) are
// dropped rather than rejecting the whole contact, matching how the site
// formats degrade in practice.
type ContactNormalizer struct {
	Category string
}

func (c ContactNormalizer) Normalize(raw record.Raw) (record.Record, error) {
	title := strings.TrimSpace(raw["title"])
	if title == "" {
		return record.Record{}, fmt.Errorf("contact in %s: missing title", c.Category)
	}

	contact := record.Contact{
		Category:    c.Category,
		Title:       title,
		Subtitle:    strings.TrimSpace(raw["subtitle"]),
		Address:     strings.TrimSpace(raw["address"]),
		Maintenance: strings.TrimSpace(raw["maintenance"]),
		Phone:       Phone(raw["phone"]),
		Phone2:      Phone(raw["phone2"]),
		Email:       Email(raw["email"]),
		Web:         WebURL(raw["web"]),
	}
	return contact.Canonical(), nil
}
