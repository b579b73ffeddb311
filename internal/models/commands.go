package models

import "time"

// UserAttr names a mutable User attribute.
type UserAttr string

const (
	UserLastName      UserAttr = "last_name"
	UserCountryCode   UserAttr = "country_code"
	UserFavoriteColor UserAttr = "favorite_color"
)

// MutableUserAttrs lists every User attribute the mutation engine may change.
var MutableUserAttrs = []UserAttr{UserLastName, UserCountryCode, UserFavoriteColor}

// UserUpdate changes a subset of a living user's mutable attributes.
// A nil field is left untouched.
type UserUpdate struct {
	ID            ID
	LastName      *string
	CountryCode   *string
	FavoriteColor *string
	UpdatedAt     time.Time
}

// Attrs returns the attributes this update changes.
func (u UserUpdate) Attrs() []UserAttr {
	var attrs []UserAttr
	if u.LastName != nil {
		attrs = append(attrs, UserLastName)
	}
	if u.CountryCode != nil {
		attrs = append(attrs, UserCountryCode)
	}
	if u.FavoriteColor != nil {
		attrs = append(attrs, UserFavoriteColor)
	}
	return attrs
}

// PostUpdate rewrites a living post's text.
type PostUpdate struct {
	ID        ID
	Text      string
	UpdatedAt time.Time
}

// Deletion soft-deletes one living row of a table.
type Deletion struct {
	ID        ID
	DeletedAt time.Time
}
