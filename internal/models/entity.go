// Package models defines the entities the simulator generates and the typed
// write commands it hands to the store.
package models

import (
	"time"
)

// ID identifies a User, Post or Event. Sequential ids are stored as their
// decimal text so one column type serves every allocation strategy.
type ID string

// String returns the raw identifier.
func (id ID) String() string { return string(id) }

// Table names as they appear in the store and in the audit ledger.
const (
	TableUsers  = "users"
	TablePosts  = "posts"
	TableEvents = "events"
)

// Tables lists the entity tables in ledger order.
var Tables = []string{TableUsers, TablePosts, TableEvents}

// User is a member of the simulated network.
type User struct {
	ID        ID     `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`

	// CountryCode is an ISO 3166-1 alpha-2 code
	CountryCode   string `json:"country_code"`
	FavoriteColor string `json:"favorite_color"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Lifecycle is Active until the mutation engine soft-deletes the row
	Lifecycle Lifecycle `json:"deleted_at"`
}

// LivingAt reports whether the user existed and was not deleted at t.
func (u *User) LivingAt(t time.Time) bool {
	return !t.Before(u.CreatedAt) && u.Lifecycle.LivingAt(t)
}

// Post is a piece of content owned by a user.
type Post struct {
	ID     ID     `json:"id"`
	UserID ID     `json:"user_id"`
	Text   string `json:"post_text"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Lifecycle Lifecycle `json:"deleted_at"`
}

// LivingAt reports whether the post existed and was not deleted at t.
func (p *Post) LivingAt(t time.Time) bool {
	return !t.Before(p.CreatedAt) && p.Lifecycle.LivingAt(t)
}

// EventType is the kind of engagement an Event records.
type EventType string

const (
	EventView EventType = "view" // user saw the post
	EventLike EventType = "like" // user liked a post they viewed
)

// Valid reports whether t is a type the simulator emits.
func (t EventType) Valid() bool {
	return t == EventView || t == EventLike
}

// Event is an immutable engagement record. Events are append-only.
type Event struct {
	ID        ID        `json:"id"`
	UserID    ID        `json:"user_id"`
	PostID    ID        `json:"post_id"`
	Timestamp time.Time `json:"event_ts"`
	Type      EventType `json:"event_type"`
}
