package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	Daily   Frequency = "daily"
	Monthly Frequency = "monthly"
)

const (
	StatusPending  AccountStatus = "pending"
	StatusApproved AccountStatus = "approved"
)

type (
	Frequency string

	AccountStatus string

	// ID is an opaque record identifier. The remote API sometimes encodes
	// ids as JSON numbers; they are always kept as strings here.
	ID string

	Income struct {
		ID        ID        `json:"id"`
		Amount    Amount    `json:"amount"`
		Source    string    `json:"source"`
		Date      string    `json:"date"`
		Notes     string    `json:"notes,omitempty"`
		Frequency Frequency `json:"frequency,omitempty"`
	}

	Product struct {
		ID          ID     `json:"id"`
		Name        string `json:"name"`
		Description string `json:"description,omitempty"`
		Price       Amount `json:"price"`
	}

	Profile struct {
		ID           ID            `json:"id"`
		Name         string        `json:"name"`
		Type         string        `json:"type,omitempty"`
		Description  string        `json:"description,omitempty"`
		Address      string        `json:"address,omitempty"`
		Location     string        `json:"location,omitempty"`
		MapURL       string        `json:"mapUrl,omitempty"`
		PhoneNumber  string        `json:"phoneNumber,omitempty"`
		OpeningHours string        `json:"openingHours,omitempty"`
		ClosingHours string        `json:"closingHours,omitempty"`
		Images       []string      `json:"images,omitempty"`
		Email        string        `json:"email,omitempty"`
		Status       AccountStatus `json:"status,omitempty"`
	}

	Category struct {
		ID   ID     `json:"id"`
		Name string `json:"name"`
	}

	// Document is an uploaded registration attachment. It is forwarded,
	// never stored.
	Document struct {
		Filename string
		Content  []byte
	}

	Registration struct {
		Name                 string    `json:"name"`
		Type                 string    `json:"type"`
		Address              string    `json:"address"`
		LocationURL          string    `json:"location_url"`
		Email                string    `json:"email"`
		Password             string    `json:"password"`
		PasswordConfirmation string    `json:"password_confirmation"`
		Document             *Document `json:"-"`
	}

	Credentials struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	// Principal identifies the UMKM on whose behalf a store call is made.
	Principal struct {
		UMKMID ID
		Token  string
	}

	LoginResult struct {
		Token   string  `json:"token"`
		Profile Profile `json:"umkm"`
	}
)

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidDate        = errors.New("invalid date")
	ErrEmptySource        = errors.New("empty source")
	ErrInvalidFrequency   = errors.New("invalid frequency")
	ErrEmptyName          = errors.New("empty name")
	ErrInvalidHours       = errors.New("invalid hours, expected HH:MM")
	ErrInvalidEmail       = errors.New("invalid email")
	ErrPasswordTooShort   = errors.New("password must be at least 8 characters")
	ErrPasswordMismatch   = errors.New("password confirmation does not match")
	ErrNotFound           = errors.New("not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrPendingApproval    = errors.New("account pending approval")
	ErrEmailTaken         = errors.New("email already registered")
	ErrMissingPrincipal   = errors.New("missing principal")
	ErrNotesTooLong       = errors.New("notes too long (max 500 characters)")
	ErrDescriptionTooLong = errors.New("description too long (max 1000 characters)")
)

var (
	hoursPattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)
	emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

func (id ID) String() string {
	return string(id)
}

func (id ID) IsZero() bool {
	return strings.TrimSpace(string(id)) == ""
}

// UnmarshalJSON accepts both `"12"` and `12`.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (f Frequency) Validate() error {
	switch f {
	case "", Daily, Monthly:
		return nil
	default:
		return ErrInvalidFrequency
	}
}

// Anchor returns the calendar date the income is attributed to.
func (i Income) Anchor() (time.Time, error) {
	return ParseDate(i.Date)
}

// Instant returns the moment the income was recorded, in UTC.
func (i Income) Instant() (time.Time, error) {
	return ParseInstant(i.Date)
}

func (i Income) Validate() error {
	if err := i.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(i.Source) == "" {
		return ErrEmptySource
	}
	if len(i.Source) > 200 {
		return errors.New("source too long (max 200 characters)")
	}
	if _, err := i.Anchor(); err != nil {
		return err
	}
	if len(i.Notes) > 500 {
		return ErrNotesTooLong
	}
	return i.Frequency.Validate()
}

func (p Product) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrEmptyName
	}
	if len(p.Description) > 1000 {
		return ErrDescriptionTooLong
	}
	if !p.Price.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

func (p Profile) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrEmptyName
	}
	if len(p.Description) > 1000 {
		return ErrDescriptionTooLong
	}
	for _, h := range []string{p.OpeningHours, p.ClosingHours} {
		if h != "" && !hoursPattern.MatchString(h) {
			return ErrInvalidHours
		}
	}
	return nil
}

func (r Registration) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return ErrEmptyName
	}
	if !emailPattern.MatchString(strings.TrimSpace(r.Email)) {
		return ErrInvalidEmail
	}
	if len(r.Password) < 8 {
		return ErrPasswordTooShort
	}
	if r.Password != r.PasswordConfirmation {
		return ErrPasswordMismatch
	}
	return nil
}

func (c Credentials) Validate() error {
	if !emailPattern.MatchString(strings.TrimSpace(c.Email)) {
		return ErrInvalidEmail
	}
	if c.Password == "" {
		return ErrInvalidCredentials
	}
	return nil
}

// ProfileFromRegistration builds the initial profile for a new account.
func ProfileFromRegistration(id ID, r Registration, status AccountStatus) Profile {
	return Profile{
		ID:      id,
		Name:    strings.TrimSpace(r.Name),
		Type:    strings.TrimSpace(r.Type),
		Address: strings.TrimSpace(r.Address),
		MapURL:  strings.TrimSpace(r.LocationURL),
		Email:   NormalizeEmail(r.Email),
		Status:  status,
	}
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
