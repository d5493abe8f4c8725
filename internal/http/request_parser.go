// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data.
// JSON bodies are decoded into domain types; the auth endpoints also accept
// form posts from the server-rendered page.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"umkm/internal/core"
)

const (
	maxJSONBody      = 1 << 20
	maxMultipartBody = 10 << 20
)

// errBadRequest marks request bodies that could not be decoded at all.
var errBadRequest = errors.New("malformed request body")

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request.
// It reads the body once and stores it for subsequent parsing.
func NewRequestBodyParser(w http.ResponseWriter, r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	p.body, p.err = io.ReadAll(http.MaxBytesReader(w, r.Body, maxJSONBody))
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	if len(p.body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if p.body[0] == '{' {
		p.jsonData = make(map[string]any)
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			p.jsonData = nil
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(p.body))
	return p.err
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// GetRaw returns the value without sanitizing. Passwords use it.
func (p *RequestBodyParser) GetRaw(key string) string {
	if p.jsonData != nil {
		s, _ := p.jsonData[key].(string)
		return s
	}
	if p.formData != nil {
		return p.formData.Get(key)
	}
	return ""
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// decodeJSON reads a single JSON object from the request body into dst.
// Amount decode failures keep their core sentinel; any other failure is
// errBadRequest.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data", errBadRequest)
	}
	return nil
}

type incomeInput struct {
	Amount    core.Amount    `json:"amount"`
	Source    string         `json:"source"`
	Date      string         `json:"date"`
	Notes     string         `json:"notes"`
	Frequency core.Frequency `json:"frequency"`
}

func (in incomeInput) toIncome(id core.ID) core.Income {
	return core.Income{
		ID:        id,
		Amount:    in.Amount,
		Source:    sanitizeInput(in.Source),
		Date:      strings.TrimSpace(in.Date),
		Notes:     sanitizeInput(in.Notes),
		Frequency: in.Frequency,
	}
}

// parseIncome decodes and validates an income body.
func parseIncome(w http.ResponseWriter, r *http.Request, id core.ID) (core.Income, error) {
	var in incomeInput
	if err := decodeJSON(w, r, &in); err != nil {
		return core.Income{}, err
	}
	rec := in.toIncome(id)
	if err := rec.Validate(); err != nil {
		return core.Income{}, err
	}
	return rec, nil
}

func parseProduct(w http.ResponseWriter, r *http.Request, id core.ID) (core.Product, error) {
	var pr core.Product
	if err := decodeJSON(w, r, &pr); err != nil {
		return core.Product{}, err
	}
	pr.ID = id
	pr.Name = sanitizeInput(pr.Name)
	pr.Description = sanitizeInput(pr.Description)
	if err := pr.Validate(); err != nil {
		return core.Product{}, err
	}
	return pr, nil
}

func parseProfile(w http.ResponseWriter, r *http.Request, id core.ID) (core.Profile, error) {
	var pr core.Profile
	if err := decodeJSON(w, r, &pr); err != nil {
		return core.Profile{}, err
	}
	pr.ID = id
	pr.Name = sanitizeInput(pr.Name)
	pr.Description = sanitizeInput(pr.Description)
	pr.Address = sanitizeInput(pr.Address)
	if err := pr.Validate(); err != nil {
		return core.Profile{}, err
	}
	return pr, nil
}

// parseCredentials accepts JSON or a urlencoded form.
func parseCredentials(w http.ResponseWriter, r *http.Request) (core.Credentials, bool, error) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		return core.Credentials{}, false, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	c := core.Credentials{
		Email:    core.NormalizeEmail(p.Get("email")),
		Password: p.GetRaw("password"),
	}
	if err := c.Validate(); err != nil {
		return core.Credentials{}, !p.IsJSON(), err
	}
	return c, !p.IsJSON(), nil
}

// parseRegistration accepts JSON or multipart/form-data. A multipart
// "document" file is forwarded with the registration.
func parseRegistration(w http.ResponseWriter, r *http.Request) (core.Registration, error) {
	var reg core.Registration

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		r.Body = http.MaxBytesReader(w, r.Body, maxMultipartBody)
		if err := r.ParseMultipartForm(maxMultipartBody); err != nil {
			return reg, fmt.Errorf("%w: %v", errBadRequest, err)
		}
		reg = core.Registration{
			Name:                 sanitizeInput(r.FormValue("name")),
			Type:                 sanitizeInput(r.FormValue("type")),
			Address:              sanitizeInput(r.FormValue("address")),
			LocationURL:          sanitizeInput(r.FormValue("location_url")),
			Email:                core.NormalizeEmail(r.FormValue("email")),
			Password:             r.FormValue("password"),
			PasswordConfirmation: r.FormValue("password_confirmation"),
		}
		if file, header, err := r.FormFile("document"); err == nil {
			defer file.Close()
			content, err := io.ReadAll(file)
			if err != nil {
				return reg, fmt.Errorf("%w: read document: %v", errBadRequest, err)
			}
			reg.Document = &core.Document{Filename: header.Filename, Content: content}
		}
	} else {
		if err := decodeJSON(w, r, &reg); err != nil {
			return reg, err
		}
		reg.Name = sanitizeInput(reg.Name)
		reg.Type = sanitizeInput(reg.Type)
		reg.Address = sanitizeInput(reg.Address)
		reg.LocationURL = sanitizeInput(reg.LocationURL)
		reg.Email = core.NormalizeEmail(reg.Email)
	}

	if err := reg.Validate(); err != nil {
		return reg, err
	}
	return reg, nil
}

// sanitizeInput drops control characters other than tab and newlines and
// trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}
