// Package domain defines the clinical record entities, the error taxonomy, and
// the persistence contracts shared by clinicrecords backends.
package domain

import (
	"fmt"
	"strings"
)

// Record is a patient entry held by the record store. ID is immutable once
// stored; Name, Age and Condition are replaced wholesale on update.
type Record struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Age       int    `json:"age"`
	Condition string `json:"condition"`
}

// Validate reports ErrInvalidInput when a required field is missing or a
// numeric field is not positive.
func (r Record) Validate() error {
	switch {
	case r.ID <= 0:
		return fmt.Errorf("%w: id must be positive, got %d", ErrInvalidInput, r.ID)
	case r.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	case r.Age <= 0:
		return fmt.Errorf("%w: age must be positive, got %d", ErrInvalidInput, r.Age)
	case r.Condition == "":
		return fmt.Errorf("%w: condition is required", ErrInvalidInput)
	}
	return nil
}

// String renders the record the way the console prints it.
func (r Record) String() string {
	return fmt.Sprintf("ID: %d, Name: %s, Age: %d, Condition: %s", r.ID, r.Name, r.Age, r.Condition)
}

// Patient is the flat-file variant of a record. Each field is stored as a
// single whitespace-delimited token.
type Patient struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Age       int    `json:"age"`
	Gender    string `json:"gender"`
	Diagnosis string `json:"diagnosis"`
	Treatment string `json:"treatment"`
}

// Validate requires positive numbers and single-token text fields.
func (p Patient) Validate() error {
	if p.ID <= 0 {
		return fmt.Errorf("%w: id must be positive, got %d", ErrInvalidInput, p.ID)
	}
	if p.Age <= 0 {
		return fmt.Errorf("%w: age must be positive, got %d", ErrInvalidInput, p.Age)
	}
	fields := []struct {
		name  string
		value string
	}{
		{"name", p.Name},
		{"gender", p.Gender},
		{"diagnosis", p.Diagnosis},
		{"treatment", p.Treatment},
	}
	for _, f := range fields {
		if f.value == "" {
			return fmt.Errorf("%w: %s is required", ErrInvalidInput, f.name)
		}
		if strings.ContainsFunc(f.value, isSpace) {
			return fmt.Errorf("%w: %s must be a single word, got %q", ErrInvalidInput, f.name, f.value)
		}
	}
	return nil
}

// String renders the patient the way the console prints it.
func (p Patient) String() string {
	return fmt.Sprintf("ID: %d, Name: %s, Age: %d, Gender: %s, Diagnosis: %s, Treatment: %s",
		p.ID, p.Name, p.Age, p.Gender, p.Diagnosis, p.Treatment)
}

func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}
