// Package flatfile implements the file-backed patient database: records are
// held in a slice and the whole file is rewritten after every mutation.
//
// A Database is not safe for concurrent use and does not share the record
// store's locking.
package flatfile

import (
	"bufio"
	"clinicrecords/pkg/domain"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
)

// DefaultPath is the file used when none is configured.
const DefaultPath = "patients.txt"

const fieldsPerLine = 6

// Database keeps patients in file order.
type Database struct {
	path     string
	patients []domain.Patient
}

// Open loads path. A missing file yields an empty database; the file is
// created on the first mutation.
func Open(path string) (*Database, error) {
	if path == "" {
		path = DefaultPath
	}
	db := &Database{path: path}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return db, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	patients, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	db.patients = patients
	return db, nil
}

// Decode parses whitespace-separated tuples, one patient per line. Blank
// lines are skipped.
func Decode(r io.Reader) ([]domain.Patient, error) {
	var out []domain.Patient
	seen := make(map[int]struct{})
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != fieldsPerLine {
			return nil, fmt.Errorf("line %d: expected %d fields, got %d", line, fieldsPerLine, len(fields))
		}
		id, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: id: %w", line, err)
		}
		age, err := strconv.Atoi(fields[2])
		if err != nil {
			return nil, fmt.Errorf("line %d: age: %w", line, err)
		}
		p := domain.Patient{ID: id, Name: fields[1], Age: age, Gender: fields[3], Diagnosis: fields[4], Treatment: fields[5]}
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("line %d: %w: id %d", line, domain.ErrDuplicateKey, id)
		}
		seen[id] = struct{}{}
		out = append(out, p)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Encode writes patients in order using the tuple format read by Decode.
func Encode(w io.Writer, patients []domain.Patient) error {
	bw := bufio.NewWriter(w)
	for _, p := range patients {
		if _, err := fmt.Fprintf(bw, "%d %s %d %s %s %s\n", p.ID, p.Name, p.Age, p.Gender, p.Diagnosis, p.Treatment); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Path returns the backing file path.
func (d *Database) Path() string { return d.path }

// Add appends p and rewrites the file.
func (d *Database) Add(p domain.Patient) error {
	if err := p.Validate(); err != nil {
		return domain.Reject(domain.ActionCreate, p.ID, err)
	}
	if d.index(p.ID) >= 0 {
		return domain.Reject(domain.ActionCreate, p.ID, domain.ErrDuplicateKey)
	}
	d.patients = append(d.patients, p)
	if err := d.save(); err != nil {
		d.patients = d.patients[:len(d.patients)-1]
		return err
	}
	return nil
}

// Update replaces the patient stored under id in place. The stored ID is
// always id, whatever p.ID holds.
func (d *Database) Update(id int, p domain.Patient) error {
	p.ID = id
	if err := p.Validate(); err != nil {
		return domain.Reject(domain.ActionUpdate, id, err)
	}
	i := d.index(id)
	if i < 0 {
		return domain.Reject(domain.ActionUpdate, id, domain.ErrNotFound)
	}
	prev := d.patients[i]
	d.patients[i] = p
	if err := d.save(); err != nil {
		d.patients[i] = prev
		return err
	}
	return nil
}

// Delete removes the patient stored under id and rewrites the file.
func (d *Database) Delete(id int) error {
	i := d.index(id)
	if i < 0 {
		return domain.Reject(domain.ActionDelete, id, domain.ErrNotFound)
	}
	prev := d.patients[i]
	d.patients = slices.Delete(d.patients, i, i+1)
	if err := d.save(); err != nil {
		d.patients = slices.Insert(d.patients, i, prev)
		return err
	}
	return nil
}

// Search returns a copy of the patient stored under id.
func (d *Database) Search(id int) (domain.Patient, error) {
	i := d.index(id)
	if i < 0 {
		return domain.Patient{}, domain.Reject(domain.ActionRead, id, domain.ErrNotFound)
	}
	return d.patients[i], nil
}

// List returns every patient in file order.
func (d *Database) List() []domain.Patient {
	return slices.Clone(d.patients)
}

func (d *Database) index(id int) int {
	return slices.IndexFunc(d.patients, func(p domain.Patient) bool { return p.ID == id })
}

// save truncates and rewrites the whole file.
func (d *Database) save() error {
	f, err := os.OpenFile(d.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("save %s: %w", d.path, err)
	}
	if err := Encode(f, d.patients); err != nil {
		_ = f.Close()
		return fmt.Errorf("save %s: %w", d.path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("save %s: %w", d.path, err)
	}
	return nil
}
