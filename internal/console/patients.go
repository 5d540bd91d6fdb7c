package console

import (
	"context"
	"io"

	"clinicrecords/internal/infra/persistence/flatfile"
	"clinicrecords/pkg/domain"
)

// PatientDatabase is the flat-file surface the patient console drives.
type PatientDatabase interface {
	Add(p domain.Patient) error
	Update(id int, p domain.Patient) error
	Delete(id int) error
	Search(id int) (domain.Patient, error)
	List() []domain.Patient
}

var _ PatientDatabase = (*flatfile.Database)(nil)

// PatientConsole is the flat-file patient menu.
type PatientConsole struct {
	db PatientDatabase
	p  prompter
}

// NewPatientConsole returns a console over db.
func NewPatientConsole(db PatientDatabase, in io.Reader, out io.Writer) *PatientConsole {
	return &PatientConsole{db: db, p: newPrompter(in, out)}
}

// Run loops over the menu until the exit choice or end of input.
func (c *PatientConsole) Run(ctx context.Context) error {
	for {
		c.p.printf("\n1. Add Patient\n2. Update Patient\n3. Delete Patient\n4. Search Patient\n5. List Patients\n6. Exit\n")
		choice, err := c.p.ask("Enter your choice")
		if err != nil {
			return done(err)
		}
		switch choice {
		case "1":
			err = c.add()
		case "2":
			err = c.update()
		case "3":
			err = c.delete()
		case "4":
			err = c.search()
		case "5":
			c.list()
		case "6":
			return nil
		default:
			c.p.printf("Invalid choice. Please try again.\n")
		}
		if err != nil {
			return done(err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

// readDetails prompts for everything but the ID.
func (c *PatientConsole) readDetails(p *domain.Patient) (bool, error) {
	var err error
	if p.Name, err = c.p.ask("Enter Name"); err != nil {
		return false, err
	}
	age, ok, err := c.p.askInt("Enter Age")
	if err != nil || !ok {
		return false, err
	}
	p.Age = age
	for _, f := range []struct {
		label string
		dst   *string
	}{
		{"Enter Gender", &p.Gender},
		{"Enter Diagnosis", &p.Diagnosis},
		{"Enter Treatment", &p.Treatment},
	} {
		if *f.dst, err = c.p.ask(f.label); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (c *PatientConsole) add() error {
	id, ok, err := c.p.askInt("Enter ID")
	if err != nil || !ok {
		return err
	}
	p := domain.Patient{ID: id}
	if ok, err := c.readDetails(&p); err != nil || !ok {
		return err
	}
	if err := c.db.Add(p); err != nil {
		reportTo(c.p, "Patient", err)
		return nil
	}
	c.p.printf("Patient added successfully.\n")
	return nil
}

func (c *PatientConsole) update() error {
	id, ok, err := c.p.askInt("Enter ID of patient to update")
	if err != nil || !ok {
		return err
	}
	var p domain.Patient
	if ok, err := c.readDetails(&p); err != nil || !ok {
		return err
	}
	if err := c.db.Update(id, p); err != nil {
		reportTo(c.p, "Patient", err)
		return nil
	}
	c.p.printf("Patient updated successfully.\n")
	return nil
}

func (c *PatientConsole) delete() error {
	id, ok, err := c.p.askInt("Enter ID of patient to delete")
	if err != nil || !ok {
		return err
	}
	if err := c.db.Delete(id); err != nil {
		reportTo(c.p, "Patient", err)
		return nil
	}
	c.p.printf("Patient deleted successfully.\n")
	return nil
}

func (c *PatientConsole) search() error {
	id, ok, err := c.p.askInt("Enter ID of patient to search")
	if err != nil || !ok {
		return err
	}
	p, err := c.db.Search(id)
	if err != nil {
		reportTo(c.p, "Patient", err)
		return nil
	}
	c.p.printf("%s\n", p)
	return nil
}

func (c *PatientConsole) list() {
	patients := c.db.List()
	if len(patients) == 0 {
		c.p.printf("No patients.\n")
		return
	}
	for _, p := range patients {
		c.p.printf("%s\n", p)
	}
}
