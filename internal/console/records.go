package console

import (
	"context"
	"errors"
	"io"

	"clinicrecords/internal/core"
	"clinicrecords/pkg/domain"
)

// RecordService is the subset of core.Service the record console drives.
type RecordService interface {
	AddRecord(ctx context.Context, r domain.Record) error
	GetRecord(ctx context.Context, id int) (domain.Record, bool)
	ListRecordsSorted(ctx context.Context) []domain.Record
	UpdateRecord(ctx context.Context, r domain.Record) error
	DeleteRecord(ctx context.Context, id int) error
}

var _ RecordService = (*core.Service)(nil)

// Console is the record store menu.
type Console struct {
	svc RecordService
	p   prompter
}

// New returns a console reading from in and writing to out.
func New(svc RecordService, in io.Reader, out io.Writer) *Console {
	return &Console{svc: svc, p: newPrompter(in, out)}
}

func (c *Console) menu() {
	c.p.printf("\n1. Add Record\n2. Get Record by ID\n3. List Records Sorted by Age\n4. Update Record\n5. Delete Record\n6. Exit\n")
}

// Run loops over the menu until the exit choice or end of input.
func (c *Console) Run(ctx context.Context) error {
	for {
		c.menu()
		choice, err := c.p.ask("Enter your choice")
		if err != nil {
			return done(err)
		}
		switch choice {
		case "1":
			err = c.add(ctx)
		case "2":
			err = c.get(ctx)
		case "3":
			c.list(ctx)
		case "4":
			err = c.update(ctx)
		case "5":
			err = c.delete(ctx)
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

// readRecord prompts for every field. ok is false when a number was
// malformed.
func (c *Console) readRecord(idLabel string) (domain.Record, bool, error) {
	var r domain.Record
	id, ok, err := c.p.askInt(idLabel)
	if err != nil || !ok {
		return r, false, err
	}
	r.ID = id
	if r.Name, err = c.p.ask("Enter Name"); err != nil {
		return r, false, err
	}
	age, ok, err := c.p.askInt("Enter Age")
	if err != nil || !ok {
		return r, false, err
	}
	r.Age = age
	if r.Condition, err = c.p.ask("Enter Condition"); err != nil {
		return r, false, err
	}
	return r, true, nil
}

func (c *Console) add(ctx context.Context) error {
	r, ok, err := c.readRecord("Enter ID")
	if err != nil || !ok {
		return err
	}
	if err := c.svc.AddRecord(ctx, r); err != nil {
		c.report(err)
		return nil
	}
	c.p.printf("Record added successfully.\n")
	return nil
}

func (c *Console) get(ctx context.Context) error {
	id, ok, err := c.p.askInt("Enter ID")
	if err != nil || !ok {
		return err
	}
	r, found := c.svc.GetRecord(ctx, id)
	if !found {
		c.p.printf("Record not found.\n")
		return nil
	}
	c.p.printf("%s\n", r)
	return nil
}

func (c *Console) list(ctx context.Context) {
	records := c.svc.ListRecordsSorted(ctx)
	if len(records) == 0 {
		c.p.printf("No records.\n")
		return
	}
	for _, r := range records {
		c.p.printf("%s\n", r)
	}
}

func (c *Console) update(ctx context.Context) error {
	r, ok, err := c.readRecord("Enter ID of record to update")
	if err != nil || !ok {
		return err
	}
	if err := c.svc.UpdateRecord(ctx, r); err != nil {
		c.report(err)
		return nil
	}
	c.p.printf("Record updated successfully.\n")
	return nil
}

func (c *Console) delete(ctx context.Context) error {
	id, ok, err := c.p.askInt("Enter ID of record to delete")
	if err != nil || !ok {
		return err
	}
	if err := c.svc.DeleteRecord(ctx, id); err != nil {
		c.report(err)
		return nil
	}
	c.p.printf("Record deleted successfully.\n")
	return nil
}

func (c *Console) report(err error) {
	reportTo(c.p, "Record", err)
}

func reportTo(p prompter, noun string, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		p.printf("%s not found.\n", noun)
	case errors.Is(err, domain.ErrDuplicateKey):
		p.printf("%s with that ID already exists.\n", noun)
	default:
		p.printf("Error: %v\n", err)
	}
}
