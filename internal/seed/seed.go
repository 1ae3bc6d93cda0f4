// Package seed loads inventory, requirements, reservations and tasks from a
// YAML document.
//
// Documents are validated against an embedded CUE schema before anything is
// written, so a malformed file leaves the store untouched. Applying goes
// through the engine, so every lock, duplicate and quota rule still holds.
package seed

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/roach88/caras/internal/engine"
	"github.com/roach88/caras/internal/model"
)

//go:embed schema.cue
var schemaCUE string

// Document is a validated seed file.
type Document struct {
	Inventory    []Unit        `json:"inventory" yaml:"inventory,omitempty"`
	Requirements []Requirement `json:"requirements" yaml:"requirements,omitempty"`
	Reservations []Reservation `json:"reservations" yaml:"reservations,omitempty"`
	Tasks        []Task        `json:"tasks" yaml:"tasks,omitempty"`
}

// Unit is one inventory record.
type Unit struct {
	ID            string  `json:"id" yaml:"id,omitempty"`
	Code          string  `json:"code" yaml:"code,omitempty"`
	Address       string  `json:"address" yaml:"address,omitempty"`
	City          string  `json:"city" yaml:"city,omitempty"`
	State         string  `json:"state" yaml:"state,omitempty"`
	Format        string  `json:"format" yaml:"format,omitempty"`
	LocationClass string  `json:"location_class" yaml:"location_class,omitempty"`
	Latitude      float64 `json:"latitude" yaml:"latitude,omitempty"`
	Longitude     float64 `json:"longitude" yaml:"longitude,omitempty"`
}

// Requirement is one face requirement.
type Requirement struct {
	ID                 string `json:"id" yaml:"id,omitempty"`
	Campaign           string `json:"campaign" yaml:"campaign,omitempty"`
	Article            string `json:"article" yaml:"article,omitempty"`
	Start              string `json:"start" yaml:"start,omitempty"`
	End                string `json:"end" yaml:"end,omitempty"`
	Flow               int    `json:"flow" yaml:"flow,omitempty"`
	CounterFlow        int    `json:"counter_flow" yaml:"counter_flow,omitempty"`
	Bonus              int    `json:"bonus" yaml:"bonus,omitempty"`
	Format             string `json:"format" yaml:"format,omitempty"`
	LocationClass      string `json:"location_class" yaml:"location_class,omitempty"`
	City               string `json:"city" yaml:"city,omitempty"`
	State              string `json:"state" yaml:"state,omitempty"`
	SocioeconomicLevel string `json:"socioeconomic_level" yaml:"socioeconomic_level,omitempty"`
	PublicRate         string `json:"public_rate" yaml:"public_rate,omitempty"`
}

// Reservation attaches a unit to a requirement, optionally already coded.
type Reservation struct {
	ID          string `json:"id" yaml:"id,omitempty"`
	Requirement string `json:"requirement" yaml:"requirement,omitempty"`
	Inventory   string `json:"inventory" yaml:"inventory,omitempty"`
	Type        string `json:"type" yaml:"type,omitempty"`
	Period      string `json:"period" yaml:"period,omitempty"`
	Code        string `json:"code" yaml:"code,omitempty"`
}

// Task is a downstream task holding reservations.
type Task struct {
	ID           string   `json:"id" yaml:"id,omitempty"`
	Title        string   `json:"title" yaml:"title,omitempty"`
	Type         string   `json:"type" yaml:"type,omitempty"`
	Status       string   `json:"status" yaml:"status,omitempty"`
	Owner        string   `json:"owner" yaml:"owner,omitempty"`
	Reservations []string `json:"reservations" yaml:"reservations,omitempty"`
}

// SchemaError lists every schema violation in a document.
type SchemaError struct {
	Problems []string
}

func (e *SchemaError) Error() string {
	return "invalid seed document:\n  " + strings.Join(e.Problems, "\n  ")
}

// LoadFile reads and validates the seed document at path.
func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}
	return Parse(data)
}

// Parse validates YAML data against the seed schema and decodes it,
// applying schema defaults.
func Parse(data []byte) (*Document, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse seed yaml: %w", err)
	}
	if raw == nil {
		return &Document{}, nil
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile seed schema: %w", err)
	}

	v := schema.LookupPath(cue.ParsePath("#Seed")).Unify(ctx.Encode(raw))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, schemaError(err)
	}

	var doc Document
	if err := v.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	return &doc, nil
}

func schemaError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &SchemaError{Problems: []string{err.Error()}}
	}
	se := &SchemaError{}
	for _, e := range errs {
		format, args := e.Msg()
		msg := fmt.Sprintf(format, args...)
		if path := strings.Join(e.Path(), "."); path != "" {
			msg = path + ": " + msg
		}
		se.Problems = append(se.Problems, msg)
	}
	return se
}

// Writer stores catalog and task records the engine only reads.
// *store.Store implements it.
type Writer interface {
	UpsertInventory(ctx context.Context, u model.InventoryUnit) error
	UpsertTask(ctx context.Context, t model.Task) error
	LinkTask(ctx context.Context, taskID string, reservationIDs []string) error
}

// Summary counts what Apply wrote.
type Summary struct {
	Units        int `json:"units"`
	Requirements int `json:"requirements"`
	Reservations int `json:"reservations"`
	Codes        int `json:"codes"`
	Tasks        int `json:"tasks"`
}

// Apply writes doc in dependency order: units, requirements, reservations,
// codes (one AssignCode per distinct code, in first-seen order), then tasks.
// It stops at the first error; earlier records stay written.
func Apply(ctx context.Context, e *engine.Engine, w Writer, doc *Document) (Summary, error) {
	var sum Summary

	for _, u := range doc.Inventory {
		if err := w.UpsertInventory(ctx, u.Model()); err != nil {
			return sum, fmt.Errorf("unit %s: %w", u.ID, err)
		}
		sum.Units++
	}

	for _, r := range doc.Requirements {
		req, err := r.Model()
		if err != nil {
			return sum, fmt.Errorf("requirement %s: %w", r.ID, err)
		}
		if _, err := e.CreateRequirement(ctx, req); err != nil {
			return sum, fmt.Errorf("requirement %s: %w", r.ID, err)
		}
		sum.Requirements++
	}

	var codes []string
	byCode := make(map[string][]string)
	for _, r := range doc.Reservations {
		p, err := model.ParsePeriod(r.Period)
		if err != nil {
			return sum, fmt.Errorf("reservation %s: %w", r.ID, err)
		}
		if _, err := e.CreateReservation(ctx, engine.ReservationRequest{
			ID:            r.ID,
			RequirementID: r.Requirement,
			InventoryID:   r.Inventory,
			Type:          model.FulfillmentType(r.Type),
			Period:        p,
		}); err != nil {
			return sum, fmt.Errorf("reservation %s: %w", r.ID, err)
		}
		sum.Reservations++
		if r.Code != "" {
			if _, ok := byCode[r.Code]; !ok {
				codes = append(codes, r.Code)
			}
			byCode[r.Code] = append(byCode[r.Code], r.ID)
		}
	}

	for _, code := range codes {
		if _, err := e.AssignCode(ctx, byCode[code], code); err != nil {
			return sum, fmt.Errorf("code %s: %w", code, err)
		}
		sum.Codes++
	}

	for _, t := range doc.Tasks {
		if err := w.UpsertTask(ctx, model.Task{ID: t.ID, Title: t.Title, Type: t.Type, Status: t.Status, Owner: t.Owner}); err != nil {
			return sum, fmt.Errorf("task %s: %w", t.ID, err)
		}
		if len(t.Reservations) > 0 {
			if err := w.LinkTask(ctx, t.ID, t.Reservations); err != nil {
				return sum, fmt.Errorf("task %s: %w", t.ID, err)
			}
		}
		sum.Tasks++
	}
	return sum, nil
}

// Model converts the record.
func (u Unit) Model() model.InventoryUnit {
	return model.InventoryUnit{
		ID:            u.ID,
		Code:          u.Code,
		Address:       u.Address,
		City:          u.City,
		State:         u.State,
		Format:        u.Format,
		LocationClass: u.LocationClass,
		Latitude:      u.Latitude,
		Longitude:     u.Longitude,
	}
}

// Model converts the record, parsing periods and the rate.
func (r Requirement) Model() (model.FaceRequirement, error) {
	start, err := model.ParsePeriod(r.Start)
	if err != nil {
		return model.FaceRequirement{}, fmt.Errorf("start: %w", err)
	}
	end, err := model.ParsePeriod(r.End)
	if err != nil {
		return model.FaceRequirement{}, fmt.Errorf("end: %w", err)
	}
	rate := decimal.Zero
	if r.PublicRate != "" {
		if rate, err = decimal.NewFromString(r.PublicRate); err != nil {
			return model.FaceRequirement{}, fmt.Errorf("public_rate: %w", err)
		}
	}
	return model.FaceRequirement{
		ID:                  r.ID,
		CampaignID:          r.Campaign,
		Article:             r.Article,
		StartPeriod:         start,
		EndPeriod:           end,
		FlowRequired:        r.Flow,
		CounterFlowRequired: r.CounterFlow,
		BonusRequired:       r.Bonus,
		Format:              r.Format,
		LocationClass:       r.LocationClass,
		City:                r.City,
		State:               r.State,
		SocioeconomicLevel:  r.SocioeconomicLevel,
		PublicRate:          rate,
	}, nil
}
