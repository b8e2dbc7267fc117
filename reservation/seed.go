package reservation

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// SlotPlan describes the hourly slot grid generated per restaurant.
type SlotPlan struct {
	Days      int    `yaml:"days"`
	FirstSlot string `yaml:"first_slot"`
	LastSlot  string `yaml:"last_slot"`
	StepMin   int    `yaml:"step_minutes"`
}

type SeedFile struct {
	Restaurants []Restaurant `yaml:"restaurants"`
	Slots       SlotPlan     `yaml:"slots"`
}

func (p SlotPlan) withDefaults() SlotPlan {
	if p.Days <= 0 {
		p.Days = 31
	}
	if p.FirstSlot == "" {
		p.FirstSlot = "11:00"
	}
	if p.LastSlot == "" {
		p.LastSlot = "21:00"
	}
	if p.StepMin <= 0 {
		p.StepMin = 60
	}
	return p
}

func LoadSeedFile(path string) (SeedFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return SeedFile{}, fmt.Errorf("read seed file: %w", err)
	}
	return ParseSeed(raw)
}

func ParseSeed(raw []byte) (SeedFile, error) {
	var f SeedFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return SeedFile{}, fmt.Errorf("parse seed file: %w", err)
	}
	if len(f.Restaurants) == 0 {
		return SeedFile{}, fmt.Errorf("seed file has no restaurants")
	}
	seen := make(map[int64]struct{}, len(f.Restaurants))
	for _, r := range f.Restaurants {
		if r.ID <= 0 || r.Capacity <= 0 {
			return SeedFile{}, fmt.Errorf("restaurant %q: id and capacity must be positive", r.Name)
		}
		if _, dup := seen[r.ID]; dup {
			return SeedFile{}, fmt.Errorf("restaurant id %d listed twice", r.ID)
		}
		seen[r.ID] = struct{}{}
	}
	f.Slots = f.Slots.withDefaults()
	return f, nil
}

// SlotsFrom expands the plan into full-capacity slots starting at start's date.
func (f SeedFile) SlotsFrom(start time.Time) ([]Slot, error) {
	plan := f.Slots.withDefaults()
	first, err := time.Parse(TimeLayout, plan.FirstSlot)
	if err != nil {
		return nil, fmt.Errorf("first_slot: %w", err)
	}
	last, err := time.Parse(TimeLayout, plan.LastSlot)
	if err != nil {
		return nil, fmt.Errorf("last_slot: %w", err)
	}
	if last.Before(first) {
		return nil, fmt.Errorf("last_slot %s is before first_slot %s", plan.LastSlot, plan.FirstSlot)
	}

	step := time.Duration(plan.StepMin) * time.Minute
	var times []string
	for t := first; !t.After(last); t = t.Add(step) {
		times = append(times, t.Format(TimeLayout))
	}

	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
	out := make([]Slot, 0, len(f.Restaurants)*plan.Days*len(times))
	for _, r := range f.Restaurants {
		for d := 0; d < plan.Days; d++ {
			date := day.AddDate(0, 0, d).Format(DateLayout)
			for _, tm := range times {
				out = append(out, Slot{RestaurantID: r.ID, Date: date, Time: tm, SeatsRemaining: r.Capacity})
			}
		}
	}
	return out, nil
}

// Seed loads the restaurants and their generated slots into dst.
func Seed(ctx context.Context, dst Seeder, f SeedFile, start time.Time) (int, error) {
	if err := dst.UpsertRestaurants(ctx, f.Restaurants); err != nil {
		return 0, err
	}
	slots, err := f.SlotsFrom(start)
	if err != nil {
		return 0, err
	}
	if err := dst.InsertSlots(ctx, slots); err != nil {
		return 0, err
	}
	return len(slots), nil
}
