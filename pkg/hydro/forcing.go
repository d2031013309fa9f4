package hydro

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the date format of forcing files and periods.
const DateLayout = "2006-01-02"

// ErrEmptyPeriod is returned when a period selects no forcing steps.
var ErrEmptyPeriod = errors.New("period selects no data")

// forcingColumns are the required CSV header names, in any order.
var forcingColumns = []string{"date", "prec", "t_mean", "t_min", "t_max", "discharge"}

// Forcing holds daily meteorological inputs and observed discharge, all in mm and °C.
type Forcing struct {
	Dates     []time.Time
	Prec      []float64
	TMean     []float64
	TMin      []float64
	TMax      []float64
	Discharge []float64
	// Latitude of the catchment in degrees, used for potential evaporation.
	Latitude float64
}

// Len returns the number of daily steps.
func (f *Forcing) Len() int { return len(f.Dates) }

// Validate checks that every series has one value per date and dates increase.
func (f *Forcing) Validate() error {
	n := len(f.Dates)
	if n == 0 {
		return fmt.Errorf("forcing has no steps")
	}
	for name, s := range map[string][]float64{
		"prec": f.Prec, "t_mean": f.TMean, "t_min": f.TMin, "t_max": f.TMax, "discharge": f.Discharge,
	} {
		if len(s) != n {
			return fmt.Errorf("forcing column %s has %d values for %d dates", name, len(s), n)
		}
	}
	for i := 1; i < n; i++ {
		if !f.Dates[i].After(f.Dates[i-1]) {
			return fmt.Errorf("forcing dates not increasing at row %d (%s)", i+1, f.Dates[i].Format(DateLayout))
		}
	}
	return nil
}

// LoadForcingFile reads a forcing CSV file.
func LoadForcingFile(path string) (*Forcing, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening forcing: %w", err)
	}
	defer fh.Close()
	f, err := LoadForcingCSV(fh)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// LoadForcingCSV reads a header row naming the columns date, prec, t_mean,
// t_min, t_max and discharge, followed by one row per day.
func LoadForcingCSV(r io.Reader) (*Forcing, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, name := range forcingColumns {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}

	f := &Forcing{}
	series := []*[]float64{&f.Prec, &f.TMean, &f.TMin, &f.TMax, &f.Discharge}
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		d, err := time.Parse(DateLayout, strings.TrimSpace(rec[col["date"]]))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		f.Dates = append(f.Dates, d)
		for i, name := range forcingColumns[1:] {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[col[name]]), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d, %s: %w", line, name, err)
			}
			*series[i] = append(*series[i], v)
		}
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// Period is an inclusive range of days.
type Period struct {
	Start time.Time
	End   time.Time
}

// ParsePeriod reads "YYYY-MM-DD:YYYY-MM-DD". An empty string is the zero period.
func ParsePeriod(s string) (Period, error) {
	if strings.TrimSpace(s) == "" {
		return Period{}, nil
	}
	a, b, ok := strings.Cut(s, ":")
	if !ok {
		return Period{}, fmt.Errorf("period %q: want start:end", s)
	}
	start, err := time.Parse(DateLayout, strings.TrimSpace(a))
	if err != nil {
		return Period{}, fmt.Errorf("period %q: %w", s, err)
	}
	end, err := time.Parse(DateLayout, strings.TrimSpace(b))
	if err != nil {
		return Period{}, fmt.Errorf("period %q: %w", s, err)
	}
	if end.Before(start) {
		return Period{}, fmt.Errorf("period %q ends before it starts", s)
	}
	return Period{Start: start, End: end}, nil
}

// IsZero reports whether p was left unset.
func (p Period) IsZero() bool { return p.Start.IsZero() && p.End.IsZero() }

func (p Period) String() string {
	if p.IsZero() {
		return "all"
	}
	return p.Start.Format(DateLayout) + ":" + p.End.Format(DateLayout)
}

// Window returns the half-open index range [lo, hi) of the steps inside p.
// The zero period selects every step.
func (f *Forcing) Window(p Period) (lo, hi int, err error) {
	if p.IsZero() {
		return 0, f.Len(), nil
	}
	lo, hi = -1, -1
	for i, d := range f.Dates {
		if d.Before(p.Start) || d.After(p.End) {
			continue
		}
		if lo < 0 {
			lo = i
		}
		hi = i + 1
	}
	if lo < 0 {
		return 0, 0, fmt.Errorf("%w: %s", ErrEmptyPeriod, p)
	}
	return lo, hi, nil
}
