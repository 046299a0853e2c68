package history

import (
	"fmt"
	"math"
	"strconv"
)

// Table is the tabular form of the log used by exporters.
type Table struct {
	Header []string
	Rows   []Row
}

// Row is one exported entry. Time is the formatted elapsed time.
type Row struct {
	Elapsed      float64
	Time         string
	Temperatures []float64
	Speeds       []float64
}

// Fields renders the row in header order.
func (r Row) Fields() []string {
	fields := make([]string, 0, 1+len(r.Temperatures)+len(r.Speeds))
	fields = append(fields, r.Time)
	for _, v := range r.Temperatures {
		fields = append(fields, formatFloat(v))
	}
	for _, v := range r.Speeds {
		fields = append(fields, formatFloat(v))
	}

	return fields
}

// Header returns the export column names for the given vector sizes.
func Header(subsystems, fans int) []string {
	header := make([]string, 0, 1+subsystems+fans)
	header = append(header, "Time (HH:MM:SS)")
	for i := 1; i <= subsystems; i++ {
		header = append(header, fmt.Sprintf("Temp%d (°C)", i))
	}
	for i := 1; i <= fans; i++ {
		header = append(header, fmt.Sprintf("Fan%d Speed (RPM)", i))
	}

	return header
}

// ExportRows returns the log as a table. ok is false when the log is empty;
// there is nothing to export in that case.
func (l *Log) ExportRows() (table Table, ok bool) {
	if len(l.entries) == 0 {
		return Table{}, false
	}

	table.Header = Header(l.subsystems, l.fans)
	table.Rows = make([]Row, len(l.entries))
	for i, e := range l.entries {
		c := e.clone()
		table.Rows[i] = Row{
			Elapsed:      c.Elapsed,
			Time:         FormatElapsed(c.Elapsed),
			Temperatures: c.Temperatures,
			Speeds:       c.Speeds,
		}
	}

	return table, true
}

// FormatElapsed renders seconds as HH:MM:SS.mmm. Hours are not wrapped at 24.
func FormatElapsed(t float64) string {
	hours := math.Floor(t / 3600)
	minutes := math.Floor(math.Mod(t, 3600) / 60)
	seconds := math.Floor(math.Mod(t, 60))
	millis := math.Floor(math.Mod(t, 1) * 1000)

	return fmt.Sprintf("%02d:%02d:%02d.%03d", int64(hours), int64(minutes), int64(seconds), int64(millis))
}

// FormatClock renders whole seconds as HH:MM:SS.
func FormatClock(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}

	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, (seconds%3600)/60, seconds%60)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
