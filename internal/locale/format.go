package locale

import (
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/goodsign/monday"
)

const DefaultTimezone = "America/Sao_Paulo"

// Formatter renders appointment dates for people, in Brazilian Portuguese
// and in a fixed time zone.
type Formatter struct {
	loc    *time.Location
	locale monday.Locale
}

func NewFormatter(timezone string) (*Formatter, error) {
	if timezone == "" {
		timezone = DefaultTimezone
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
	}
	return &Formatter{loc: loc, locale: monday.LocalePtBR}, nil
}

// Format renders t as e.g. "dia 10 de março, às 14:00h".
func (f *Formatter) Format(t time.Time) string {
	lt := t.In(f.loc)
	day := monday.Format(lt, "02 de January", f.locale)
	return fmt.Sprintf("dia %s, às %d:%02dh", day, lt.Hour(), lt.Minute())
}

func (f *Formatter) Location() *time.Location {
	return f.loc
}
