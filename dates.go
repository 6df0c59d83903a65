package xlscope

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
)

// DefaultDateMask is the formatDate mask used when none is given.
const DefaultDateMask = "yyyy-mm-dd"

// DateNames holds the localized words formatDate substitutes for mask tokens.
// Days start on Sunday.
type DateNames struct {
	ShortDays   [7]string
	Days        [7]string
	ShortMonths [12]string
	Months      [12]string
	AM, PM      string
}

var dateTables = map[language.Tag]DateNames{
	language.English: {
		ShortDays:   [7]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"},
		Days:        [7]string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"},
		ShortMonths: [12]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"},
		Months: [12]string{"January", "February", "March", "April", "May", "June", "July",
			"August", "September", "October", "November", "December"},
		AM: "am", PM: "pm",
	},
	language.German: {
		ShortDays:   [7]string{"So", "Mo", "Di", "Mi", "Do", "Fr", "Sa"},
		Days:        [7]string{"Sonntag", "Montag", "Dienstag", "Mittwoch", "Donnerstag", "Freitag", "Samstag"},
		ShortMonths: [12]string{"Jan", "Feb", "Mär", "Apr", "Mai", "Jun", "Jul", "Aug", "Sep", "Okt", "Nov", "Dez"},
		Months: [12]string{"Januar", "Februar", "März", "April", "Mai", "Juni", "Juli",
			"August", "September", "Oktober", "November", "Dezember"},
		AM: "am", PM: "pm",
	},
	language.French: {
		ShortDays:   [7]string{"dim", "lun", "mar", "mer", "jeu", "ven", "sam"},
		Days:        [7]string{"dimanche", "lundi", "mardi", "mercredi", "jeudi", "vendredi", "samedi"},
		ShortMonths: [12]string{"janv", "févr", "mars", "avr", "mai", "juin", "juil", "août", "sept", "oct", "nov", "déc"},
		Months: [12]string{"janvier", "février", "mars", "avril", "mai", "juin", "juillet",
			"août", "septembre", "octobre", "novembre", "décembre"},
		AM: "am", PM: "pm",
	},
	language.Spanish: {
		ShortDays:   [7]string{"dom", "lun", "mar", "mié", "jue", "vie", "sáb"},
		Days:        [7]string{"domingo", "lunes", "martes", "miércoles", "jueves", "viernes", "sábado"},
		ShortMonths: [12]string{"ene", "feb", "mar", "abr", "may", "jun", "jul", "ago", "sept", "oct", "nov", "dic"},
		Months: [12]string{"enero", "febrero", "marzo", "abril", "mayo", "junio", "julio",
			"agosto", "septiembre", "octubre", "noviembre", "diciembre"},
		AM: "am", PM: "pm",
	},
}

var (
	dateLocales = []language.Tag{language.English, language.German, language.French, language.Spanish}
	dateMatcher = language.NewMatcher(dateLocales)
)

// DateNamesFor returns the names of the supported locale closest to tag.
func DateNamesFor(tag language.Tag) DateNames {
	_, idx, _ := dateMatcher.Match(tag)
	return dateTables[dateLocales[idx]]
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
}

// toTime accepts a time.Time, a date string in one of the common ISO layouts, or a
// number of milliseconds since the Unix epoch.
func toTime(v any) (time.Time, bool) {
	switch d := v.(type) {
	case time.Time:
		return d, !d.IsZero()
	case *time.Time:
		if d == nil {
			return time.Time{}, false
		}
		return *d, true
	case string:
		s := strings.TrimSpace(d)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.UnixMilli(ms).UTC(), true
		}
	case int:
		return time.UnixMilli(int64(d)).UTC(), true
	case int64:
		return time.UnixMilli(d).UTC(), true
	case float64:
		return time.UnixMilli(int64(d)).UTC(), true
	}
	return time.Time{}, false
}

var dateToken = regexp.MustCompile(`d{1,4}|m{1,4}|yy(?:yy)?|HH?|hh?|MM?|ss?|TT?|tt?|"[^"]*"|'[^']*'`)

// FormatDate renders date with a dateformat-style mask:
//
//	yyyy yy            year
//	mmmm mmm mm m      month name, short name, zero-padded, plain
//	dddd ddd dd d      day name, short name, zero-padded, plain
//	HH H hh h          24h and 12h hours
//	MM M ss s          minutes and seconds
//	TT T tt t          AM/PM markers
//
// Quoted text is copied literally. A date that cannot be interpreted renders as "".
func FormatDate(date any, mask string, names DateNames) string {
	t, ok := toTime(date)
	if !ok {
		return ""
	}
	hour12 := t.Hour() % 12
	if hour12 == 0 {
		hour12 = 12
	}
	marker := names.AM
	if t.Hour() >= 12 {
		marker = names.PM
	}
	pad := func(n int) string { return fmt.Sprintf("%02d", n) }

	return dateToken.ReplaceAllStringFunc(mask, func(tok string) string {
		switch tok {
		case "d":
			return strconv.Itoa(t.Day())
		case "dd":
			return pad(t.Day())
		case "ddd":
			return names.ShortDays[t.Weekday()]
		case "dddd":
			return names.Days[t.Weekday()]
		case "m":
			return strconv.Itoa(int(t.Month()))
		case "mm":
			return pad(int(t.Month()))
		case "mmm":
			return names.ShortMonths[t.Month()-1]
		case "mmmm":
			return names.Months[t.Month()-1]
		case "yy":
			return pad(t.Year() % 100)
		case "yyyy":
			return strconv.Itoa(t.Year())
		case "H":
			return strconv.Itoa(t.Hour())
		case "HH":
			return pad(t.Hour())
		case "h":
			return strconv.Itoa(hour12)
		case "hh":
			return pad(hour12)
		case "M":
			return strconv.Itoa(t.Minute())
		case "MM":
			return pad(t.Minute())
		case "s":
			return strconv.Itoa(t.Second())
		case "ss":
			return pad(t.Second())
		case "t":
			return firstRune(marker)
		case "tt":
			return marker
		case "T":
			return strings.ToUpper(firstRune(marker))
		case "TT":
			return strings.ToUpper(marker)
		}
		return tok[1 : len(tok)-1]
	})
}

func firstRune(s string) string {
	for _, r := range s {
		return string(r)
	}
	return ""
}
