package timezone

import "time"

const (
	// date format used by the agroprecios query string and the CLI flags
	QueryDateLayout = "02/01/2006"
	// date format used for the persisted fecha field
	ISODateLayout = "2006-01-02"
)

var Location *time.Location

func init() {
	var err error
	Location, err = time.LoadLocation("Europe/Madrid")
	if err != nil {
		panic(err)
	}
}

// force timezone to be Madrid's since the source publishes its tables on the
// spanish calendar; a harvester running elsewhere would otherwise compute
// "today" a day off around midnight
func Now() time.Time {
	return time.Now().In(Location)
}

func FormatQueryDate(t time.Time) string {
	return t.Format(QueryDateLayout)
}

func FormatISODate(t time.Time) string {
	return t.Format(ISODateLayout)
}

func ParseQueryDate(s string) (time.Time, error) {
	return time.ParseInLocation(QueryDateLayout, s, Location)
}
