package core

// DBOrdering is a single result ordering, parsed from an API query string
// and rendered into SQL ORDER BY clauses.
type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}
