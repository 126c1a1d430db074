package domain

// Company is a tenant. Its headquarters address anchors the shift-start and
// return-to-base ride rules.
type Company struct {
	ID                  int64
	Name                string
	HeadquartersAddress string
	Active              bool
}

type DriverStatus string

const (
	DriverActive   DriverStatus = "Active"
	DriverInactive DriverStatus = "Inactive"
)

type Driver struct {
	ID        int64
	CompanyID int64
	Name      string
	Status    DriverStatus
	Vehicle   string
}
