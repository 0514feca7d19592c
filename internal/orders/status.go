package orders

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusDeclined Status = "declined"
	StatusExpired  Status = "expired"
)

// Only pending orders move, and only to a terminal status.
var validNext = map[Status]map[Status]bool{
	StatusPending:  {StatusApproved: true, StatusDeclined: true, StatusExpired: true},
	StatusApproved: {},
	StatusDeclined: {},
	StatusExpired:  {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusDeclined || s == StatusExpired
}

// ParseProviderStatus maps a provider order_status onto a terminal status.
// Intermediate statuses such as "processing" or "created" report false.
func ParseProviderStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusApproved, StatusDeclined, StatusExpired:
		return Status(s), true
	}
	return "", false
}
