package entities

// AllowListEntry maps an imported login to a real name. Consulted during
// authorization only; Consumed is flipped once the login registers.
type AllowListEntry struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"` // lowercased
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Consumed  bool   `json:"consumed"`
}
