package models

// AlertTally is the five-counter operational-risk summary derived from the
// portfolio and its cached details. JSON names match what the dashboard UI
// historically consumed.
type AlertTally struct {
	Expired        int `json:"vencidos"`
	ExpiringSoon   int `json:"porVencer"`
	NoContract     int `json:"sinContrato"`
	OverdueCharges int `json:"cobranzaAtrasada"`
	IncompleteDocs int `json:"docsIncompletos"`
}
