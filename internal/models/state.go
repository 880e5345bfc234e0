package models

// StateTransition is one row of a property's state history.
type StateTransition struct {
	State     string `json:"estado"`
	Reason    string `json:"motivo,omitempty"`
	StartDate *Date  `json:"fecha_inicio,omitempty"`
	EndDate   *Date  `json:"fecha_fin,omitempty"`
}
