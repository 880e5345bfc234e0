package models

// Contract states.
const (
	ContractVigente    = "vigente"
	ContractBorrador   = "borrador"
	ContractTerminado  = "terminado"
)

// Party is the tenant or owner attached to a lease contract.
type Party struct {
	ID    string `json:"id"`
	Name  string `json:"nombre"`
	RUT   string `json:"rut,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"telefono,omitempty"`
}

// Contract is one lease contract inside a property detail.
type Contract struct {
	ID          string  `json:"id"`
	State       string  `json:"estado"`
	StartDate   *Date   `json:"fecha_inicio,omitempty"`
	EndDate     *Date   `json:"fecha_fin,omitempty"`
	MonthlyRent float64 `json:"renta_mensual"`
	Currency    string  `json:"moneda"`
	PayDay      *int    `json:"dia_pago,omitempty"`
	Tenant      *Party  `json:"arrendatario,omitempty"`
	Owner       *Party  `json:"propietario,omitempty"`
	Notes       string  `json:"notas,omitempty"`
}
